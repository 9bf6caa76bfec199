package services

import (
	"context"
	"errors"
	"sync/atomic"

	"quickshop/internal/domain"
	applog "quickshop/internal/log"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
)

// usersCollection is where each scope's document lives in the remote store.
const usersCollection = "users"

// appliedOpsCap bounds the idempotency token list kept on the remote document.
const appliedOpsCap = 512

// Syncer drains the pending queue for one scope against the remote store.
// It never mutates ShopState or the local snapshot; its only job is moving
// entries from "pending" to "synced", or leaving them pending.
type Syncer struct {
	scope  string
	queue  *repos.QueueRepo
	store  remote.DocStore
	mon    remote.Monitor
	notify func()

	draining atomic.Bool
}

func NewSyncer(scope string, queue *repos.QueueRepo, store remote.DocStore, mon remote.Monitor) *Syncer {
	return &Syncer{scope: scope, queue: queue, store: store, mon: mon}
}

// OnSynced registers the "data synced" notification fired after each
// completed drain pass. The engine knows nothing about what listens.
func (s *Syncer) OnSynced(fn func()) { s.notify = fn }

// Kick starts a drain pass in the background, fire-and-forget. Errors are
// logged inside the pass; callers never depend on sync succeeding.
func (s *Syncer) Kick() {
	go func() {
		if _, err := s.Drain(context.Background()); err != nil {
			applog.Warn(nil, "sync.drain.fail", err, map[string]any{"scope": s.scope})
		}
	}()
}

// Drain attempts to apply every currently-queued mutation, in append order.
// A failing entry stays queued and does not block later entries. Entries
// appended while the pass runs are picked up by the next pass. At most one
// pass per Syncer is in flight at a time.
func (s *Syncer) Drain(ctx context.Context) (synced int, err error) {
	if s.scope == domain.AnonymousScope {
		return 0, nil // no remote target until someone signs in
	}
	if !s.mon.Online() {
		return 0, nil
	}
	if !s.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.draining.Store(false)

	pending, err := s.queue.ListAll(s.scope)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	applog.Info(nil, "sync.drain.start", map[string]any{"scope": s.scope, "pending": len(pending)})

	for _, pm := range pending {
		m, derr := pm.Mutation()
		if derr != nil {
			// Poison pill: retry cannot fix a malformed row. Drop it,
			// loudly.
			applog.Error(nil, "sync.entry.abandon", derr, map[string]any{
				"scope": s.scope, "id": pm.ID, "kind": pm.Kind,
			})
			metricMutationsAbandoned.Inc()
			if rerr := s.queue.Remove(pm.ID); rerr != nil {
				applog.Warn(nil, "sync.entry.abandon.remove", rerr, map[string]any{"scope": s.scope, "id": pm.ID})
			}
			continue
		}

		if aerr := s.applyOne(ctx, pm, m); aerr != nil {
			applog.Warn(nil, "sync.entry.fail", aerr, map[string]any{
				"scope": s.scope, "id": pm.ID, "kind": pm.Kind,
				"retryable": remote.Retryable(aerr),
			})
			metricMutationsRetried.Inc()
			continue
		}

		// Only a confirmed remote write clears the entry.
		if rerr := s.queue.Remove(pm.ID); rerr != nil {
			// The op token guards against double-application on the
			// next pass.
			applog.Warn(nil, "sync.entry.clear.fail", rerr, map[string]any{"scope": s.scope, "id": pm.ID})
			continue
		}
		metricMutationsSynced.WithLabelValues(pm.Kind).Inc()
		synced++
	}

	metricDrainPasses.Inc()
	if depth, derr := s.queue.Len(s.scope); derr == nil {
		metricQueueDepth.WithLabelValues(s.scope).Set(float64(depth))
	}
	applog.Info(nil, "sync.drain.done", map[string]any{"scope": s.scope, "synced": synced})
	if s.notify != nil {
		s.notify()
	}
	return synced, nil
}

func (s *Syncer) applyOne(ctx context.Context, pm domain.PendingMutation, m domain.Mutation) error {
	if m.Atomic() {
		return s.applyAtomic(ctx, m)
	}
	return s.applyTransactional(ctx, pm.OpToken, m)
}

// applyAtomic expresses the mutation as a merge-safe union/removal on the
// relevant array field. Re-applying after a lost ack is a no-op.
func (s *Syncer) applyAtomic(ctx context.Context, m domain.Mutation) error {
	var field string
	var payload any
	switch m.Kind {
	case domain.MutAddProduct, domain.MutRemoveProduct:
		field = "products"
		payload = m.Product
	case domain.MutAddSale, domain.MutRemoveSale:
		field = "sales"
		payload = m.Sale
	default:
		return errors.New("mutation is not atomic: " + string(m.Kind))
	}
	enc, err := remote.Encode(payload)
	if err != nil {
		return err
	}
	op := remote.ArrayUnion(enc)
	if m.Kind == domain.MutRemoveProduct || m.Kind == domain.MutRemoveSale {
		op = remote.ArrayRemove(enc)
	}
	return s.store.UpdateFields(ctx, usersCollection, s.scope, map[string]remote.ArrayOp{field: op})
}

// applyTransactional re-reads the remote product list inside a transaction,
// applies the change, and records the entry's op token on the document. A
// token already present means a previous pass committed but crashed before
// clearing the queue row; the apply is skipped so deltas never double-count.
func (s *Syncer) applyTransactional(ctx context.Context, token string, m domain.Mutation) error {
	return s.store.RunTransaction(ctx, func(tx remote.Tx) error {
		doc, err := tx.Get(usersCollection, s.scope)
		if err != nil {
			return err
		}
		if !doc.Exists {
			return &remote.StoreError{Op: "tx.get", Err: remote.ErrDocMissing}
		}

		var applied []string
		if err := remote.DecodeField(doc, "appliedOps", &applied); err != nil {
			return err
		}
		for _, t := range applied {
			if t == token {
				return nil // already applied
			}
		}

		var products []domain.Product
		if err := remote.DecodeField(doc, "products", &products); err != nil {
			return err
		}

		switch m.Kind {
		case domain.MutUpdateProduct:
			// Filter out the old version, append the new one.
			kept := products[:0]
			for _, p := range products {
				if p.ID != m.Product.ID {
					kept = append(kept, p)
				}
			}
			products = append(kept, *m.Product)
		case domain.MutAddStock:
			for i := range products {
				if products[i].ID == m.Stock.ProductID {
					products[i].Qty += m.Stock.Qty
				}
			}
		default:
			return errors.New("mutation is not transactional: " + string(m.Kind))
		}

		applied = append(applied, token)
		if len(applied) > appliedOpsCap {
			applied = applied[len(applied)-appliedOpsCap/2:]
		}

		encProducts, err := remote.Encode(products)
		if err != nil {
			return err
		}
		encApplied, err := remote.Encode(applied)
		if err != nil {
			return err
		}
		return tx.Update(usersCollection, s.scope, map[string]any{
			"products":   encProducts,
			"appliedOps": encApplied,
		})
	})
}

// PushDoc writes selected state fields to the remote document with a merge
// set. This is the coarse full-document path: notes and categories are not
// queue-tracked, so they ride along here, last writer wins. Best effort.
func (s *Syncer) PushDoc(ctx context.Context, state *domain.ShopState, fields ...string) error {
	if s.scope == domain.AnonymousScope || !s.mon.Online() {
		return nil
	}
	data := map[string]any{"lastSync": domain.NowMillis()}
	for _, f := range fields {
		var v any
		switch f {
		case "products":
			v = state.Products
		case "sales":
			v = state.Sales
		case "notes":
			v = state.Notes
		case "categories":
			v = state.Categories
		default:
			continue
		}
		enc, err := remote.Encode(v)
		if err != nil {
			return err
		}
		data[f] = enc
	}
	return s.store.SetDocument(ctx, usersCollection, s.scope, data, true)
}
