package services

import (
	"context"

	"quickshop/internal/domain"
	applog "quickshop/internal/log"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
)

// Reconciler builds the authoritative ShopState at session start by merging
// the local snapshot, the remote document and the pending queue. Remote
// failures degrade to local data; reconciliation never blocks a session.
type Reconciler struct {
	snapshots *repos.SnapshotRepo
	queue     *repos.QueueRepo
	store     remote.DocStore
	mon       remote.Monitor
	now       func() int64
}

func NewReconciler(snapshots *repos.SnapshotRepo, queue *repos.QueueRepo, store remote.DocStore, mon remote.Monitor) *Reconciler {
	return &Reconciler{snapshots: snapshots, queue: queue, store: store, mon: mon, now: domain.NowMillis}
}

// Load produces the merged state for a scope and persists it locally.
func (r *Reconciler) Load(ctx context.Context, scope string) (*domain.ShopState, error) {
	local, err := r.snapshots.Load(scope)
	if err != nil {
		applog.Warn(nil, "reconcile.snapshot.load.fail", err, map[string]any{"scope": scope})
		local = nil
	}

	// Anonymous sessions and offline starts use local data only.
	if scope == domain.AnonymousScope || !r.mon.Online() {
		if local != nil {
			return local, nil
		}
		return domain.NewShopState(), nil
	}

	doc, err := r.store.GetDocument(ctx, usersCollection, scope)
	if err != nil {
		applog.Warn(nil, "reconcile.remote.fetch.fail", err, map[string]any{"scope": scope})
		if local != nil {
			return local, nil
		}
		return domain.NewShopState(), nil
	}

	if !doc.Exists {
		// First sync for this user: local data (or a fresh state) becomes
		// the initial remote document.
		state := local
		if state == nil {
			state = domain.NewShopState()
		}
		state.LastSync = r.now()
		if err := r.writeInitial(ctx, scope, state); err != nil {
			applog.Warn(nil, "reconcile.remote.init.fail", err, map[string]any{"scope": scope})
		} else {
			applog.Audit(nil, "reconcile.remote.init", map[string]any{"scope": scope})
		}
		r.saveLocal(scope, state)
		return state, nil
	}

	remoteState := &domain.ShopState{}
	for field, dst := range map[string]any{
		"products":   &remoteState.Products,
		"sales":      &remoteState.Sales,
		"notes":      &remoteState.Notes,
		"categories": &remoteState.Categories,
		"lastSync":   &remoteState.LastSync,
	} {
		if err := remote.DecodeField(doc, field, dst); err != nil {
			applog.Warn(nil, "reconcile.remote.decode.fail", err, map[string]any{"scope": scope, "field": field})
		}
	}
	// Deliberately not normalized: an absent remote categories field must
	// read as empty so the merge can prefer the local value.

	pending, err := r.queue.ListAll(scope)
	if err != nil {
		applog.Warn(nil, "reconcile.queue.list.fail", err, map[string]any{"scope": scope})
		pending = nil
	}

	// Coarse fallback: with nothing queued, the newer full snapshot wins
	// wholesale and is pushed back up.
	if len(pending) == 0 && local != nil && local.LastSync > remoteState.LastSync {
		local.LastSync = r.now()
		if err := r.writeInitial(ctx, scope, local); err != nil {
			applog.Warn(nil, "reconcile.local.promote.fail", err, map[string]any{"scope": scope})
		} else {
			applog.Audit(nil, "reconcile.local.promote", map[string]any{"scope": scope})
		}
		r.saveLocal(scope, local)
		return local, nil
	}

	merged := mergeStates(local, remoteState, pending)
	merged.LastSync = r.now()
	r.saveLocal(scope, merged)
	applog.Info(nil, "reconcile.done", map[string]any{
		"scope": scope, "products": len(merged.Products), "pending": len(pending),
	})
	return merged, nil
}

func (r *Reconciler) writeInitial(ctx context.Context, scope string, state *domain.ShopState) error {
	data := map[string]any{}
	for field, v := range map[string]any{
		"products":   state.Products,
		"sales":      state.Sales,
		"notes":      state.Notes,
		"categories": state.Categories,
		"lastSync":   state.LastSync,
	} {
		enc, err := remote.Encode(v)
		if err != nil {
			return err
		}
		data[field] = enc
	}
	return r.store.SetDocument(ctx, usersCollection, scope, data, true)
}

func (r *Reconciler) saveLocal(scope string, state *domain.ShopState) {
	if err := r.snapshots.Save(scope, state); err != nil {
		applog.Warn(nil, "reconcile.snapshot.save.fail", err, map[string]any{"scope": scope})
	}
}

// mergeStates implements the pending-queue-aware merge. Remote existence is
// canonical for products; locally queued edits overlay their targets; sales
// are unioned by id; notes and categories take the remote value when it is
// non-empty. Concurrent offline note edits can be discarded here; that
// matches the observed behavior and is documented as a limitation.
func mergeStates(local, remoteState *domain.ShopState, pending []domain.PendingMutation) *domain.ShopState {
	if local == nil {
		local = domain.NewShopState()
	}

	touched := map[string]bool{}
	addedLocally := map[string]bool{}
	removedLocally := map[string]bool{}
	for _, pm := range pending {
		m, err := pm.Mutation()
		if err != nil {
			continue // malformed rows are the sync engine's problem
		}
		switch m.Kind {
		case domain.MutAddProduct:
			touched[m.ProductID()] = true
			addedLocally[m.ProductID()] = true
		case domain.MutUpdateProduct, domain.MutAddStock:
			touched[m.ProductID()] = true
		case domain.MutRemoveProduct:
			removedLocally[m.ProductID()] = true
			delete(touched, m.ProductID())
			delete(addedLocally, m.ProductID())
		}
	}

	localByID := map[string]domain.Product{}
	for _, p := range local.Products {
		localByID[p.ID] = p
	}

	merged := domain.NewShopState()

	// Remote is the source of truth for existence; pending local edits keep
	// the local version of their targets.
	merged.Products = merged.Products[:0]
	seen := map[string]bool{}
	for _, p := range remoteState.Products {
		if removedLocally[p.ID] {
			continue
		}
		if touched[p.ID] {
			if lp, ok := localByID[p.ID]; ok {
				p = lp
			}
		}
		merged.Products = append(merged.Products, p)
		seen[p.ID] = true
	}
	// Products added offline are not remote yet; carry the local copy.
	for id := range addedLocally {
		if seen[id] {
			continue
		}
		if lp, ok := localByID[id]; ok {
			merged.Products = append(merged.Products, lp)
			seen[id] = true
		}
	}

	// Sales: union, deduplicated by id, remote order first.
	merged.Sales = append(merged.Sales[:0], remoteState.Sales...)
	saleSeen := map[string]bool{}
	for _, s := range remoteState.Sales {
		saleSeen[s.ID] = true
	}
	for _, s := range local.Sales {
		if !saleSeen[s.ID] {
			merged.Sales = append(merged.Sales, s)
			saleSeen[s.ID] = true
		}
	}

	if len(remoteState.Notes) > 0 {
		merged.Notes = append(merged.Notes[:0], remoteState.Notes...)
	} else {
		merged.Notes = append(merged.Notes[:0], local.Notes...)
	}
	if len(remoteState.Categories) > 0 {
		merged.Categories = append(merged.Categories[:0], remoteState.Categories...)
	} else {
		merged.Categories = append(merged.Categories[:0], local.Categories...)
	}

	// The undo log never leaves the device.
	merged.Changes = append(merged.Changes[:0], local.Changes...)
	return merged
}
