package services

import (
	"errors"
	"sync"

	"quickshop/internal/domain"
	applog "quickshop/internal/log"
	"quickshop/internal/repos"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNoteNotFound    = errors.New("note not found")
	ErrNothingToUndo   = errors.New("no recent changes to undo for this product")
	ErrBarcodeTaken    = errors.New("another product already uses this barcode")
)

// undoSaleWindow is how far a sale's timestamp may drift from its change-log
// entry and still be matched on undo.
const undoSaleWindowMillis = 120_000

// ProductInput carries the caller-supplied product fields; ids and timestamps
// are assigned here.
type ProductInput struct {
	Name     string
	Price    float64
	Cost     float64
	Qty      int
	Category string
	Barcode  string
	Image    string
	Icon     string
}

// Recorder is the single write path for shop state. Every action mutates the
// in-memory state, appends an undo entry, persists the snapshot and queues
// the mutation, in that order, before any network attempt. Local persistence
// failures are warnings, never rollbacks: the action happened for this
// session regardless.
type Recorder struct {
	mu        sync.Mutex
	scope     string
	state     *domain.ShopState
	snapshots *repos.SnapshotRepo
	queue     *repos.QueueRepo

	kick    func()                             // opportunistic drain trigger
	pushDoc func(*domain.ShopState, ...string) // full-document path for notes/categories
	now     func() int64
}

func NewRecorder(scope string, state *domain.ShopState, snapshots *repos.SnapshotRepo, queue *repos.QueueRepo) *Recorder {
	state.Normalize()
	return &Recorder{
		scope:     scope,
		state:     state,
		snapshots: snapshots,
		queue:     queue,
		now:       domain.NowMillis,
	}
}

// WireSync attaches the sync engine hooks. Both are fire-and-forget; the
// recorder never waits on them.
func (r *Recorder) WireSync(kick func(), pushDoc func(*domain.ShopState, ...string)) {
	r.kick = kick
	r.pushDoc = pushDoc
}

// View returns a copy of the current state. Rendering code reads views; only
// recorder methods mutate.
func (r *Recorder) View() *domain.ShopState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// commit persists the snapshot and queues the mutations, then triggers a
// drain. Must be called with the lock held; the sync kick happens after the
// caller releases it.
func (r *Recorder) commit(action string, muts ...domain.Mutation) {
	if err := r.snapshots.Save(r.scope, r.state); err != nil {
		// Disk quota and friends: surfaced, not fatal. In-memory state
		// stays authoritative for the session.
		applog.Warn(nil, action+".snapshot.fail", err, map[string]any{"scope": r.scope})
	}
	for _, m := range muts {
		if _, err := r.queue.Append(r.scope, m); err != nil {
			applog.Warn(nil, action+".queue.fail", err, map[string]any{"scope": r.scope, "kind": string(m.Kind)})
		}
	}
}

func (r *Recorder) kickSync() {
	if r.kick != nil {
		r.kick()
	}
}

// barcodeTaken reports whether another product already carries the barcode.
// Empty barcodes are not unique. Must be called with the lock held.
func (r *Recorder) barcodeTaken(code, exceptID string) bool {
	if code == "" {
		return false
	}
	for i := range r.state.Products {
		if r.state.Products[i].Barcode == code && r.state.Products[i].ID != exceptID {
			return true
		}
	}
	return false
}

func (r *Recorder) AddProduct(in ProductInput) (domain.Product, error) {
	r.mu.Lock()
	if r.barcodeTaken(in.Barcode, "") {
		r.mu.Unlock()
		return domain.Product{}, ErrBarcodeTaken
	}
	now := r.now()
	p := domain.Product{
		ID:        domain.NewID(),
		Name:      in.Name,
		Price:     in.Price,
		Cost:      in.Cost,
		Qty:       in.Qty,
		Category:  r.state.NormalizeCategory(in.Category),
		Barcode:   in.Barcode,
		Image:     in.Image,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.state.Products = append(r.state.Products, p)
	r.commit("product.add", domain.AddProduct(p))
	r.mu.Unlock()

	applog.Audit(nil, "product.add", map[string]any{"scope": r.scope, "id": p.ID, "name": p.Name})
	r.kickSync()
	return p, nil
}

func (r *Recorder) UpdateProduct(id string, in ProductInput) (domain.Product, error) {
	r.mu.Lock()
	p := r.state.FindProduct(id)
	if p == nil {
		r.mu.Unlock()
		return domain.Product{}, ErrProductNotFound
	}
	if r.barcodeTaken(in.Barcode, id) {
		r.mu.Unlock()
		return domain.Product{}, ErrBarcodeTaken
	}
	p.Name = in.Name
	p.Price = in.Price
	p.Cost = in.Cost
	p.Qty = in.Qty
	p.Category = r.state.NormalizeCategory(in.Category)
	p.Barcode = in.Barcode
	if in.Image != "" {
		p.Image = in.Image
	}
	p.UpdatedAt = r.now()
	updated := *p
	r.commit("product.update", domain.UpdateProduct(updated))
	r.mu.Unlock()

	r.kickSync()
	return updated, nil
}

// RemoveProduct hard-deletes the product and cascades its sales and change
// log. The remote copies go away when the deletion itself syncs.
func (r *Recorder) RemoveProduct(id string) error {
	r.mu.Lock()
	p := r.state.FindProduct(id)
	if p == nil {
		r.mu.Unlock()
		return ErrProductNotFound
	}
	removed := *p
	r.state.RemoveProduct(id)
	r.commit("product.remove", domain.RemoveProduct(removed))
	r.mu.Unlock()

	applog.Audit(nil, "product.remove", map[string]any{"scope": r.scope, "id": id})
	r.kickSync()
	return nil
}

// Sell records a sale at the product's current price and cost and decrements
// stock, flooring at zero (the client confirms overselling before calling).
func (r *Recorder) Sell(productID string, qty int) (domain.SaleRecord, error) {
	r.mu.Lock()
	p := r.state.FindProduct(productID)
	if p == nil {
		r.mu.Unlock()
		return domain.SaleRecord{}, ErrProductNotFound
	}
	now := r.now()
	// The stock delta queued for sync is what the shelf actually lost, so an
	// oversell clamped to zero locally cannot drive the remote count negative.
	delta := qty
	if p.Qty < qty {
		delta = p.Qty
		p.Qty = 0
	} else {
		p.Qty -= qty
	}
	p.UpdatedAt = now
	sale := domain.SaleRecord{
		ID:        domain.NewID(),
		ProductID: productID,
		Qty:       qty,
		Price:     p.Price,
		Cost:      p.Cost,
		TS:        now,
	}
	r.state.Sales = append(r.state.Sales, sale)
	r.state.Changes = append(r.state.Changes, domain.ChangeLogEntry{
		Type: domain.ChangeSell, ProductID: productID, Qty: qty, TS: now,
	})
	r.commit("sale.add", domain.AddSale(sale), domain.AddStock(productID, -delta))
	r.mu.Unlock()

	r.kickSync()
	return sale, nil
}

// Restock adds a positive quantity delta.
func (r *Recorder) Restock(productID string, qty int) (domain.Product, error) {
	r.mu.Lock()
	p := r.state.FindProduct(productID)
	if p == nil {
		r.mu.Unlock()
		return domain.Product{}, ErrProductNotFound
	}
	now := r.now()
	p.Qty += qty
	p.UpdatedAt = now
	r.state.Changes = append(r.state.Changes, domain.ChangeLogEntry{
		Type: domain.ChangeAdd, ProductID: productID, Qty: qty, TS: now,
	})
	updated := *p
	r.commit("stock.add", domain.AddStock(productID, qty))
	r.mu.Unlock()

	r.kickSync()
	return updated, nil
}

// Undo reverts the most recent change-log entry for the product: a restock is
// subtracted back out; a sale is removed (matching the sale record recorded
// within the undo window) and its quantity restored. Compensating mutations
// are queued so the remote store converges too.
func (r *Recorder) Undo(productID string) (string, error) {
	r.mu.Lock()
	for i := len(r.state.Changes) - 1; i >= 0; i-- {
		ch := r.state.Changes[i]
		if ch.ProductID != productID {
			continue
		}
		switch ch.Type {
		case domain.ChangeAdd:
			p := r.state.FindProduct(productID)
			if p != nil {
				if p.Qty < ch.Qty {
					p.Qty = 0
				} else {
					p.Qty -= ch.Qty
				}
			}
			r.state.Changes = append(r.state.Changes[:i], r.state.Changes[i+1:]...)
			r.commit("undo.add", domain.AddStock(productID, -ch.Qty))
			r.mu.Unlock()
			r.kickSync()
			return "reverted add", nil

		case domain.ChangeSell:
			muts := []domain.Mutation{domain.AddStock(productID, ch.Qty)}
			for j := len(r.state.Sales) - 1; j >= 0; j-- {
				s := r.state.Sales[j]
				if s.ProductID == productID && s.Qty == ch.Qty && absDiff(s.TS, ch.TS) < undoSaleWindowMillis {
					r.state.Sales = append(r.state.Sales[:j], r.state.Sales[j+1:]...)
					muts = append(muts, domain.RemoveSale(s))
					break
				}
			}
			if p := r.state.FindProduct(productID); p != nil {
				p.Qty += ch.Qty
			}
			r.state.Changes = append(r.state.Changes[:i], r.state.Changes[i+1:]...)
			r.commit("undo.sell", muts...)
			r.mu.Unlock()
			r.kickSync()
			return "reverted sale", nil
		}
	}
	r.mu.Unlock()
	return "", ErrNothingToUndo
}

// Notes ride the full-document path rather than the queue; concurrent offline
// note edits can lose at reconciliation (known limitation).

func (r *Recorder) AddNote(title, content string) (domain.Note, error) {
	r.mu.Lock()
	note := domain.Note{ID: domain.NewID(), Title: title, Content: content, TS: r.now()}
	r.state.Notes = append(r.state.Notes, note)
	r.commit("note.add")
	state := r.state.Clone()
	r.mu.Unlock()

	r.pushNotes(state)
	return note, nil
}

func (r *Recorder) UpdateNote(id, title, content string) (domain.Note, error) {
	r.mu.Lock()
	var updated *domain.Note
	for i := range r.state.Notes {
		if r.state.Notes[i].ID == id {
			r.state.Notes[i].Title = title
			r.state.Notes[i].Content = content
			r.state.Notes[i].TS = r.now()
			updated = &r.state.Notes[i]
			break
		}
	}
	if updated == nil {
		r.mu.Unlock()
		return domain.Note{}, ErrNoteNotFound
	}
	note := *updated
	r.commit("note.update")
	state := r.state.Clone()
	r.mu.Unlock()

	r.pushNotes(state)
	return note, nil
}

func (r *Recorder) RemoveNote(id string) error {
	r.mu.Lock()
	found := false
	kept := r.state.Notes[:0]
	for _, n := range r.state.Notes {
		if n.ID == id {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	if !found {
		r.mu.Unlock()
		return ErrNoteNotFound
	}
	r.state.Notes = kept
	r.commit("note.remove")
	state := r.state.Clone()
	r.mu.Unlock()

	r.pushNotes(state)
	return nil
}

func (r *Recorder) pushNotes(state *domain.ShopState) {
	if r.pushDoc != nil {
		r.pushDoc(state, "notes", "categories")
	}
}

// ClearStore wipes products, sales, notes and the undo log, drops any pending
// queue rows for the scope and pushes the emptied document upstream.
func (r *Recorder) ClearStore() error {
	r.mu.Lock()
	cats := r.state.Categories
	r.state = domain.NewShopState()
	r.state.Categories = cats
	r.commit("store.clear")
	if err := clearQueue(r.queue, r.scope); err != nil {
		applog.Warn(nil, "store.clear.queue.fail", err, map[string]any{"scope": r.scope})
	}
	state := r.state.Clone()
	r.mu.Unlock()

	applog.Audit(nil, "store.clear", map[string]any{"scope": r.scope})
	if r.pushDoc != nil {
		r.pushDoc(state, "products", "sales", "notes", "categories")
	}
	return nil
}

// LoadDemo inserts the demo catalog.
func (r *Recorder) LoadDemo() error {
	demo := []ProductInput{
		{Name: "Rice (5kg)", Price: 2000, Cost: 1500, Qty: 34, Category: "Groceries", Icon: "🍚", Barcode: "123456789012"},
		{Name: "Bottled Water", Price: 150, Cost: 70, Qty: 80, Category: "Drinks", Icon: "💧", Barcode: "234567890123"},
		{Name: "T-Shirt", Price: 1200, Cost: 600, Qty: 50, Category: "Clothing", Icon: "👕", Barcode: "345678901234"},
		{Name: "Indomie", Price: 200, Cost: 60, Qty: 120, Category: "Snacks", Icon: "🍜"},
	}
	for _, in := range demo {
		if _, err := r.AddProduct(in); err != nil {
			return err
		}
	}
	return nil
}

func clearQueue(queue *repos.QueueRepo, scope string) error {
	pending, err := queue.ListAll(scope)
	if err != nil {
		return err
	}
	for _, pm := range pending {
		if err := queue.Remove(pm.ID); err != nil {
			return err
		}
	}
	return nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
