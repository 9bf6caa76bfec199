package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"

	"quickshop/internal/domain"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
	"quickshop/internal/services"
)

type syncEnv struct {
	db    *sqlx.DB
	queue *repos.QueueRepo
	store *remote.MemStore
	mon   *remote.ManualMonitor
}

func newSyncEnv(t *testing.T, online bool) *syncEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &syncEnv{
		db:    db,
		queue: repos.NewQueueRepo(db),
		store: remote.NewMemStore(),
		mon:   remote.NewManualMonitor(online),
	}
}

// seedDoc gives the scope a remote document to sync into, the way
// reconciliation does on first contact.
func (e *syncEnv) seedDoc(t *testing.T, scope string, products []domain.Product) {
	t.Helper()
	err := e.store.SetDocument(context.Background(), "users", scope, map[string]any{
		"products": products,
		"sales":    []domain.SaleRecord{},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
}

// seedRemote writes an arbitrary remote document for the scope.
func (e *syncEnv) seedRemote(t *testing.T, scope string, data map[string]any) {
	t.Helper()
	if err := e.store.SetDocument(context.Background(), "users", scope, data, false); err != nil {
		t.Fatal(err)
	}
}

func remoteProducts(t *testing.T, store *remote.MemStore, scope string) []domain.Product {
	t.Helper()
	doc, err := store.GetDocument(context.Background(), "users", scope)
	if err != nil {
		t.Fatal(err)
	}
	var products []domain.Product
	if err := remote.DecodeField(doc, "products", &products); err != nil {
		t.Fatal(err)
	}
	return products
}

func remoteSales(t *testing.T, store *remote.MemStore, scope string) []domain.SaleRecord {
	t.Helper()
	doc, err := store.GetDocument(context.Background(), "users", scope)
	if err != nil {
		t.Fatal(err)
	}
	var sales []domain.SaleRecord
	if err := remote.DecodeField(doc, "sales", &sales); err != nil {
		t.Fatal(err)
	}
	return sales
}

func queueLen(t *testing.T, q *repos.QueueRepo, scope string) int {
	t.Helper()
	n, err := q.Len(scope)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// An offline session records a product and a sale; once connectivity returns,
// one drain pass lands everything and the remote stock reflects the sale.
func TestDrainOfflineSessionCatchesUp(t *testing.T) {
	env := newSyncEnv(t, false)
	ctx := context.Background()
	env.seedDoc(t, "u1", nil)

	snapshots := repos.NewSnapshotRepo(env.db)
	rec := services.NewRecorder("u1", domain.NewShopState(), snapshots, env.queue)

	p, err := rec.AddProduct(services.ProductInput{Name: "Rice (5kg)", Price: 2000, Cost: 1500, Qty: 10, Category: "Groceries"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Sell(p.ID, 3); err != nil {
		t.Fatal(err)
	}

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	synced, err := syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 0 || queueLen(t, env.queue, "u1") != 3 {
		t.Fatalf("offline drain must leave the queue intact: synced=%d len=%d", synced, queueLen(t, env.queue, "u1"))
	}

	env.mon.SetOnline(true)
	synced, err = syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 3 {
		t.Fatalf("want 3 synced, got %d", synced)
	}
	if n := queueLen(t, env.queue, "u1"); n != 0 {
		t.Fatalf("queue not drained: %d left", n)
	}

	products := remoteProducts(t, env.store, "u1")
	if len(products) != 1 || products[0].Qty != 7 {
		t.Fatalf("remote products: %+v", products)
	}
	sales := remoteSales(t, env.store, "u1")
	if len(sales) != 1 || sales[0].Qty != 3 || sales[0].Price != 2000 || sales[0].Cost != 1500 {
		t.Fatalf("remote sales: %+v", sales)
	}
}

// An oversell is clamped to zero locally; the queued delta reflects the stock
// actually removed, so the drained remote count lands at zero too instead of
// going negative.
func TestDrainOversellKeepsRemoteAtZero(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", nil)

	snapshots := repos.NewSnapshotRepo(env.db)
	rec := services.NewRecorder("u1", domain.NewShopState(), snapshots, env.queue)

	p, err := rec.AddProduct(services.ProductInput{Name: "Rice (5kg)", Price: 2000, Cost: 1500, Qty: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Sell(p.ID, 5); err != nil {
		t.Fatal(err)
	}

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	if _, err := syncer.Drain(ctx); err != nil {
		t.Fatal(err)
	}

	products := remoteProducts(t, env.store, "u1")
	if len(products) != 1 || products[0].Qty != 0 {
		t.Fatalf("remote qty after oversell: %+v", products)
	}
	if local := rec.View().Products[0].Qty; local != 0 {
		t.Fatalf("local qty after oversell: %d", local)
	}
}

// Two queued edits to the same product apply in order and leave exactly one
// entry for it, carrying the later values.
func TestDrainSequentialUpdatesLastWins(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()

	base := domain.Product{ID: "p1", Name: "Water", Price: 150, Cost: 70, Qty: 3}
	env.seedDoc(t, "u1", []domain.Product{base})

	first := base
	first.Qty = 5
	second := base
	second.Qty = 8
	if _, err := env.queue.Append("u1", domain.UpdateProduct(first)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.queue.Append("u1", domain.UpdateProduct(second)); err != nil {
		t.Fatal(err)
	}

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	synced, err := syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 2 {
		t.Fatalf("want 2 synced, got %d", synced)
	}

	products := remoteProducts(t, env.store, "u1")
	if len(products) != 1 {
		t.Fatalf("update must not duplicate the product: %+v", products)
	}
	if products[0].Qty != 8 {
		t.Fatalf("later edit must win, got qty %d", products[0].Qty)
	}
}

// A row with an unknown kind is abandoned after one attempt; entries behind it
// still sync in the same pass.
func TestDrainAbandonsMalformedRow(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", nil)

	_, err := env.db.Exec(`
		INSERT INTO pending_sync(scope_key, kind, item, op_token, created_at)
		VALUES ('u1', 'teleportProduct', '{}', 'tok-1', 0)
	`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.queue.Append("u1", domain.AddProduct(domain.Product{ID: "p1", Name: "Rice"})); err != nil {
		t.Fatal(err)
	}

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	synced, err := syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 1 {
		t.Fatalf("valid entry behind the poison row must sync, got %d", synced)
	}
	if n := queueLen(t, env.queue, "u1"); n != 0 {
		t.Fatalf("poison row must be dropped, %d rows left", n)
	}
	if products := remoteProducts(t, env.store, "u1"); len(products) != 1 {
		t.Fatalf("remote products: %+v", products)
	}
}

// A failing entry stays queued without blocking the rest of the pass, and
// syncs on the next one.
func TestDrainFailureIsolation(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", nil)

	if _, err := env.queue.Append("u1", domain.AddProduct(domain.Product{ID: "p1"})); err != nil {
		t.Fatal(err)
	}
	if _, err := env.queue.Append("u1", domain.AddProduct(domain.Product{ID: "p2"})); err != nil {
		t.Fatal(err)
	}

	env.store.FailNext(remote.ErrUnreachable)
	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	synced, err := syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 1 {
		t.Fatalf("want 1 synced past the failure, got %d", synced)
	}
	if n := queueLen(t, env.queue, "u1"); n != 1 {
		t.Fatalf("failed entry must stay queued, len=%d", n)
	}

	synced, err = syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 1 || queueLen(t, env.queue, "u1") != 0 {
		t.Fatalf("retry pass: synced=%d len=%d", synced, queueLen(t, env.queue, "u1"))
	}

	products := remoteProducts(t, env.store, "u1")
	if len(products) != 2 {
		t.Fatalf("both products must land: %+v", products)
	}
}

// A stock delta whose remote write committed but whose queue row survived a
// crash is recognized by its op token and not applied again.
func TestDrainStockDeltaAppliedOnce(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", []domain.Product{{ID: "p1", Qty: 10}})

	if _, err := env.queue.Append("u1", domain.AddStock("p1", -3)); err != nil {
		t.Fatal(err)
	}
	pending, err := env.queue.ListAll("u1")
	if err != nil {
		t.Fatal(err)
	}
	row := pending[0]

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	if _, err := syncer.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if got := remoteProducts(t, env.store, "u1"); got[0].Qty != 7 {
		t.Fatalf("qty after first apply: %d", got[0].Qty)
	}

	// Re-insert the same row, token included, as if the delete never made
	// it to disk.
	_, err = env.db.Exec(`
		INSERT INTO pending_sync(scope_key, kind, item, op_token, created_at)
		VALUES ('u1', ?, ?, ?, ?)
	`, row.Kind, string(row.Item), row.OpToken, row.CreatedAt)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := syncer.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if n := queueLen(t, env.queue, "u1"); n != 0 {
		t.Fatalf("replayed row must clear, len=%d", n)
	}
	if got := remoteProducts(t, env.store, "u1"); got[0].Qty != 7 {
		t.Fatalf("delta double-counted: qty %d", got[0].Qty)
	}
}

// The anonymous scope has no remote document and never drains.
func TestDrainSkipsAnonymousScope(t *testing.T) {
	env := newSyncEnv(t, true)

	if _, err := env.queue.Append(domain.AnonymousScope, domain.AddProduct(domain.Product{ID: "p1"})); err != nil {
		t.Fatal(err)
	}
	syncer := services.NewSyncer(domain.AnonymousScope, env.queue, env.store, env.mon)
	synced, err := syncer.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if synced != 0 || queueLen(t, env.queue, domain.AnonymousScope) != 1 {
		t.Fatal("anonymous data must stay local")
	}
}

// Concurrent drain calls never double-apply: the pass guard plus op tokens
// keep each delta counted once no matter how the calls interleave.
func TestDrainConcurrentCallsApplyOnce(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", []domain.Product{{ID: "p1", Qty: 10}})

	for i := 0; i < 5; i++ {
		if _, err := env.queue.Append("u1", domain.AddStock("p1", -1)); err != nil {
			t.Fatal(err)
		}
	}

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	var wg sync.WaitGroup
	var total int64
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := syncer.Drain(ctx)
			if err != nil {
				t.Error(err)
			}
			atomic.AddInt64(&total, int64(n))
		}()
	}
	wg.Wait()

	// One call may have lost the guard and synced nothing; a third pass
	// finishes whatever is left.
	n, err := syncer.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	total += int64(n)

	if total != 5 {
		t.Fatalf("want 5 applies across passes, got %d", total)
	}
	if got := remoteProducts(t, env.store, "u1"); got[0].Qty != 5 {
		t.Fatalf("qty after concurrent drains: %d", got[0].Qty)
	}
	if queueLen(t, env.queue, "u1") != 0 {
		t.Fatal("queue must end empty")
	}
}

// PushDoc merges the selected fields without clobbering queue-tracked ones.
func TestPushDocMergesSelectedFields(t *testing.T) {
	env := newSyncEnv(t, true)
	ctx := context.Background()
	env.seedDoc(t, "u1", []domain.Product{{ID: "p1", Qty: 4}})

	state := domain.NewShopState()
	state.Notes = append(state.Notes, domain.Note{ID: "n1", Content: "order more rice"})

	syncer := services.NewSyncer("u1", env.queue, env.store, env.mon)
	if err := syncer.PushDoc(ctx, state, "notes", "categories"); err != nil {
		t.Fatal(err)
	}

	doc, err := env.store.GetDocument(ctx, "users", "u1")
	if err != nil {
		t.Fatal(err)
	}
	var notes []domain.Note
	if err := remote.DecodeField(doc, "notes", &notes); err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Content != "order more rice" {
		t.Fatalf("notes: %+v", notes)
	}
	var lastSync int64
	if err := remote.DecodeField(doc, "lastSync", &lastSync); err != nil {
		t.Fatal(err)
	}
	if lastSync == 0 {
		t.Fatal("push must stamp lastSync")
	}
	if products := remoteProducts(t, env.store, "u1"); len(products) != 1 {
		t.Fatalf("merge must keep products: %+v", products)
	}
}
