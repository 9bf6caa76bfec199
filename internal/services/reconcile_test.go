package services_test

import (
	"context"
	"testing"

	"quickshop/internal/domain"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
	"quickshop/internal/services"
)

func reconcileEnv(t *testing.T, online bool) (*syncEnv, *repos.SnapshotRepo, *services.Reconciler) {
	t.Helper()
	env := newSyncEnv(t, online)
	snapshots := repos.NewSnapshotRepo(env.db)
	rec := services.NewReconciler(snapshots, env.queue, env.store, env.mon)
	return env, snapshots, rec
}

// First contact with a signed-in user who has no remote document yet: local
// data becomes the initial document.
func TestReconcileCreatesInitialDocument(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products, domain.Product{ID: "p1", Name: "Rice", Qty: 12})
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 1 || state.Products[0].ID != "p1" {
		t.Fatalf("state: %+v", state.Products)
	}

	doc, err := env.store.GetDocument(ctx, "users", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Exists {
		t.Fatal("remote document must be created")
	}
	var products []domain.Product
	if err := remote.DecodeField(doc, "products", &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Qty != 12 {
		t.Fatalf("remote products: %+v", products)
	}
}

// Remote existence is canonical: a product deleted from another device
// disappears locally unless a pending local edit touches it.
func TestReconcileRemoteExistenceWins(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products,
		domain.Product{ID: "a", Name: "Rice", Qty: 4},
		domain.Product{ID: "b", Name: "Water", Qty: 9},
	)
	local.LastSync = 50
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"products": []domain.Product{{ID: "a", Name: "Rice", Qty: 4}},
		"lastSync": 100,
	})

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 1 || state.Products[0].ID != "a" {
		t.Fatalf("deleted-elsewhere product must go: %+v", state.Products)
	}
}

// Locally touched products keep their local version; products added offline
// are carried even though the remote has never seen them.
func TestReconcilePendingEditsOverlay(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products,
		domain.Product{ID: "b", Name: "Water", Qty: 5},
		domain.Product{ID: "c", Name: "Indomie", Qty: 20},
	)
	local.LastSync = 50
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"products": []domain.Product{{ID: "b", Name: "Water", Qty: 9}},
		"lastSync": 100,
	})
	if _, err := env.queue.Append("u1", domain.UpdateProduct(local.Products[0])); err != nil {
		t.Fatal(err)
	}
	if _, err := env.queue.Append("u1", domain.AddProduct(local.Products[1])); err != nil {
		t.Fatal(err)
	}

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 2 {
		t.Fatalf("products: %+v", state.Products)
	}
	if p := state.FindProduct("b"); p == nil || p.Qty != 5 {
		t.Fatalf("pending edit must keep the local version: %+v", p)
	}
	if state.FindProduct("c") == nil {
		t.Fatal("offline-added product must be carried")
	}
}

// Sales union by id: a record present on both sides appears once.
func TestReconcileSalesUnion(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	shared := domain.SaleRecord{ID: "s1", ProductID: "a", Qty: 1}
	localOnly := domain.SaleRecord{ID: "s2", ProductID: "a", Qty: 2}

	local := domain.NewShopState()
	local.Sales = append(local.Sales, shared, localOnly)
	local.LastSync = 50
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"sales":    []domain.SaleRecord{shared},
		"lastSync": 100,
	})

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Sales) != 2 {
		t.Fatalf("sales union: %+v", state.Sales)
	}
}

// With nothing queued, a strictly newer local snapshot wins wholesale and is
// pushed back to the remote.
func TestReconcileNewerLocalPromoted(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products, domain.Product{ID: "z", Name: "T-Shirt", Qty: 50})
	local.LastSync = 200
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"products": []domain.Product{{ID: "old", Name: "Stale", Qty: 1}},
		"lastSync": 100,
	})

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 1 || state.Products[0].ID != "z" {
		t.Fatalf("newer local must win: %+v", state.Products)
	}
	if products := remoteProducts(t, env.store, "u1"); len(products) != 1 || products[0].ID != "z" {
		t.Fatalf("promotion must reach the remote: %+v", products)
	}
}

// Notes and categories take the remote value only when it is non-empty.
func TestReconcileNotesRemoteWinsWhenPresent(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Notes = append(local.Notes, domain.Note{ID: "n-local", Content: "local note"})
	local.Categories = []string{"Drinks", "Custom"}
	local.LastSync = 50
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"notes":    []domain.Note{{ID: "n-remote", Content: "remote note"}},
		"lastSync": 100,
	})

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Notes) != 1 || state.Notes[0].ID != "n-remote" {
		t.Fatalf("remote notes must win when present: %+v", state.Notes)
	}
	// Remote carries no categories, so the local list survives.
	if len(state.Categories) != 2 || state.Categories[1] != "Custom" {
		t.Fatalf("categories: %+v", state.Categories)
	}
}

// Offline start serves the local snapshot untouched.
func TestReconcileOfflineUsesLocal(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, false)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products, domain.Product{ID: "p1", Qty: 3})
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.seedRemote(t, "u1", map[string]any{
		"products": []domain.Product{{ID: "remote-only", Qty: 1}},
	})

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 1 || state.Products[0].ID != "p1" {
		t.Fatalf("offline load must not consult the remote: %+v", state.Products)
	}
}

// An unreachable remote degrades to local data instead of failing the session.
func TestReconcileUnreachableDegradesToLocal(t *testing.T) {
	env, snapshots, rec := reconcileEnv(t, true)
	ctx := context.Background()

	local := domain.NewShopState()
	local.Products = append(local.Products, domain.Product{ID: "p1", Qty: 3})
	if err := snapshots.Save("u1", local); err != nil {
		t.Fatal(err)
	}
	env.store.SetUnreachable(true)

	state, err := rec.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Products) != 1 || state.Products[0].ID != "p1" {
		t.Fatalf("state: %+v", state.Products)
	}
}
