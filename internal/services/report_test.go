package services

import (
	"errors"
	"testing"
	"time"

	"quickshop/internal/domain"
)

func fixedReportService(t *testing.T) (*ReportService, time.Time) {
	t.Helper()
	now := time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)
	return &ReportService{now: func() time.Time { return now }}, now
}

func saleAt(ts time.Time, qty int, price, cost float64) domain.SaleRecord {
	return domain.SaleRecord{ID: domain.NewID(), ProductID: "p1", Qty: qty, Price: price, Cost: cost, TS: ts.UnixMilli()}
}

func TestReportDailyBuckets(t *testing.T) {
	svc, now := fixedReportService(t)

	state := domain.NewShopState()
	today := saleAt(now.Add(-1*time.Hour), 2, 100, 60)
	threeBack := saleAt(now.AddDate(0, 0, -3), 1, 100, 60)
	outside := saleAt(now.AddDate(0, 0, -10), 5, 100, 60)
	oldest := saleAt(now.AddDate(0, 0, -6).Add(time.Hour), 4, 50, 50)
	state.Sales = append(state.Sales, today, threeBack, outside, oldest)

	report, err := svc.Build(state, "daily")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Buckets) != 7 {
		t.Fatalf("daily buckets: %d", len(report.Buckets))
	}
	todayBucket := report.Buckets[6]
	if todayBucket.Units != 2 || todayBucket.Revenue != 200 || todayBucket.Cost != 120 || todayBucket.Profit != 80 {
		t.Fatalf("today bucket: %+v", todayBucket)
	}
	if report.Buckets[3].Units != 1 {
		t.Fatalf("three-days-back bucket: %+v", report.Buckets[3])
	}
	if report.Buckets[0].Units != 4 || report.Buckets[0].Profit != 0 {
		t.Fatalf("oldest bucket: %+v", report.Buckets[0])
	}
	// Totals cover the window, so the 10-day-old sale is excluded.
	if report.Units != 7 || report.Revenue != 500 {
		t.Fatalf("totals: units=%d revenue=%v", report.Units, report.Revenue)
	}
}

func TestReportWeeklyAndMonthlyShape(t *testing.T) {
	svc, now := fixedReportService(t)
	state := domain.NewShopState()
	state.Sales = append(state.Sales, saleAt(now, 1, 10, 5))

	weekly, err := svc.Build(state, "weekly")
	if err != nil {
		t.Fatal(err)
	}
	if len(weekly.Buckets) != 4 || weekly.Buckets[3].Units != 1 {
		t.Fatalf("weekly: %+v", weekly.Buckets)
	}

	monthly, err := svc.Build(state, "monthly")
	if err != nil {
		t.Fatal(err)
	}
	if len(monthly.Buckets) != 6 || monthly.Buckets[5].Units != 1 {
		t.Fatalf("monthly: %+v", monthly.Buckets)
	}
}

func TestReportBadRange(t *testing.T) {
	svc, _ := fixedReportService(t)
	if _, err := svc.Build(domain.NewShopState(), "hourly"); !errors.Is(err, ErrBadReportRange) {
		t.Fatalf("want ErrBadReportRange, got %v", err)
	}
}

func TestDashboard(t *testing.T) {
	svc, now := fixedReportService(t)

	state := domain.NewShopState()
	state.Products = append(state.Products,
		domain.Product{ID: "p1", Name: "Rice"},
		domain.Product{ID: "p2", Name: "Water"},
	)
	state.Sales = append(state.Sales,
		saleAt(now.Add(-time.Hour), 2, 100, 60),
		domain.SaleRecord{ID: domain.NewID(), ProductID: "p2", Qty: 9, Price: 10, Cost: 5, TS: now.AddDate(0, 0, -2).UnixMilli()},
	)

	d := svc.Dashboard(state)
	if d.RevenueToday != 200 || d.ProfitToday != 80 {
		t.Fatalf("dashboard: %+v", d)
	}
	// Top product considers all history, not just today.
	if d.TopProduct != "Water" {
		t.Fatalf("top product: %q", d.TopProduct)
	}
}

func TestInsights(t *testing.T) {
	svc, now := fixedReportService(t)

	state := domain.NewShopState()
	state.Products = append(state.Products,
		domain.Product{ID: "p1", Name: "Rice", Category: "Groceries", Qty: 3, Cost: 1500},
		domain.Product{ID: "p2", Name: "Water", Category: "Drinks", Qty: 80, Cost: 70},
	)
	state.Sales = append(state.Sales,
		saleAt(now, 2, 2000, 1500),
		domain.SaleRecord{ID: domain.NewID(), ProductID: "p2", Qty: 1, Price: 150, Cost: 70, TS: now.UnixMilli()},
	)

	ins := svc.BuildInsights(state)
	if ins.TotalProducts != 2 || ins.TotalStockUnits != 83 {
		t.Fatalf("insights: %+v", ins)
	}
	if ins.InventoryValue != 3*1500+80*70 {
		t.Fatalf("inventory value: %v", ins.InventoryValue)
	}
	if ins.TotalRevenue != 4150 || ins.TotalProfit != 1080 {
		t.Fatalf("totals: revenue=%v profit=%v", ins.TotalRevenue, ins.TotalProfit)
	}
	if ins.TopSeller != "Rice" || ins.BestCategory != "Groceries" {
		t.Fatalf("top=%q best=%q", ins.TopSeller, ins.BestCategory)
	}
	if len(ins.LowStock) != 1 || ins.LowStock[0].ID != "p1" {
		t.Fatalf("low stock: %+v", ins.LowStock)
	}
}

func TestInsightsEmptyState(t *testing.T) {
	svc, _ := fixedReportService(t)
	ins := svc.BuildInsights(domain.NewShopState())
	if ins.TopSeller == "" {
		t.Fatal("top seller placeholder must not be empty")
	}
	if ins.LowStock == nil {
		t.Fatal("low stock must serialize as an empty list")
	}
}
