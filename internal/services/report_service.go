package services

import (
	"errors"
	"sort"
	"time"

	"quickshop/internal/domain"
)

var ErrBadReportRange = errors.New("report range must be daily, weekly or monthly")

type ReportBucket struct {
	Start   int64   `json:"start"`
	End     int64   `json:"end"`
	Label   string  `json:"label"`
	Units   int     `json:"units"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

type Report struct {
	Range   string         `json:"range"`
	Buckets []ReportBucket `json:"buckets"`
	Units   int            `json:"units"`
	Revenue float64        `json:"revenue"`
	Cost    float64        `json:"cost"`
	Profit  float64        `json:"profit"`
}

type DashboardSummary struct {
	RevenueToday float64 `json:"revenueToday"`
	ProfitToday  float64 `json:"profitToday"`
	TopProduct   string  `json:"topProduct"`
}

type Insights struct {
	TotalProducts   int              `json:"totalProducts"`
	TotalStockUnits int              `json:"totalStockUnits"`
	InventoryValue  float64          `json:"inventoryValue"`
	TotalRevenue    float64          `json:"totalRevenue"`
	TotalProfit     float64          `json:"totalProfit"`
	TopSeller       string           `json:"topSeller"`
	BestCategory    string           `json:"bestCategory"`
	LowStock        []domain.Product `json:"lowStock"`
}

// ReportService aggregates sales from a state view. It never mutates state.
type ReportService struct {
	now func() time.Time
}

func NewReportService() *ReportService { return &ReportService{now: time.Now} }

const dayMillis = 24 * 60 * 60 * 1000

func startOfDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).UnixMilli()
}

// Build produces the bucketed report: 7 days, 4 weeks or 6 thirty-day months
// ending today.
func (s *ReportService) Build(state *domain.ShopState, rng string) (Report, error) {
	now := s.now()
	var buckets []ReportBucket
	switch rng {
	case "daily":
		for i := 6; i >= 0; i-- {
			start := startOfDay(now.AddDate(0, 0, -i))
			buckets = append(buckets, ReportBucket{
				Start: start,
				End:   start + dayMillis,
				Label: shortDate(start),
			})
		}
	case "weekly":
		weekEnd := startOfDay(now) + dayMillis
		const week = 7 * dayMillis
		for i := 3; i >= 0; i-- {
			start := weekEnd - int64(i+1)*week
			end := weekEnd - int64(i)*week
			buckets = append(buckets, ReportBucket{
				Start: start,
				End:   end,
				Label: shortDate(start) + " - " + shortDate(end-1),
			})
		}
	case "monthly":
		monthEnd := startOfDay(now) + dayMillis
		const month = 30 * dayMillis
		for i := 5; i >= 0; i-- {
			start := monthEnd - int64(i+1)*month
			end := monthEnd - int64(i)*month
			buckets = append(buckets, ReportBucket{
				Start: start,
				End:   end,
				Label: shortDate(start) + " - " + shortDate(end-1),
			})
		}
	default:
		return Report{}, ErrBadReportRange
	}

	for i := range buckets {
		buckets[i].Units, buckets[i].Revenue, buckets[i].Cost, buckets[i].Profit =
			aggregate(state.Sales, buckets[i].Start, buckets[i].End)
	}
	units, revenue, cost, profit := aggregate(state.Sales, buckets[0].Start, buckets[len(buckets)-1].End)
	return Report{Range: rng, Buckets: buckets, Units: units, Revenue: revenue, Cost: cost, Profit: profit}, nil
}

func aggregate(sales []domain.SaleRecord, start, end int64) (units int, revenue, cost, profit float64) {
	for _, s := range sales {
		if s.TS < start || s.TS >= end {
			continue
		}
		units += s.Qty
		revenue += s.Price * float64(s.Qty)
		cost += s.Cost * float64(s.Qty)
		profit += (s.Price - s.Cost) * float64(s.Qty)
	}
	return
}

// Dashboard reports today's revenue and profit; the top product considers all
// sales, falling back to today's leader when there is no overall history.
func (s *ReportService) Dashboard(state *domain.ShopState) DashboardSummary {
	since := startOfDay(s.now())
	_, revenue, _, profit := aggregate(state.Sales, since, since+dayMillis)
	top := topSeller(state, state.Sales)
	return DashboardSummary{RevenueToday: revenue, ProfitToday: profit, TopProduct: top}
}

// BuildInsights mirrors the local-first insight card: stock totals, inventory
// value at cost, best sellers and low-stock products.
func (s *ReportService) BuildInsights(state *domain.ShopState) Insights {
	out := Insights{
		TotalProducts: len(state.Products),
		TopSeller:     topSeller(state, state.Sales),
		LowStock:      []domain.Product{},
	}
	for _, p := range state.Products {
		out.TotalStockUnits += p.Qty
		out.InventoryValue += float64(p.Qty) * p.Cost
	}
	for _, sl := range state.Sales {
		out.TotalRevenue += sl.Price * float64(sl.Qty)
		out.TotalProfit += (sl.Price - sl.Cost) * float64(sl.Qty)
	}

	catUnits := map[string]int{}
	for _, sl := range state.Sales {
		cat := "Unknown"
		if p := findProduct(state, sl.ProductID); p != nil {
			cat = p.Category
			if cat == "" {
				cat = domain.CategoryOthers
			}
		}
		catUnits[cat] += sl.Qty
	}
	out.BestCategory = maxKey(catUnits)

	for _, p := range state.Products {
		if p.Qty <= 5 {
			out.LowStock = append(out.LowStock, p)
			if len(out.LowStock) == 6 {
				break
			}
		}
	}
	return out
}

func topSeller(state *domain.ShopState, sales []domain.SaleRecord) string {
	byProduct := map[string]int{}
	for _, s := range sales {
		byProduct[s.ProductID] += s.Qty
	}
	id := maxKey(byProduct)
	if id == "" {
		return "—"
	}
	if p := findProduct(state, id); p != nil {
		return p.Name
	}
	return "—"
}

func findProduct(state *domain.ShopState, id string) *domain.Product {
	for i := range state.Products {
		if state.Products[i].ID == id {
			return &state.Products[i]
		}
	}
	return nil
}

// maxKey picks the key with the highest count, ties broken by key order for
// stable output.
func maxKey[K ~string](counts map[K]int) K {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var best K
	bestN := 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func shortDate(ms int64) string {
	return time.UnixMilli(ms).Format("2 Jan")
}
