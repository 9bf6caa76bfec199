package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved category names. "All" is a view filter, never stored on a product.
const (
	CategoryAll    = "All"
	CategoryOthers = "Others"
)

// AnonymousScope keys local data recorded before anyone signs in.
const AnonymousScope = "anon"

func DefaultCategories() []string {
	return []string{"Drinks", "Snacks", "Groceries", "Clothing", CategoryOthers}
}

type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	Qty       int     `json:"qty"`
	Category  string  `json:"category"`
	Barcode   string  `json:"barcode,omitempty"`
	Image     string  `json:"image,omitempty"`
	Icon      string  `json:"icon,omitempty"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
}

// SaleRecord captures unit price and cost at time of sale; later product edits
// must not rewrite sales history.
type SaleRecord struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	TS        int64   `json:"ts"`
}

// ChangeLogEntry backs per-product undo. It is local history, independent of
// the pending sync queue.
type ChangeLogEntry struct {
	Type      string `json:"type"` // add | sell
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
	TS        int64  `json:"ts"`
}

const (
	ChangeAdd  = "add"
	ChangeSell = "sell"
)

type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// ShopState is the authoritative aggregate for one scope. It is owned by the
// session that built it; readers get copies, only the recorder mutates it.
type ShopState struct {
	Products   []Product        `json:"products"`
	Sales      []SaleRecord     `json:"sales"`
	Changes    []ChangeLogEntry `json:"changes"`
	Notes      []Note           `json:"notes"`
	Categories []string         `json:"categories"`
	LastSync   int64            `json:"lastSync"`
}

// NewShopState returns an empty state seeded with the default category set.
func NewShopState() *ShopState {
	return &ShopState{
		Products:   []Product{},
		Sales:      []SaleRecord{},
		Changes:    []ChangeLogEntry{},
		Notes:      []Note{},
		Categories: DefaultCategories(),
	}
}

// Normalize fills nil sequences after decoding; absent fields default to empty
// (categories to the default set).
func (s *ShopState) Normalize() {
	if s.Products == nil {
		s.Products = []Product{}
	}
	if s.Sales == nil {
		s.Sales = []SaleRecord{}
	}
	if s.Changes == nil {
		s.Changes = []ChangeLogEntry{}
	}
	if s.Notes == nil {
		s.Notes = []Note{}
	}
	if len(s.Categories) == 0 {
		s.Categories = DefaultCategories()
	}
}

func (s *ShopState) FindProduct(id string) *Product {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i]
		}
	}
	return nil
}

// RemoveProduct drops the product and cascades removal of its sales and
// change-log entries. Returns false if the id is unknown.
func (s *ShopState) RemoveProduct(id string) bool {
	found := false
	kept := s.Products[:0]
	for _, p := range s.Products {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return false
	}
	s.Products = kept

	sales := s.Sales[:0]
	for _, sl := range s.Sales {
		if sl.ProductID != id {
			sales = append(sales, sl)
		}
	}
	s.Sales = sales

	changes := s.Changes[:0]
	for _, ch := range s.Changes {
		if ch.ProductID != id {
			changes = append(changes, ch)
		}
	}
	s.Changes = changes
	return true
}

// Clone returns a deep copy safe to hand to readers.
func (s *ShopState) Clone() *ShopState {
	return &ShopState{
		Products:   append([]Product(nil), s.Products...),
		Sales:      append([]SaleRecord(nil), s.Sales...),
		Changes:    append([]ChangeLogEntry(nil), s.Changes...),
		Notes:      append([]Note(nil), s.Notes...),
		Categories: append([]string(nil), s.Categories...),
		LastSync:   s.LastSync,
	}
}

// NormalizeCategory maps unknown or reserved categories to Others.
func (s *ShopState) NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || c == CategoryAll {
		return CategoryOthers
	}
	for _, have := range s.Categories {
		if have == c {
			return c
		}
	}
	return CategoryOthers
}

// NewID generates a client-side opaque id for products, sales and notes.
func NewID() string { return uuid.NewString() }

func NowMillis() int64 { return time.Now().UnixMilli() }
