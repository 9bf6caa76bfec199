package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MutationKind is the closed set of queueable changes. Anything else found in
// the queue is a bug in whoever wrote the row, not a transient condition.
type MutationKind string

const (
	MutAddProduct    MutationKind = "addProduct"
	MutRemoveProduct MutationKind = "removeProduct"
	MutUpdateProduct MutationKind = "updateProduct"
	MutAddSale       MutationKind = "addSale"
	MutRemoveSale    MutationKind = "removeSale"
	MutAddStock      MutationKind = "addStock"
)

var ErrUnknownMutation = errors.New("unknown mutation kind")

// StockDelta is the addStock payload: a signed quantity adjustment.
type StockDelta struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// Mutation is a tagged variant: exactly one payload field is set, selected by
// Kind. Constructors below are the only way to build one.
type Mutation struct {
	Kind    MutationKind
	Product *Product
	Sale    *SaleRecord
	Stock   *StockDelta
}

func AddProduct(p Product) Mutation    { return Mutation{Kind: MutAddProduct, Product: &p} }
func RemoveProduct(p Product) Mutation { return Mutation{Kind: MutRemoveProduct, Product: &p} }
func UpdateProduct(p Product) Mutation { return Mutation{Kind: MutUpdateProduct, Product: &p} }
func AddSale(s SaleRecord) Mutation    { return Mutation{Kind: MutAddSale, Sale: &s} }
func RemoveSale(s SaleRecord) Mutation { return Mutation{Kind: MutRemoveSale, Sale: &s} }
func AddStock(productID string, qty int) Mutation {
	return Mutation{Kind: MutAddStock, Stock: &StockDelta{ProductID: productID, Qty: qty}}
}

// Atomic reports whether the mutation can be applied to the remote document as
// a plain set-union/set-removal, with no read of current remote state.
func (m Mutation) Atomic() bool {
	switch m.Kind {
	case MutAddProduct, MutRemoveProduct, MutAddSale, MutRemoveSale:
		return true
	}
	return false
}

// ProductID returns the id of the product this mutation touches, if any.
func (m Mutation) ProductID() string {
	switch {
	case m.Product != nil:
		return m.Product.ID
	case m.Sale != nil:
		return m.Sale.ProductID
	case m.Stock != nil:
		return m.Stock.ProductID
	}
	return ""
}

// EncodeItem serializes the payload for the queue row.
func (m Mutation) EncodeItem() ([]byte, error) {
	switch m.Kind {
	case MutAddProduct, MutRemoveProduct, MutUpdateProduct:
		return json.Marshal(m.Product)
	case MutAddSale, MutRemoveSale:
		return json.Marshal(m.Sale)
	case MutAddStock:
		return json.Marshal(m.Stock)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMutation, m.Kind)
}

// DecodeMutation rebuilds a Mutation from a queue row. Unknown kinds return
// ErrUnknownMutation so the sync engine can abandon the entry.
func DecodeMutation(kind string, item []byte) (Mutation, error) {
	switch MutationKind(kind) {
	case MutAddProduct, MutRemoveProduct, MutUpdateProduct:
		var p Product
		if err := json.Unmarshal(item, &p); err != nil {
			return Mutation{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return Mutation{Kind: MutationKind(kind), Product: &p}, nil
	case MutAddSale, MutRemoveSale:
		var s SaleRecord
		if err := json.Unmarshal(item, &s); err != nil {
			return Mutation{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return Mutation{Kind: MutationKind(kind), Sale: &s}, nil
	case MutAddStock:
		var d StockDelta
		if err := json.Unmarshal(item, &d); err != nil {
			return Mutation{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return Mutation{Kind: MutAddStock, Stock: &d}, nil
	}
	return Mutation{}, fmt.Errorf("%w: %q", ErrUnknownMutation, kind)
}

// PendingMutation is a durable queue row. ID is the auto-assigned cursor,
// OpToken the idempotency key consumed by transactional applies.
type PendingMutation struct {
	ID        int64
	Kind      string
	Item      []byte
	OpToken   string
	CreatedAt int64
}

func (p PendingMutation) Mutation() (Mutation, error) {
	return DecodeMutation(p.Kind, p.Item)
}
