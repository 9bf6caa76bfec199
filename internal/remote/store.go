package remote

import (
	"context"
	"encoding/json"
)

// The hosted document store is an external collaborator; this package only
// pins down the contract the sync core needs from it: document get/set/merge,
// array-union/array-remove field updates, and transactional read-modify-write.

type Document struct {
	Exists bool
	Data   map[string]any
}

type ArrayOpKind int

const (
	OpArrayUnion ArrayOpKind = iota
	OpArrayRemove
)

// ArrayOp expresses a merge-safe set-union or set-removal on an array field.
// Applying the same op twice yields the same array as applying it once.
type ArrayOp struct {
	Kind   ArrayOpKind
	Values []any
}

func ArrayUnion(values ...any) ArrayOp  { return ArrayOp{Kind: OpArrayUnion, Values: values} }
func ArrayRemove(values ...any) ArrayOp { return ArrayOp{Kind: OpArrayRemove, Values: values} }

// Tx is the handle available inside RunTransaction.
type Tx interface {
	Get(collection, id string) (Document, error)
	Update(collection, id string, data map[string]any) error
}

type DocStore interface {
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	// SetDocument writes the document; with merge set, absent fields keep
	// their remote values.
	SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	UpdateFields(ctx context.Context, collection, id string, ops map[string]ArrayOp) error
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Encode converts a domain value to the store's generic representation via a
// JSON round trip, so equality in union/remove matches what a real document
// store would compare.
func Encode(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeField unmarshals one document field into a typed destination. A
// missing field leaves dst untouched.
func DecodeField(doc Document, field string, dst any) error {
	raw, ok := doc.Data[field]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
