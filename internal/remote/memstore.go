package remote

import (
	"context"
	"reflect"
	"sync"
)

// MemStore is an in-memory DocStore used by tests and the dev backend. It
// reproduces the semantics the sync core relies on: value-equality
// union/remove on array fields and serialized read-modify-write transactions.
// Faults can be injected to exercise retry paths.
type MemStore struct {
	mu          sync.Mutex
	docs        map[string]map[string]any
	unreachable bool
	failNext    error
}

func NewMemStore() *MemStore {
	return &MemStore{docs: map[string]map[string]any{}}
}

// SetUnreachable makes every call fail with ErrUnreachable until cleared.
func (m *MemStore) SetUnreachable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable = down
}

// FailNext makes the next store call return err, then resets.
func (m *MemStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemStore) gate() error {
	if m.unreachable {
		return ErrUnreachable
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	return nil
}

func key(collection, id string) string { return collection + "/" + id }

func (m *MemStore) GetDocument(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return Document{}, err
	}
	data, ok := m.docs[key(collection, id)]
	if !ok {
		return Document{Exists: false}, nil
	}
	return Document{Exists: true, Data: deepCopy(data)}, nil
}

func (m *MemStore) SetDocument(_ context.Context, collection, id string, data map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return err
	}
	m.setLocked(collection, id, data, merge)
	return nil
}

func (m *MemStore) setLocked(collection, id string, data map[string]any, merge bool) {
	k := key(collection, id)
	cur, ok := m.docs[k]
	if !ok || !merge {
		cur = map[string]any{}
	}
	for f, v := range data {
		cur[f] = normalize(v)
	}
	m.docs[k] = cur
}

func (m *MemStore) UpdateFields(_ context.Context, collection, id string, ops map[string]ArrayOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return err
	}
	k := key(collection, id)
	doc, ok := m.docs[k]
	if !ok {
		return &StoreError{Op: "update", Err: ErrDocMissing}
	}
	for field, op := range ops {
		arr, _ := doc[field].([]any)
		switch op.Kind {
		case OpArrayUnion:
			for _, v := range op.Values {
				v = normalize(v)
				if !containsValue(arr, v) {
					arr = append(arr, v)
				}
			}
		case OpArrayRemove:
			kept := arr[:0]
			for _, have := range arr {
				removed := false
				for _, v := range op.Values {
					if reflect.DeepEqual(have, normalize(v)) {
						removed = true
						break
					}
				}
				if !removed {
					kept = append(kept, have)
				}
			}
			arr = kept
		}
		doc[field] = arr
	}
	m.docs[k] = doc
	return nil
}

type memTx struct {
	store  *MemStore
	writes []func()
}

func (t *memTx) Get(collection, id string) (Document, error) {
	data, ok := t.store.docs[key(collection, id)]
	if !ok {
		return Document{Exists: false}, nil
	}
	return Document{Exists: true, Data: deepCopy(data)}, nil
}

func (t *memTx) Update(collection, id string, data map[string]any) error {
	if _, ok := t.store.docs[key(collection, id)]; !ok {
		return &StoreError{Op: "tx.update", Err: ErrDocMissing}
	}
	t.writes = append(t.writes, func() {
		t.store.setLocked(collection, id, data, true)
	})
	return nil
}

// RunTransaction holds the store lock for the whole callback, so concurrent
// transactions are serialized. Writes are staged and committed only if fn
// returns nil.
func (m *MemStore) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return err
	}
	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}
	for _, commit := range tx.writes {
		commit()
	}
	return nil
}

func containsValue(arr []any, v any) bool {
	for _, have := range arr {
		if reflect.DeepEqual(have, v) {
			return true
		}
	}
	return false
}

// normalize routes values through the JSON representation so stored data
// compares the way a wire round trip would.
func normalize(v any) any {
	out, err := Encode(v)
	if err != nil {
		return v
	}
	return out
}

func deepCopy(data map[string]any) map[string]any {
	out, err := Encode(data)
	if err != nil {
		return data
	}
	if m, ok := out.(map[string]any); ok {
		return m
	}
	return data
}
