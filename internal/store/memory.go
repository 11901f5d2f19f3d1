// internal/store/memory.go
package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process DocumentStore used by tests and as a degraded
// fallback when no database is configured. Contents do not survive restarts.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Fields),
	}
}

func (m *MemoryStore) Get(ctx context.Context, collection, key string) (Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFields(doc), nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, key string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Fields)
	}
	m.collections[collection][key] = cloneFields(fields)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, key string, ops map[string]FieldOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Fields)
	}
	doc, ok := m.collections[collection][key]
	if !ok {
		doc = make(Fields)
		m.collections[collection][key] = doc
	}

	for field, op := range ops {
		switch op.Kind {
		case OpSet:
			doc[field] = op.Value
		case OpIncrement:
			delta, _ := op.Value.(int64)
			doc[field] = asInt64(doc[field]) + delta
		case OpArrayUnion:
			values, _ := op.Value.([]string)
			doc[field] = unionStrings(asStringSlice(doc[field]), values)
		}
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], key)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filter Filter) ([]Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Fields
	for _, doc := range m.collections[collection] {
		if matchesFilter(doc, filter) {
			results = append(results, cloneFields(doc))
		}
	}
	return results, nil
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

func matchesFilter(doc Fields, filter Filter) bool {
	for k, want := range filter {
		if doc[k] != want {
			return false
		}
	}
	return true
}

func cloneFields(src Fields) Fields {
	dst := make(Fields, len(src))
	for k, v := range src {
		if s, ok := v.([]string); ok {
			v = append([]string(nil), s...)
		}
		dst[k] = v
	}
	return dst
}

// asInt64 normalizes the numeric types a document round-trip can produce.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func unionStrings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			existing = append(existing, s)
			seen[s] = true
		}
	}
	return existing
}
