// Package store abstracts the persistence collaborator as a document store
// with get/set/update/query semantics and atomic field operations.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist. Callers must treat
// a missing record as a normal outcome, never a crash.
var ErrNotFound = errors.New("store: document not found")

// Fields is a flat document body.
type Fields map[string]interface{}

// FieldOp describes a partial update applied atomically by the backend.
type FieldOp struct {
	Kind  FieldOpKind
	Value interface{}
}

// FieldOpKind enumerates the supported atomic update operations.
type FieldOpKind int

const (
	// OpSet replaces the field value.
	OpSet FieldOpKind = iota
	// OpIncrement adds an int64 delta to a numeric field.
	OpIncrement
	// OpArrayUnion appends values to an array field, skipping duplicates.
	OpArrayUnion
)

// Set builds a replace operation.
func Set(v interface{}) FieldOp { return FieldOp{Kind: OpSet, Value: v} }

// Increment builds an atomic numeric increment.
func Increment(delta int64) FieldOp { return FieldOp{Kind: OpIncrement, Value: delta} }

// ArrayUnion builds a duplicate-free array append.
func ArrayUnion(values ...string) FieldOp { return FieldOp{Kind: OpArrayUnion, Value: values} }

// Filter selects documents by exact field equality.
type Filter map[string]interface{}

// DocumentStore is the persistence contract consumed by the cache and
// pattern layers. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// Get fetches one document; ErrNotFound when absent.
	Get(ctx context.Context, collection, key string) (Fields, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, collection, key string, fields Fields) error
	// Update applies partial field operations; the document is created when
	// absent (upsert), matching the feedback loop's first-write behavior.
	Update(ctx context.Context, collection, key string, ops map[string]FieldOp) error
	// Delete removes a document; deleting an absent document is not an error.
	Delete(ctx context.Context, collection, key string) error
	// Query streams documents matching the filter.
	Query(ctx context.Context, collection string, filter Filter) ([]Fields, error)
	// Close releases the backing connection.
	Close(ctx context.Context) error
}
