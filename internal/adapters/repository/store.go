// Package repository defines the document store used by the review engine:
// keyed JSON documents grouped in collections, a small set of indexed string
// fields per document for equality queries, atomic multi-document batches and
// named counters.
package repository

import (
	"context"
	"maps"
	"slices"
)

// DefaultBatchLimit is the largest number of mutations a single Commit may
// carry unless a store is configured otherwise.
const DefaultBatchLimit = 500

// Document is a stored record. Fields are the indexed values used by Query;
// Body is the JSON encoding of the full record.
type Document struct {
	ID     string
	Fields map[string]string
	Body   []byte
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document{
		ID:     d.ID,
		Fields: maps.Clone(d.Fields),
		Body:   slices.Clone(d.Body),
	}
}

// FilterOp is the comparison a Filter applies.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpIn FilterOp = "in"
)

// Filter restricts a query to documents whose indexed field matches.
type Filter struct {
	Field  string
	Op     FilterOp
	Values []string
}

// Eq matches documents whose field equals value.
func Eq(field, value string) Filter {
	return Filter{Field: field, Op: OpEq, Values: []string{value}}
}

// In matches documents whose field equals any of values.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// Match reports whether doc satisfies the filter.
func (f Filter) Match(doc Document) bool {
	v, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}
	return slices.Contains(f.Values, v)
}

// Patch describes a partial update: Fields replaces indexed values and Set
// replaces top-level keys of the JSON body.
type Patch struct {
	Fields map[string]string
	Set    map[string]any
}

// MutationKind identifies the write a Mutation performs.
type MutationKind int

const (
	// MutationSet writes the whole document, replacing any existing one.
	MutationSet MutationKind = iota + 1
	// MutationUpdate applies a Patch to an existing document.
	MutationUpdate
	// MutationAppendUnique adds values to a string array in the body,
	// skipping values already present.
	MutationAppendUnique
)

// Mutation is one write inside an atomic batch.
type Mutation struct {
	Kind       MutationKind
	Collection string
	Doc        Document
	ID         string
	Patch      Patch
	Field      string
	Values     []string
}

// SetMutation writes doc to collection.
func SetMutation(collection string, doc Document) Mutation {
	return Mutation{Kind: MutationSet, Collection: collection, Doc: doc, ID: doc.ID}
}

// UpdateMutation patches an existing document.
func UpdateMutation(collection, id string, p Patch) Mutation {
	return Mutation{Kind: MutationUpdate, Collection: collection, ID: id, Patch: p}
}

// AppendUniqueMutation unions values into the body array field of an
// existing document.
func AppendUniqueMutation(collection, id, field string, values ...string) Mutation {
	return Mutation{Kind: MutationAppendUnique, Collection: collection, ID: id, Field: field, Values: values}
}

// Store provides read/write access to documents.
type Store interface {
	// Get returns ErrNotFound when the document is missing.
	Get(ctx context.Context, collection, id string) (Document, error)
	// List returns every document of the collection ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
	// Query returns the documents matching all filters, ordered by id.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Set writes doc, replacing any existing document with the same id.
	Set(ctx context.Context, collection string, doc Document) error
	// Create writes doc only if no document with its id exists; otherwise it
	// returns ErrAlreadyExists and leaves the stored document untouched.
	Create(ctx context.Context, collection string, doc Document) error
	// Update applies p to an existing document.
	Update(ctx context.Context, collection, id string, p Patch) error
	// Commit applies all mutations atomically: either every mutation is
	// visible afterwards or none is. Batches larger than BatchLimit are
	// rejected with ErrBatchTooLarge.
	Commit(ctx context.Context, muts []Mutation) error
	// BatchLimit is the maximum number of mutations per Commit.
	BatchLimit() int
	Close() error
}

// Counter allocates monotonically increasing sequence numbers.
type Counter interface {
	// Next creates the named counter at 1 if absent, otherwise increments
	// it, and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
}

// Backend is a store that also serves counters.
type Backend interface {
	Store
	Counter
}
