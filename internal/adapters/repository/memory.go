package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/cadence/pkg/metrics"
)

const memoryBackend = "memory"

// MemoryStore is an in-process Backend. Reads see a consistent view; Commit
// stages every mutation on copies and swaps them in only when all succeed.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]map[string]Document
	counters   map[string]int64
	batchLimit int
	hook       CommitHook
	commits    int
	closed     bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		docs:       make(map[string]map[string]Document),
		counters:   make(map[string]int64),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(memoryBackend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(memoryBackend, op)
	}
}

func (s *MemoryStore) BatchLimit() int { return s.batchLimit }

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (doc Document, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	d, ok := s.docs[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, collection)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) (out []Document, err error) {
	defer func(start time.Time) { observe("query", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	for _, d := range s.docs[collection] {
		if matchAll(d, filters) {
			out = append(out, d.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Document) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func matchAll(d Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(d) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) Set(ctx context.Context, collection string, doc Document) error {
	return s.Commit(ctx, []Mutation{SetMutation(collection, doc)})
}

func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) (err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.docs[collection][doc.ID]; ok {
		return fmt.Errorf("%s/%s: %w", collection, doc.ID, ErrAlreadyExists)
	}
	s.put(collection, doc.Clone())
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, p Patch) error {
	return s.Commit(ctx, []Mutation{UpdateMutation(collection, id, p)})
}

// Commit applies muts atomically.
func (s *MemoryStore) Commit(ctx context.Context, muts []Mutation) (err error) {
	defer func(start time.Time) { observe("commit", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateBatch(muts, s.batchLimit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.commits++
	if s.hook != nil {
		if err := s.hook(ctx, s.commits, muts); err != nil {
			return err
		}
	}

	type key struct{ collection, id string }
	staged := make(map[key]Document, len(muts))
	order := make([]key, 0, len(muts))
	load := func(k key) (Document, bool) {
		if d, ok := staged[k]; ok {
			return d, true
		}
		d, ok := s.docs[k.collection][k.id]
		return d, ok
	}
	stage := func(k key, d Document) {
		if _, ok := staged[k]; !ok {
			order = append(order, k)
		}
		staged[k] = d
	}

	for _, m := range muts {
		k := key{m.Collection, m.ID}
		switch m.Kind {
		case MutationSet:
			d := m.Doc.Clone()
			d.ID = m.ID
			stage(k, d)
		case MutationUpdate:
			cur, ok := load(k)
			if !ok {
				return fmt.Errorf("%s/%s: %w", m.Collection, m.ID, ErrNotFound)
			}
			next, err := ApplyPatch(cur, m.Patch)
			if err != nil {
				return err
			}
			stage(k, next)
		case MutationAppendUnique:
			cur, ok := load(k)
			if !ok {
				return fmt.Errorf("%s/%s: %w", m.Collection, m.ID, ErrNotFound)
			}
			body, changed, err := AppendUnique(cur.Body, m.Field, m.Values)
			if err != nil {
				return err
			}
			if changed {
				next := cur.Clone()
				next.Body = body
				stage(k, next)
			}
		}
	}

	for _, k := range order {
		s.put(k.collection, staged[k])
	}
	return nil
}

// put stores d; the caller holds the write lock.
func (s *MemoryStore) put(collection string, d Document) {
	c, ok := s.docs[collection]
	if !ok {
		c = make(map[string]Document)
		s.docs[collection] = c
	}
	c[d.ID] = d
}

// Next increments the named counter.
func (s *MemoryStore) Next(ctx context.Context, name string) (v int64, err error) {
	defer func(start time.Time) { observe("counter", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.counters[name]++
	return s.counters[name], nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Backend = (*MemoryStore)(nil)
