// Package dedupe tracks keys already claimed by an operation so that work on
// the same key happens at most once per process.
package dedupe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records claimed keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was claimed and claims it
	// if not. It returns true when the key was already claimed.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a key so it can be claimed again.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// TripleKey is the claim key for the evaluation given by giverID about
// receiverID in a cycle.
func TripleKey(cycleID, giverID, receiverID string) string {
	return strings.Join([]string{cycleID, giverID, receiverID}, "\x1f")
}

// inMemoryDeduper keeps claims in a map until they are released. Claims are
// never evicted: a dropped claim would let a publication run twice.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an unbounded deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Store(int64(len(d.seen)))
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	d.size.Store(int64(len(d.seen)))
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
