// Package dedupe tracks client idempotency keys for submitted evaluations.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps request keys to the evaluation id that first claimed them.
type Deduper interface {
	// Claim atomically binds key to id unless key is already bound.
	// It returns the bound id and whether this call made the binding.
	Claim(ctx context.Context, key, id string) (string, bool)

	// Release forgets key so it can be claimed again. Use it when the
	// claimed submission could not be accepted (e.g., queue backpressure).
	Release(ctx context.Context, key string)

	// Lookup returns the id bound to key.
	Lookup(ctx context.Context, key string) (string, bool)

	Size() int64
}

type claim struct {
	key string
	id  string
}

// inMemoryDeduper keeps claims in a map. In bounded mode (maxSize > 0) an
// insertion-ordered list drives FIFO eviction of the oldest claim.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[key]; ok {
		return el.Value.(*claim).id, false
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.claims[key] = d.order.PushBack(&claim{key: key, id: id})
	d.size.Add(1)
	return id, true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[key]; ok {
		d.order.Remove(el)
		delete(d.claims, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Lookup(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.claims[key]
	if !ok {
		return "", false
	}
	return el.Value.(*claim).id, true
}

// evictOldest drops the earliest claim. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Front()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.claims, el.Value.(*claim).key)
	d.size.Add(-1)
}

// Size returns the current number of claims.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
