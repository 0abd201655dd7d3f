package cache

import (
	"sync"

	"github.com/OCAP2/physbridge/internal/ident"
)

// Registry maps entity ids to records. The adapter owns it; the monitor
// only reads.
type Registry[V any] struct {
	m     sync.Mutex
	items map[ident.ID]V
	order []ident.ID
}

func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{
		items: make(map[ident.ID]V),
	}
}

func (r *Registry[V]) Reset() {
	r.m.Lock()
	defer r.m.Unlock()
	r.items = make(map[ident.ID]V)
	r.order = nil
}

func (r *Registry[V]) Get(id ident.ID) (V, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	v, ok := r.items[id]
	return v, ok
}

// Add inserts or replaces the record for id.
func (r *Registry[V]) Add(id ident.ID, v V) {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.items[id]; !ok {
		r.order = append(r.order, id)
	}
	r.items[id] = v
}

// Delete removes id and returns the record it held.
func (r *Registry[V]) Delete(id ident.ID) (V, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	v, ok := r.items[id]
	if !ok {
		return v, false
	}
	delete(r.items, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return v, true
}

func (r *Registry[V]) Len() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.items)
}

// Range calls fn in insertion order until it returns false. fn must not
// modify the registry.
func (r *Registry[V]) Range(fn func(ident.ID, V) bool) {
	r.m.Lock()
	ids := make([]ident.ID, len(r.order))
	copy(ids, r.order)
	items := make([]V, len(ids))
	for i, id := range ids {
		items[i] = r.items[id]
	}
	r.m.Unlock()

	for i, id := range ids {
		if !fn(id, items[i]) {
			return
		}
	}
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
