package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/physbridge/internal/ident"
)

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry[string]()

	r.Add(42, "crate")

	got, ok := r.Get(42)
	require.True(t, ok, "expected to find entry 42")
	assert.Equal(t, "crate", got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry[string]()

	_, ok := r.Get(999)
	assert.False(t, ok, "expected not to find entry 999")
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1, 10)
	r.Add(2, 20)

	v, ok := r.Delete(1)
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Delete(1)
	assert.False(t, ok, "second delete finds nothing")
}

func TestRegistry_RangeKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry[int]()
	for _, id := range []ident.ID{5, 3, 9, 1} {
		r.Add(id, int(id))
	}
	r.Delete(9)
	r.Add(3, 33)

	var ids []ident.ID
	var vals []int
	r.Range(func(id ident.ID, v int) bool {
		ids = append(ids, id)
		vals = append(vals, v)
		return true
	})
	assert.Equal(t, []ident.ID{5, 3, 1}, ids)
	assert.Equal(t, []int{5, 33, 1}, vals)
}

func TestRegistry_RangeStops(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1, 1)
	r.Add(2, 2)

	calls := 0
	r.Range(func(ident.ID, int) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1, 1)
	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Get(1)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id ident.ID) {
			defer wg.Done()
			r.Add(id, int(id))
			r.Get(id)
		}(ident.ID(i + 1))
	}

	wg.Wait()
	assert.Equal(t, 100, r.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	assert.Equal(t, 0, c.Value())

	c.Inc()
	c.Inc()
	assert.Equal(t, 2, c.Value())

	c.Set(10)
	assert.Equal(t, 10, c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}

	wg.Wait()
	assert.Equal(t, 1000, c.Value())
}
