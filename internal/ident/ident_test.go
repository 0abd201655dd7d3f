package ident

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_StartsAtOne(t *testing.T) {
	a := NewAllocator()
	assert.Equal(t, None, a.Last())
	assert.Equal(t, ID(1), a.Next())
	assert.Equal(t, ID(2), a.Next())
	assert.Equal(t, ID(2), a.Last())
}

func TestAllocator_ConcurrentNeverRepeats(t *testing.T) {
	a := NewAllocator()

	const workers, per = 8, 500
	seen := make(chan ID, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				seen <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[ID]struct{}, workers*per)
	for id := range seen {
		_, dup := unique[id]
		require.False(t, dup, "id %s issued twice", id)
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, workers*per)
}

func TestID_FloatRoundTrip(t *testing.T) {
	for _, id := range []ID{1, 42, 1 << 40} {
		assert.Equal(t, id, FromFloat(id.Float()))
	}
	assert.Equal(t, "17", ID(17).String())
}
