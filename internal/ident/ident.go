// Package ident issues the entity identities shared by the scene and the
// engine adapter.
package ident

import (
	"strconv"
	"sync/atomic"
)

// ID names a body, constraint or vehicle on both sides of the bridge.
// It is an opaque handle; never treat it as an index or a pointer.
type ID uint64

// None is the zero ID. The allocator never issues it.
const None ID = 0

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Float returns the ID as stored in a report buffer slot.
func (id ID) Float() float64 {
	return float64(id)
}

// FromFloat reads an ID back out of a report buffer slot.
func FromFloat(f float64) ID {
	return ID(uint64(f))
}

// Allocator hands out identities from a single monotonic counter.
type Allocator struct {
	last atomic.Uint64
}

// NewAllocator creates an allocator whose first ID is 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a fresh ID. IDs are never reused.
func (a *Allocator) Next() ID {
	return ID(a.last.Add(1))
}

// Last returns the most recently issued ID, or None.
func (a *Allocator) Last() ID {
	return ID(a.last.Load())
}
