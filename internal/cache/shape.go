package cache

import (
	"strconv"
	"strings"
	"sync"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
)

// ShapeKey builds the canonical cache key for a primitive shape, for
// example "box_1_2_3" or "sphere_0.5".
func ShapeKey(kind string, params ...float64) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range params {
		b.WriteByte('_')
		b.WriteString(strconv.FormatFloat(p, 'f', -1, 64))
	}
	return b.String()
}

// ShapeCache shares primitive shapes between bodies with equal parameters
// and tracks the per-body shapes that cannot be shared.
type ShapeCache struct {
	m      sync.Mutex
	shared map[string]native.Shape
	owned  map[ident.ID]native.Shape
}

func NewShapeCache() *ShapeCache {
	return &ShapeCache{
		shared: make(map[string]native.Shape),
		owned:  make(map[ident.ID]native.Shape),
	}
}

// GetOrCreate returns the shape cached under key, building it on first use.
// A failed build caches nothing.
func (c *ShapeCache) GetOrCreate(key string, build func() (native.Shape, error)) (native.Shape, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if s, ok := c.shared[key]; ok {
		return s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	c.shared[key] = s
	return s, nil
}

// Track records a non-shared shape owned by one body.
func (c *ShapeCache) Track(owner ident.ID, s native.Shape) {
	c.m.Lock()
	defer c.m.Unlock()
	c.owned[owner] = s
}

// Release forgets the non-shared shape of owner, if any.
func (c *ShapeCache) Release(owner ident.ID) (native.Shape, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	s, ok := c.owned[owner]
	delete(c.owned, owner)
	return s, ok
}

// Len is the number of shared shapes.
func (c *ShapeCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.shared)
}

// Owned is the number of tracked per-body shapes.
func (c *ShapeCache) Owned() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.owned)
}

func (c *ShapeCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.shared = make(map[string]native.Shape)
	c.owned = make(map[ident.ID]native.Shape)
}
