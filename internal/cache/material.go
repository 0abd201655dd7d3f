package cache

import (
	"sync"

	"github.com/OCAP2/physbridge/internal/ident"
)

// Material is a registered surface: friction and restitution applied to
// every body that references it.
type Material struct {
	Friction    float64
	Restitution float64
}

// MaterialTable maps material ids to surfaces for the running world
type MaterialTable struct {
	mu        sync.RWMutex
	materials map[ident.ID]Material
}

// NewMaterialTable creates an empty table
func NewMaterialTable() *MaterialTable {
	return &MaterialTable{
		materials: make(map[ident.ID]Material),
	}
}

// Get retrieves a material by id
func (c *MaterialTable) Get(id ident.ID) (Material, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.materials[id]
	return m, ok
}

// Set stores a material, replacing any previous one with the same id
func (c *MaterialTable) Set(id ident.ID, m Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.materials[id] = m
}

// Delete removes a material by id
func (c *MaterialTable) Delete(id ident.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.materials, id)
}

func (c *MaterialTable) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.materials)
}

// Reset clears all materials
func (c *MaterialTable) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.materials = make(map[ident.ID]Material)
}
