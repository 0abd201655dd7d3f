// Package memory keeps a session in memory and exports it as JSON when the
// session ends.
package memory

import (
	"sync"

	"github.com/OCAP2/physbridge/internal/config"
	v1 "github.com/OCAP2/physbridge/internal/storage/memory/export/v1"
	"github.com/OCAP2/physbridge/pkg/core"
)

// Backend stores session data in memory and exports to JSON.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	bodies      map[uint64]*v1.BodyRecord
	constraints map[uint64]*v1.ConstraintRecord
	vehicles    map[uint64]*v1.VehicleRecord

	removals    []core.Removal
	collisions  []core.Collision
	commands    []core.CommandLog
	stepMetrics []core.StepMetric

	lastExportPath     string
	lastExportMetadata core.UploadMetadata
	mu                 sync.RWMutex
}

// New creates a new memory backend.
func New(cfg config.MemoryConfig) *Backend {
	b := &Backend{cfg: cfg}
	b.reset()
	return b
}

func (b *Backend) reset() {
	b.bodies = make(map[uint64]*v1.BodyRecord)
	b.constraints = make(map[uint64]*v1.ConstraintRecord)
	b.vehicles = make(map[uint64]*v1.VehicleRecord)
	b.removals = nil
	b.collisions = nil
	b.commands = nil
	b.stepMetrics = nil
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

// StartSession begins recording and drops anything held from an earlier
// session.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.reset()
	return nil
}

// EndSession finalizes and exports the session data.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

func (b *Backend) AddBody(body *core.Body) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.bodies[body.EntityID] = &v1.BodyRecord{Body: *body}
	return nil
}

func (b *Backend) AddConstraint(c *core.Constraint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.constraints[c.EntityID] = &v1.ConstraintRecord{Constraint: *c}
	return nil
}

func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.vehicles[v.EntityID] = &v1.VehicleRecord{Vehicle: *v}
	return nil
}

// RecordRemoval marks the matching record as ended at r.Step.
func (b *Backend) RecordRemoval(r *core.Removal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	switch r.Kind {
	case core.RemovedBody:
		if record, ok := b.bodies[r.EntityID]; ok {
			record.Removed = r.Step
		}
	case core.RemovedConstraint:
		if record, ok := b.constraints[r.EntityID]; ok {
			record.Removed = r.Step
		}
	case core.RemovedVehicle:
		if record, ok := b.vehicles[r.EntityID]; ok {
			record.Removed = r.Step
		}
	}
	b.removals = append(b.removals, *r)
	return nil
}

// RecordBodyState appends a state to its body. States of unknown bodies
// are dropped.
func (b *Backend) RecordBodyState(s *core.BodyState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	if record, ok := b.bodies[s.EntityID]; ok {
		record.States = append(record.States, *s)
	}
	return nil
}

func (b *Backend) RecordConstraintState(s *core.ConstraintState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	if record, ok := b.constraints[s.EntityID]; ok {
		record.States = append(record.States, *s)
	}
	return nil
}

func (b *Backend) RecordWheelState(s *core.WheelState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	if record, ok := b.vehicles[s.VehicleID]; ok {
		record.Wheels = append(record.Wheels, *s)
	}
	return nil
}

func (b *Backend) RecordCollision(c *core.Collision) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.collisions = append(b.collisions, *c)
	return nil
}

func (b *Backend) RecordCommand(c *core.CommandLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.commands = append(b.commands, *c)
	return nil
}

func (b *Backend) RecordStepMetric(m *core.StepMetric) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}

	b.stepMetrics = append(b.stepMetrics, *m)
	return nil
}

// Body looks up a recorded body by entity id.
func (b *Backend) Body(id uint64) (*core.Body, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.bodies[id]; ok {
		return &record.Body, true
	}
	return nil, false
}

// States returns a copy of the recorded states of body id.
func (b *Backend) States(id uint64) []core.BodyState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.bodies[id]
	if !ok {
		return nil
	}
	out := make([]core.BodyState, len(record.States))
	copy(out, record.States)
	return out
}
