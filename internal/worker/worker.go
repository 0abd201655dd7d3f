package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/physbridge/internal/cache"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/internal/storage"
	"github.com/OCAP2/physbridge/pkg/core"
)

// ErrTooEarlyForStateAssociation is returned when a report names an entity
// whose creation was never recorded.
var ErrTooEarlyForStateAssociation = errors.New("too early for state association")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend storage.Backend
	State   *session.Context
	Logger  *slog.Logger
}

// Manager turns bridge events into recorder calls.
type Manager struct {
	backend storage.Backend
	state   *session.Context
	logger  *slog.Logger

	bodies      *cache.Registry[*core.Body]
	constraints *cache.Registry[*core.Constraint]
	vehicles    *cache.Registry[*core.Vehicle]

	unassociated atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Backend == nil {
		deps.Backend = storage.Nop{}
	}
	if deps.State == nil {
		deps.State = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		backend:     deps.Backend,
		state:       deps.State,
		logger:      deps.Logger,
		bodies:      cache.NewRegistry[*core.Body](),
		constraints: cache.NewRegistry[*core.Constraint](),
		vehicles:    cache.NewRegistry[*core.Vehicle](),
	}
}

// StartSession opens s in the backend and makes it the current session.
func (m *Manager) StartSession(s *core.Session) error {
	m.bodies.Reset()
	m.constraints.Reset()
	m.vehicles.Reset()
	m.unassociated.Store(0)
	if err := m.backend.StartSession(s); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	m.state.Set(s)
	m.logger.Info("recording session", "uuid", s.UUID, "name", s.Name)
	return nil
}

// EndSession closes the current session. Dispatcher queues must be
// drained first.
func (m *Manager) EndSession() error {
	if err := m.backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	m.logger.Info("session recorded",
		"bodies", m.bodies.Len(),
		"steps", m.state.Step(),
		"unassociated", m.unassociated.Load())
	return nil
}

// Unassociated counts report records dropped because their entity was
// unknown.
func (m *Manager) Unassociated() int { return int(m.unassociated.Load()) }

// Known reports whether the creation of body id has been recorded.
func (m *Manager) Known(id ident.ID) bool {
	_, ok := m.bodies.Get(id)
	return ok
}

// WriteDurationProvider is an optional interface that backends can
// implement to expose their last write duration for monitoring.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// LastWriteDuration returns the duration of the last backend write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.backend.(WriteDurationProvider); ok {
		return p.LastWriteDuration()
	}
	return 0
}

// QueueLengthProvider is implemented by backends that buffer writes.
type QueueLengthProvider interface {
	QueueLengths() map[string]int
}

// QueueLengths returns the backend's pending writes per table, or nil.
func (m *Manager) QueueLengths() map[string]int {
	if p, ok := m.backend.(QueueLengthProvider); ok {
		return p.QueueLengths()
	}
	return nil
}
