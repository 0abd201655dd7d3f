// Package gormstorage records sessions into any gorm database through
// per-table write queues drained by a background writer.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/physbridge/internal/database"
	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/internal/model/convert"
	"github.com/OCAP2/physbridge/internal/queue"
	"github.com/OCAP2/physbridge/pkg/core"
	"gorm.io/gorm"
)

// DefaultFlushInterval is how often the writer drains the queues.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds everything the backend needs. A nil DB keeps the
// backend in queue-only mode.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Bodies           *queue.Queue[model.Body]
	Constraints      *queue.Queue[model.Constraint]
	Vehicles         *queue.Queue[model.Vehicle]
	Removals         *queue.Queue[model.Removal]
	BodyStates       *queue.Queue[model.BodyState]
	ConstraintStates *queue.Queue[model.ConstraintState]
	WheelStates      *queue.Queue[model.WheelState]
	Collisions       *queue.Queue[model.Collision]
	Commands         *queue.Queue[model.CommandLog]
	StepMetrics      *queue.Queue[model.StepMetric]
}

func newQueues() *queues {
	return &queues{
		Bodies:           queue.New[model.Body](),
		Constraints:      queue.New[model.Constraint](),
		Vehicles:         queue.New[model.Vehicle](),
		Removals:         queue.New[model.Removal](),
		BodyStates:       queue.New[model.BodyState](),
		ConstraintStates: queue.New[model.ConstraintState](),
		WheelStates:      queue.New[model.WheelState](),
		Collisions:       queue.New[model.Collision](),
		Commands:         queue.New[model.CommandLog](),
		StepMetrics:      queue.New[model.StepMetric](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	mu        sync.RWMutex
	session   *model.Session

	writeMu   sync.Mutex
	lastWrite atomic.Int64
	stopChan  chan struct{}
	done      chan struct{}
}

func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{deps: deps, queues: newQueues()}
}

// DB is the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB != nil {
		if err := database.Migrate(b.deps.DB); err != nil {
			return err
		}
		b.deps.Logger.Info("Database setup complete", "dialect", b.deps.DB.Name())
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartSession inserts the session row synchronously so queued rows can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	settings, err := json.Marshal(map[string]any{
		"fixedTimeStep": s.FixedTimeStep,
		"broadphase":    s.Broadphase,
		"gravity":       s.Gravity,
		"reportSize":    s.ReportSize,
	})
	if err != nil {
		return err
	}
	row := convert.CoreToSession(*s, settings)

	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert new session: %w", err)
		}
		s.ID = row.ID
	}
	b.mu.Lock()
	b.session = &row
	b.mu.Unlock()
	b.deps.Logger.Info("Session started", "uuid", s.UUID, "id", row.ID)
	return nil
}

// EndSession flushes every queue and stamps the end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	b.mu.Unlock()
	if session == nil {
		return core.ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}

	if b.deps.DB != nil {
		if err := b.deps.DB.Model(session).Update("end_time", time.Now()).Error; err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
	}
	return nil
}

func (b *Backend) id() (uint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return 0, core.ErrNoSession
	}
	return b.session.ID, nil
}

func (b *Backend) AddBody(body *core.Body) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Bodies.Push(convert.CoreToBody(id, *body))
	return nil
}

func (b *Backend) AddConstraint(c *core.Constraint) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Constraints.Push(convert.CoreToConstraint(id, *c))
	return nil
}

func (b *Backend) AddVehicle(v *core.Vehicle) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Vehicles.Push(convert.CoreToVehicle(id, *v))
	return nil
}

func (b *Backend) RecordRemoval(r *core.Removal) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Removals.Push(convert.CoreToRemoval(id, *r))
	return nil
}

func (b *Backend) RecordBodyState(s *core.BodyState) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.BodyStates.Push(convert.CoreToBodyState(id, *s))
	return nil
}

func (b *Backend) RecordConstraintState(s *core.ConstraintState) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.ConstraintStates.Push(convert.CoreToConstraintState(id, *s))
	return nil
}

func (b *Backend) RecordWheelState(s *core.WheelState) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.WheelStates.Push(convert.CoreToWheelState(id, *s))
	return nil
}

func (b *Backend) RecordCollision(c *core.Collision) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Collisions.Push(convert.CoreToCollision(id, *c))
	return nil
}

func (b *Backend) RecordCommand(c *core.CommandLog) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.Commands.Push(convert.CoreToCommandLog(id, *c))
	return nil
}

func (b *Backend) RecordStepMetric(m *core.StepMetric) error {
	id, err := b.id()
	if err != nil {
		return err
	}
	b.queues.StepMetrics.Push(convert.CoreToStepMetric(id, *m))
	return nil
}

// QueueLengths reports the pending rows per table.
func (b *Backend) QueueLengths() map[string]int {
	q := b.queues
	return map[string]int{
		"bodies":            q.Bodies.Len(),
		"constraints":       q.Constraints.Len(),
		"vehicles":          q.Vehicles.Len(),
		"removals":          q.Removals.Len(),
		"body_states":       q.BodyStates.Len(),
		"constraint_states": q.ConstraintStates.Len(),
		"wheel_states":      q.WheelStates.Len(),
		"collisions":        q.Collisions.Len(),
		"command_logs":      q.Commands.Len(),
		"step_metrics":      q.StepMetrics.Len(),
	}
}

// LastWriteDuration is how long the previous flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush drains every queue into the database. Entities are written before
// their states. Without a DB it is a no-op and rows stay queued.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	db, log := b.deps.DB, b.deps.Logger
	err := firstErr(
		writeQueue(db, b.queues.Bodies, "bodies", log),
		writeQueue(db, b.queues.Constraints, "constraints", log),
		writeQueue(db, b.queues.Vehicles, "vehicles", log),
		writeQueue(db, b.queues.BodyStates, "body states", log),
		writeQueue(db, b.queues.ConstraintStates, "constraint states", log),
		writeQueue(db, b.queues.WheelStates, "wheel states", log),
		writeQueue(db, b.queues.Collisions, "collisions", log),
		writeQueue(db, b.queues.Removals, "removals", log),
		writeQueue(db, b.queues.Commands, "commands", log),
		writeQueue(db, b.queues.StepMetrics, "step metrics", log),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue in one transaction. On failure
// the items go back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "error", err)
		tx.Rollback()
		q.Push(items...)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return tx.Commit().Error
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
