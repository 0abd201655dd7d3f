// Package scene is the controller side of the bridge. It mirrors the
// bodies, joints and vehicles living in the adapter, turns calls into
// commands, and folds reports back into the mirror.
package scene

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/queue"
	"github.com/go-gl/mathgl/mgl64"
)

// Sink receives scene events. Calls happen on the goroutine that applies
// messages, never while the scene is locked.
type Sink interface {
	WorldReady()
	Ready(id ident.ID)
	Update()
	Collision(id, other ident.ID, relLinearVelocity, relAngularVelocity, normal mgl64.Vec3)
}

// NopSink ignores every event. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) WorldReady()                                 {}
func (NopSink) Ready(ident.ID)                              {}
func (NopSink) Update()                                     {}
func (NopSink) Collision(_, _ ident.ID, _, _, _ mgl64.Vec3) {}

// Config is sent to the adapter as the Init command.
type Config struct {
	FixedTimeStep float64
	ReportSize    int
	Broadphase    string
	AabbMin       mgl64.Vec3
	AabbMax       mgl64.Vec3
	RateLimit     bool
}

func DefaultConfig() Config {
	return Config{
		FixedTimeStep: 1.0 / 60,
		ReportSize:    50,
		Broadphase:    "dynamic",
		RateLimit:     true,
	}
}

type readyCallback struct {
	id ident.ID
	fn func()
}

// Scene is safe for use from several goroutines.
type Scene struct {
	mu     sync.Mutex
	ids    *ident.Allocator
	out    channel.Sender[protocol.Command]
	sink   Sink
	logger *slog.Logger

	bodies      map[ident.ID]*Body
	order       []ident.ID
	constraints map[ident.ID]*Constraint
	vehicles    map[ident.ID]*Vehicle
	materials   map[ident.ID]int
	pending     *queue.Queue[readyCallback]

	inFlight bool
	steps    int
}

// New creates a scene and asks the adapter to build its world.
func New(out channel.Sender[protocol.Command], sink Sink, cfg Config, logger *slog.Logger) *Scene {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scene{
		ids:         ident.NewAllocator(),
		out:         out,
		sink:        sink,
		logger:      logger,
		bodies:      make(map[ident.ID]*Body),
		constraints: make(map[ident.ID]*Constraint),
		vehicles:    make(map[ident.ID]*Vehicle),
		materials:   make(map[ident.ID]int),
		pending:     queue.New[readyCallback](),
	}
	out.Send(protocol.Init{
		ReportSize:    cfg.ReportSize,
		Broadphase:    cfg.Broadphase,
		AabbMin:       cfg.AabbMin,
		AabbMax:       cfg.AabbMax,
		FixedTimeStep: cfg.FixedTimeStep,
		RateLimit:     cfg.RateLimit,
	})
	return s
}

func (s *Scene) send(cmds ...protocol.Command) {
	for _, c := range cmds {
		s.out.Send(c)
	}
}

func (s *Scene) SetGravity(g mgl64.Vec3) {
	s.send(protocol.SetGravity{Gravity: g})
}

func (s *Scene) SetFixedTimeStep(step float64) {
	s.send(protocol.SetFixedTimeStep{Step: step})
}

// OnSimulationResume tells the adapter to forget the wall time spent
// paused, so the next implicit step is a single fixed step.
func (s *Scene) OnSimulationResume() {
	s.send(protocol.SimulationResume{})
}

// Simulate requests one step. It returns false while the previous step's
// world report has not been applied yet. Transforms changed through
// SetPosition or SetRotation are synced first, carrying only the changed
// parts. Zero arguments let the adapter choose.
func (s *Scene) Simulate(timeStep float64, maxSubSteps int) bool {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true

	var updates []protocol.Command
	for _, id := range s.order {
		b := s.bodies[id]
		if !b.dirtyPosition && !b.dirtyRotation {
			continue
		}
		u := protocol.UpdateTransform{ID: id}
		if b.dirtyPosition {
			p := b.position
			u.Position = &p
			b.dirtyPosition = false
		}
		if b.dirtyRotation {
			q := b.rotation
			u.Rotation = &q
			b.dirtyRotation = false
		}
		updates = append(updates, u)
	}
	s.steps++
	s.mu.Unlock()

	s.send(updates...)
	s.send(protocol.Simulate{TimeStep: timeStep, MaxSubSteps: maxSubSteps})
	return true
}

// InFlight reports whether a step awaits its world report.
func (s *Scene) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Steps is the number of step requests sent.
func (s *Scene) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Apply folds one adapter message into the scene. Report buffers are
// handed back to the adapter once decoded.
func (s *Scene) Apply(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.WorldReady:
		s.sink.WorldReady()
	case protocol.ObjectReady:
		s.ready(m.ID)
	case protocol.Report:
		s.report(m.Buffer)
		s.send(protocol.ReturnBuffer{Buffer: m.Buffer})
	}
}

func (s *Scene) ready(id ident.ID) {
	s.mu.Lock()
	b, ok := s.bodies[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	b.ready = true

	run := s.pending.Take(func(cb readyCallback) bool { return cb.id == id })
	s.mu.Unlock()

	for _, cb := range run {
		cb.fn()
	}
	s.sink.Ready(id)
}

// OnReady runs fn once the adapter has acknowledged body id, or right
// away when it already has.
func (s *Scene) OnReady(id ident.ID, fn func()) {
	s.mu.Lock()
	b, ok := s.bodies[id]
	if ok && b.ready {
		s.mu.Unlock()
		fn()
		return
	}
	s.pending.Push(readyCallback{id: id, fn: fn})
	s.mu.Unlock()
}
