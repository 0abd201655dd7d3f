// Package adapter runs the simulation side of the bridge: it owns the
// native world and applies commands from the scene in arrival order.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/physbridge/internal/cache"
	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/queue"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrNotInitialized is returned for commands that arrive before Init.
var ErrNotInitialized = errors.New("world not initialized")

// Config holds the defaults used until Init overrides them.
type Config struct {
	FixedTimeStep float64
	ReportSize    int
	ReportChunk   int
	Broadphase    string
	Gravity       mgl64.Vec3
	RateLimit     bool
}

func DefaultConfig() Config {
	return Config{
		FixedTimeStep: 1.0 / 60,
		ReportSize:    50,
		ReportChunk:   50,
		Broadphase:    "dynamic",
		Gravity:       mgl64.Vec3{0, -10, 0},
		RateLimit:     true,
	}
}

// Clock is the time source of the step loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces the wall clock used to size implicit steps.
func WithClock(c Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

type body struct {
	id     ident.ID
	rb     *native.RigidBody
	motion *native.MotionState
	shape  native.Shape
}

type constraint struct {
	id    ident.ID
	kind  protocol.ConstraintType
	joint native.Constraint
	a, b  *body
}

type vehicle struct {
	id      ident.ID
	chassis *body
	raycast *native.RaycastVehicle
	tuning  native.VehicleTuning
}

// Adapter owns every native object of one simulation session.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
	clock  Clock

	world       *native.DiscreteDynamicsWorld
	bodies      *cache.Registry[*body]
	constraints *cache.Registry[*constraint]
	vehicles    *cache.Registry[*vehicle]
	byNative    map[*native.RigidBody]ident.ID
	shapes      *cache.ShapeCache
	materials   *cache.MaterialTable

	fixedTimeStep float64
	reportSize    int
	rateLimit     bool

	lastStep     time.Time
	lastDuration atomic.Int64
	lastSubSteps atomic.Int64
	steps        cache.SafeCounter
	contacts     cache.SafeCounter

	buffers  map[protocol.ReportKind]*protocol.Buffer
	returned *queue.Queue[*protocol.Buffer]
	metrics  *metrics
}

// New creates an adapter with no world. The first Init command builds it.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		cfg:           cfg,
		logger:        logger,
		clock:         systemClock{},
		bodies:        cache.NewRegistry[*body](),
		constraints:   cache.NewRegistry[*constraint](),
		vehicles:      cache.NewRegistry[*vehicle](),
		byNative:      make(map[*native.RigidBody]ident.ID),
		shapes:        cache.NewShapeCache(),
		materials:     cache.NewMaterialTable(),
		fixedTimeStep: cfg.FixedTimeStep,
		reportSize:    cfg.ReportSize,
		rateLimit:     cfg.RateLimit,
		buffers:       make(map[protocol.ReportKind]*protocol.Buffer),
		returned:      queue.New[*protocol.Buffer](),
	}
	for _, opt := range opts {
		opt(a)
	}
	m, err := newMetrics(a)
	if err != nil {
		return nil, err
	}
	a.metrics = m
	return a, nil
}

// Run applies commands until ctx is done or in is closed.
func (a *Adapter) Run(ctx context.Context, in channel.Receiver[protocol.Command], out channel.Sender[protocol.Message]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-in.Receive():
			if !ok {
				return nil
			}
			if err := a.Handle(cmd, out); err != nil {
				a.logger.Debug("command dropped", "command", cmd.Name(), "error", err)
			}
		}
	}
}

// Return hands a report buffer back from any goroutine without going
// through the command channel. Returned buffers are taken up before the
// next reports are written.
func (a *Adapter) Return(b *protocol.Buffer) {
	if b != nil {
		a.returned.Push(b)
	}
}

// Handle applies one command. References to unknown entities are
// ignored; the scene may be a step ahead of the world.
func (a *Adapter) Handle(cmd protocol.Command, out channel.Sender[protocol.Message]) error {
	defer a.metrics.command(cmd.Name())

	switch c := cmd.(type) {
	case protocol.Init:
		a.init(c, out)
		return nil
	case protocol.RegisterMaterial:
		a.materials.Set(c.ID, cache.Material{Friction: c.Friction, Restitution: c.Restitution})
		return nil
	case protocol.UnregisterMaterial:
		a.materials.Delete(c.ID)
		return nil
	case protocol.ReturnBuffer:
		a.returnBuffer(c.Buffer)
		return nil
	case protocol.SetFixedTimeStep:
		a.fixedTimeStep = c.Step
		return nil
	}

	if a.world == nil {
		return ErrNotInitialized
	}

	switch c := cmd.(type) {
	case protocol.SetGravity:
		a.world.SetGravity(c.Gravity)
	case protocol.Simulate:
		a.simulate(c, out)
	case protocol.SimulationResume:
		a.lastStep = time.Time{}

	case protocol.AddObject:
		a.addObject(c, out)
	case protocol.RemoveObject:
		a.removeObject(c.ID)
	case protocol.UpdateTransform:
		a.updateTransform(c)
	case protocol.UpdateMass:
		a.updateMass(c)
	case protocol.ApplyCentralImpulse:
		a.withBody(c.ID, func(b *body) { b.rb.ApplyCentralImpulse(c.Impulse); b.rb.Activate() })
	case protocol.ApplyImpulse:
		a.withBody(c.ID, func(b *body) { b.rb.ApplyImpulse(c.Impulse, c.Offset); b.rb.Activate() })
	case protocol.ApplyCentralForce:
		a.withBody(c.ID, func(b *body) { b.rb.ApplyCentralForce(c.Force); b.rb.Activate() })
	case protocol.ApplyForce:
		a.withBody(c.ID, func(b *body) { b.rb.ApplyForce(c.Force, c.Offset); b.rb.Activate() })
	case protocol.SetAngularVelocity:
		a.withBody(c.ID, func(b *body) { b.rb.SetAngularVelocity(c.Velocity); b.rb.Activate() })
	case protocol.SetLinearVelocity:
		a.withBody(c.ID, func(b *body) { b.rb.SetLinearVelocity(c.Velocity); b.rb.Activate() })
	case protocol.SetAngularFactor:
		a.withBody(c.ID, func(b *body) { b.rb.SetAngularFactor(c.Factor) })
	case protocol.SetLinearFactor:
		a.withBody(c.ID, func(b *body) { b.rb.SetLinearFactor(c.Factor) })
	case protocol.SetDamping:
		a.withBody(c.ID, func(b *body) { b.rb.SetDamping(c.Linear, c.Angular) })
	case protocol.SetCcdMotionThreshold:
		a.withBody(c.ID, func(b *body) { b.rb.SetCcdMotionThreshold(c.Threshold) })
	case protocol.SetCcdSweptSphereRadius:
		a.withBody(c.ID, func(b *body) { b.rb.SetCcdSweptSphereRadius(c.Radius) })

	case protocol.AddConstraint:
		a.addConstraint(c)
	case protocol.RemoveConstraint:
		a.removeConstraint(c.ID)
	case protocol.ConstraintSetBreakingImpulseThreshold:
		a.withConstraint(c.ID, func(j *constraint) { j.joint.SetBreakingImpulseThreshold(c.Threshold) })
	case protocol.HingeSetLimits, protocol.HingeEnableAngularMotor, protocol.HingeDisableMotor,
		protocol.SliderSetLimits, protocol.SliderSetRestitution,
		protocol.SliderEnableLinearMotor, protocol.SliderDisableLinearMotor,
		protocol.SliderEnableAngularMotor, protocol.SliderDisableAngularMotor,
		protocol.ConeTwistSetLimit, protocol.ConeTwistEnableMotor, protocol.ConeTwistSetMaxMotorImpulse,
		protocol.ConeTwistSetMotorTarget, protocol.ConeTwistDisableMotor,
		protocol.DofSetLinearLowerLimit, protocol.DofSetLinearUpperLimit,
		protocol.DofSetAngularLowerLimit, protocol.DofSetAngularUpperLimit,
		protocol.DofEnableAngularMotor, protocol.DofConfigureAngularMotor, protocol.DofDisableAngularMotor:
		a.mutateConstraint(c)

	case protocol.AddVehicle:
		a.addVehicle(c)
	case protocol.RemoveVehicle:
		a.removeVehicle(c.ID)
	case protocol.AddWheel:
		a.addWheel(c)
	case protocol.SetSteering:
		a.withVehicle(c.ID, func(v *vehicle) { eachWheel(v, c.Wheel, func(i int) { v.raycast.SetSteeringValue(c.Steering, i) }) })
	case protocol.SetBrake:
		a.withVehicle(c.ID, func(v *vehicle) { eachWheel(v, c.Wheel, func(i int) { v.raycast.SetBrake(c.Brake, i) }) })
	case protocol.ApplyEngineForce:
		a.withVehicle(c.ID, func(v *vehicle) { eachWheel(v, c.Wheel, func(i int) { v.raycast.ApplyEngineForce(c.Force, i) }) })
	}
	return nil
}

func (a *Adapter) init(c protocol.Init, out channel.Sender[protocol.Message]) {
	var bp native.Broadphase
	name := c.Broadphase
	if name == "" {
		name = a.cfg.Broadphase
	}
	if name == "sweepprune" {
		lo, hi := c.AabbMin, c.AabbMax
		if lo == hi {
			lo, hi = mgl64.Vec3{-50, -50, -50}, mgl64.Vec3{50, 50, 50}
		}
		bp = native.NewAxisSweep3(lo, hi)
	}

	a.world = native.NewDiscreteDynamicsWorld(bp)
	a.world.SetGravity(a.cfg.Gravity)

	a.fixedTimeStep = a.cfg.FixedTimeStep
	if c.FixedTimeStep > 0 {
		a.fixedTimeStep = c.FixedTimeStep
	}
	a.reportSize = a.cfg.ReportSize
	if c.ReportSize > 0 {
		a.reportSize = c.ReportSize
	}
	a.rateLimit = c.RateLimit

	a.bodies.Reset()
	a.constraints.Reset()
	a.vehicles.Reset()
	a.byNative = make(map[*native.RigidBody]ident.ID)
	a.shapes.Reset()
	a.lastStep = time.Time{}
	a.lastDuration.Store(0)
	a.lastSubSteps.Store(0)
	a.steps.Set(0)
	for _, kind := range protocol.ReportKinds {
		a.buffers[kind] = protocol.NewBuffer(kind, a.reportSize)
	}

	a.logger.Info("world initialized",
		"broadphase", a.world.Broadphase().Name(),
		"fixedTimeStep", a.fixedTimeStep,
		"reportSize", a.reportSize)
	out.Send(protocol.WorldReady{})
}

func (a *Adapter) withBody(id ident.ID, fn func(*body)) {
	b, ok := a.bodies.Get(id)
	if !ok {
		a.logger.Debug("unknown body", "id", id)
		return
	}
	fn(b)
}

func (a *Adapter) withConstraint(id ident.ID, fn func(*constraint)) {
	c, ok := a.constraints.Get(id)
	if !ok {
		a.logger.Debug("unknown constraint", "id", id)
		return
	}
	fn(c)
}

func (a *Adapter) withVehicle(id ident.ID, fn func(*vehicle)) {
	v, ok := a.vehicles.Get(id)
	if !ok {
		a.logger.Debug("unknown vehicle", "id", id)
		return
	}
	fn(v)
}

// Bodies returns the number of registered bodies.
func (a *Adapter) Bodies() int { return a.bodies.Len() }

// Constraints returns the number of registered constraints.
func (a *Adapter) Constraints() int { return a.constraints.Len() }

// Vehicles returns the number of registered vehicles.
func (a *Adapter) Vehicles() int { return a.vehicles.Len() }

// Steps returns the number of Simulate commands processed since Init.
func (a *Adapter) Steps() int { return a.steps.Value() }

// Contacts returns the number of collision records in the last report.
func (a *Adapter) Contacts() int { return a.contacts.Value() }

// LastStepDuration is the wall time the last Simulate spent stepping the
// world.
func (a *Adapter) LastStepDuration() time.Duration {
	return time.Duration(a.lastDuration.Load())
}

// LastSubSteps is the number of fixed sub-steps the last Simulate took.
func (a *Adapter) LastSubSteps() int { return int(a.lastSubSteps.Load()) }
