// Package bridge wires a scene to an adapter and publishes the traffic
// between them to observers.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/physbridge/internal/adapter"
	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/dispatcher"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/queue"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Topics published besides the wire names of commands and messages.
const (
	// TopicCommand carries every recordable command, payload protocol.Command.
	TopicCommand = "command"
	// TopicReport carries report buffers, payload protocol.Report. Handlers
	// run before the scene hands the buffer back, so they must be
	// registered without buffering.
	TopicReport = "report"
	// TopicStepMetric follows each world report, payload core.StepMetric.
	TopicStepMetric = "stepMetric"
)

var (
	ErrStarted    = errors.New("bridge already started")
	ErrNotStarted = errors.New("bridge not started")
)

// Publisher receives bridge events. *dispatcher.Dispatcher implements it.
type Publisher interface {
	Dispatch(e dispatcher.Event) error
	HasHandler(topic string) bool
}

type Config struct {
	Name       string
	Tag        string
	Scene      scene.Config
	Adapter    adapter.Config
	Gravity    mgl64.Vec3
	BufferSize int
}

func DefaultConfig() Config {
	return Config{
		Name:       "session",
		Scene:      scene.DefaultConfig(),
		Adapter:    adapter.DefaultConfig(),
		Gravity:    mgl64.Vec3{0, -10, 0},
		BufferSize: 1024,
	}
}

// Session runs one scene against one adapter.
type Session struct {
	cfg     Config
	info    *core.Session
	cmds    channel.Channel[protocol.Command]
	msgs    channel.Channel[protocol.Message]
	outbox  *queue.Queue[protocol.Command]
	wake    chan struct{}
	adapter *adapter.Adapter
	scene   *scene.Scene
	sink    scene.Sink
	updated chan struct{}
	pub     Publisher
	state   *session.Context
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
}

// New prepares a session. Nothing runs until Start. pub and state may be
// nil.
func New(cfg Config, sink scene.Sink, pub Publisher, state *session.Context, logger *slog.Logger, opts ...adapter.Option) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = scene.NopSink{}
	}
	if state == nil {
		state = session.NewContext()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}

	a, err := adapter.New(cfg.Adapter, logger.With("component", "adapter"), opts...)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	s := &Session{
		cfg: cfg,
		info: &core.Session{
			UUID:          id.String(),
			Name:          cfg.Name,
			Tag:           cfg.Tag,
			FixedTimeStep: cfg.Scene.FixedTimeStep,
			Broadphase:    cfg.Scene.Broadphase,
			Gravity:       core.Vec3(cfg.Gravity),
			ReportSize:    cfg.Scene.ReportSize,
		},
		cmds:    channel.New[protocol.Command](size),
		msgs:    channel.New[protocol.Message](size),
		outbox:  queue.New[protocol.Command](),
		wake:    make(chan struct{}, 1),
		adapter: a,
		updated: make(chan struct{}, 1),
		pub:     pub,
		state:   state,
		logger:  logger.With("session", id.String()),
	}
	s.sink = notifySink{Sink: sink, updated: s.updated}
	return s, nil
}

// Info describes the session for recording. StartTime is set by Start.
func (s *Session) Info() *core.Session { return s.info }

// Adapter exposes the simulation side for monitoring.
func (s *Session) Adapter() *adapter.Adapter { return s.adapter }

// Scene is nil until Start.
func (s *Session) Scene() *scene.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Start runs the adapter, creates the scene and starts pumping adapter
// messages into it. Scene calls never block on the adapter: commands wait
// in an unbounded outbox until the forwarder gets them onto the channel,
// and report buffers go straight back to the adapter.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)

	s.info.StartTime = time.Now()
	s.state.Set(s.info)

	toScene := channel.SenderFunc[protocol.Message](func(m protocol.Message) {
		_ = s.msgs.SendContext(ctx, m)
	})
	toAdapter := channel.SenderFunc[protocol.Command](func(c protocol.Command) {
		if rb, ok := c.(protocol.ReturnBuffer); ok {
			s.adapter.Return(rb.Buffer)
			return
		}
		s.observeCommand(c)
		s.outbox.Push(c)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	})

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.fail(s.adapter.Run(ctx, s.cmds, toScene))
	}()
	go func() {
		defer s.wg.Done()
		s.fail(s.forward(ctx))
	}()

	s.scene = scene.New(toAdapter, s.sink, s.cfg.Scene, s.logger.With("component", "scene"))
	if s.cfg.Gravity != (mgl64.Vec3{}) {
		s.scene.SetGravity(s.cfg.Gravity)
	}

	go func() {
		defer s.wg.Done()
		s.fail(s.pump(ctx))
	}()

	s.logger.Info("bridge started",
		"name", s.info.Name,
		"fixedTimeStep", s.info.FixedTimeStep,
		"broadphase", s.info.Broadphase)
	return nil
}

// Step requests one simulate and waits until its world report has been
// applied to the scene.
func (s *Session) Step(ctx context.Context) error {
	sc := s.Scene()
	if sc == nil {
		return ErrNotStarted
	}
	select {
	case <-s.updated:
	default:
	}
	for !sc.Simulate(0, 0) {
		if err := s.waitUpdate(ctx); err != nil {
			return err
		}
	}
	return s.waitUpdate(ctx)
}

func (s *Session) waitUpdate(ctx context.Context) error {
	select {
	case <-s.updated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the session and blocks until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Close stops both goroutines and returns the first error either of them
// hit. The scene must not be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.EndTime = time.Now()
	s.logger.Info("bridge stopped", "steps", s.state.Step(), "error", s.err)
	return s.err
}

func (s *Session) fail(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Pending is the number of commands not yet handed to the adapter.
func (s *Session) Pending() int {
	return s.outbox.Len() + s.cmds.Len()
}

// forward moves queued commands onto the adapter channel in order.
func (s *Session) forward(ctx context.Context) error {
	for {
		for {
			c, ok := s.outbox.Pop()
			if !ok {
				break
			}
			if err := s.cmds.SendContext(ctx, c); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Session) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.msgs.Receive():
			if !ok {
				return nil
			}
			s.observeMessage(msg)
			s.scene.Apply(msg)
		}
	}
}

func (s *Session) observeCommand(c protocol.Command) {
	if !protocol.Recordable(c) {
		return
	}
	step := s.state.Step()
	if _, ok := c.(protocol.Simulate); ok {
		step = s.state.Advance()
	}
	now := time.Now()
	s.publish(TopicCommand, step, c, now)
	s.publish(c.Name(), step, c, now)
}

func (s *Session) observeMessage(msg protocol.Message) {
	now := time.Now()
	step := s.state.Step()
	s.publish(msg.Name(), step, msg, now)

	r, ok := msg.(protocol.Report)
	if !ok || r.Buffer.Kind() != protocol.ReportWorld {
		return
	}
	s.publish(TopicStepMetric, step, core.StepMetric{
		Step:        step,
		Time:        now,
		Duration:    s.adapter.LastStepDuration(),
		SubSteps:    s.adapter.LastSubSteps(),
		Bodies:      s.adapter.Bodies(),
		Contacts:    s.adapter.Contacts(),
		Constraints: s.adapter.Constraints(),
	}, now)
}

func (s *Session) publish(topic string, step int, payload any, now time.Time) {
	if s.pub == nil || !s.pub.HasHandler(topic) {
		return
	}
	err := s.pub.Dispatch(dispatcher.Event{
		Topic:     topic,
		Step:      step,
		Payload:   payload,
		Timestamp: now,
	})
	if err != nil {
		s.logger.Debug("dispatch failed", "topic", topic, "error", err)
	}
}

// notifySink signals every applied world report.
type notifySink struct {
	scene.Sink
	updated chan struct{}
}

func (n notifySink) Update() {
	n.Sink.Update()
	select {
	case n.updated <- struct{}{}:
	default:
	}
}
