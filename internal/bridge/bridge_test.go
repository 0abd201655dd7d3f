package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/dispatcher"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics map[string]bool
	events []dispatcher.Event
}

func newFakePublisher(topics ...string) *fakePublisher {
	p := &fakePublisher{topics: make(map[string]bool)}
	for _, t := range topics {
		p.topics[t] = true
	}
	return p
}

func (p *fakePublisher) HasHandler(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topics[topic]
}

func (p *fakePublisher) Dispatch(e dispatcher.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) byTopic(topic string) []dispatcher.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []dispatcher.Event
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "drop test"
	cfg.Scene.RateLimit = false
	cfg.Adapter.RateLimit = false
	return cfg
}

func startSession(t *testing.T, pub Publisher, state *session.Context) *Session {
	t.Helper()
	s, err := New(testConfig(), nil, pub, state, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dropBox(sc *scene.Scene) *scene.Body {
	return sc.AddBody(scene.BodyDesc{
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1},
		Mass:     1,
		Position: mgl64.Vec3{0, 10, 0},
	})
}

func TestNewDescribesSession(t *testing.T) {
	s, err := New(testConfig(), nil, nil, nil, nil)
	require.NoError(t, err)

	info := s.Info()
	assert.Len(t, info.UUID, 36)
	assert.Equal(t, "drop test", info.Name)
	assert.Equal(t, core.Vec3{0, -10, 0}, info.Gravity)
	assert.InDelta(t, 1.0/60, info.FixedTimeStep, 1e-12)
	assert.Nil(t, s.Scene())
	assert.True(t, info.StartTime.IsZero())
}

func TestStartTwice(t *testing.T) {
	s := startSession(t, nil, nil)
	assert.ErrorIs(t, s.Start(context.Background()), ErrStarted)
}

func TestStepBeforeStart(t *testing.T) {
	s, err := New(testConfig(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Step(context.Background()), ErrNotStarted)
	assert.NoError(t, s.Close())
}

func TestStepMovesBodies(t *testing.T) {
	state := session.NewContext()
	s := startSession(t, nil, state)
	b := dropBox(s.Scene())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Step(ctx))
	}

	assert.Equal(t, 10, state.Step())
	assert.Equal(t, 10, s.Scene().Steps())
	assert.Less(t, b.Position().Y(), 10.0)
	assert.Equal(t, s.Info(), state.Session())
	assert.Equal(t, 1, s.Adapter().Bodies())
}

func TestPublishesTraffic(t *testing.T) {
	pub := newFakePublisher(TopicCommand, TopicReport, TopicStepMetric, "addObject", "worldReady")
	s := startSession(t, pub, nil)
	dropBox(s.Scene())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Step(ctx))
	}
	require.NoError(t, s.Close())

	var names []string
	for _, e := range pub.byTopic(TopicCommand) {
		names = append(names, e.Payload.(protocol.Command).Name())
	}
	assert.Equal(t, []string{"init", "setGravity", "addObject", "simulate", "simulate", "simulate"}, names)
	assert.NotContains(t, names, "returnBuffer")

	added := pub.byTopic("addObject")
	require.Len(t, added, 1)
	assert.Equal(t, 0, added[0].Step)

	assert.Len(t, pub.byTopic("worldReady"), 1)

	metrics := pub.byTopic(TopicStepMetric)
	require.Len(t, metrics, 3)
	for i, e := range metrics {
		m := e.Payload.(core.StepMetric)
		assert.Equal(t, i+1, e.Step)
		assert.Equal(t, i+1, m.Step)
		assert.Equal(t, 1, m.Bodies)
		assert.GreaterOrEqual(t, m.SubSteps, 1)
	}

	// One report per kind per step.
	assert.Len(t, pub.byTopic(TopicReport), 3*len(protocol.ReportKinds))
}

func TestUnsubscribedTopicsAreSkipped(t *testing.T) {
	pub := newFakePublisher()
	s := startSession(t, pub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Step(ctx))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Empty(t, pub.events)
}

func TestRunStopsWithContext(t *testing.T) {
	s, err := New(testConfig(), nil, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Scene() != nil }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, s.Info().EndTime.IsZero())
}

func TestSceneNeverBlocksOnAdapter(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 8
	s, err := New(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	sc := s.Scene()

	for i := 0; i < 20; i++ {
		sc.AddBody(scene.BodyDesc{
			Shape:    protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 0.5},
			Mass:     1,
			Position: mgl64.Vec3{float64(i) * 2, 10, 0},
		})
	}

	// Each round floods the channels while a step is in flight, so the
	// adapter has ready acks and reports queued behind the new bodies.
	const rounds, perRound = 5, 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := 0; r < rounds; r++ {
			sc.Simulate(0, 0)
			for i := 0; i < perRound; i++ {
				sc.AddBody(scene.BodyDesc{
					Shape:    protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 0.5},
					Position: mgl64.Vec3{float64(i) * 3, -50 - float64(r)*3, 0},
				})
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("scene blocked with %d commands pending", s.Pending())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, s.Step(ctx))
	assert.Equal(t, 20+rounds*perRound, s.Adapter().Bodies())
	assert.Equal(t, 0, s.Pending())
}
