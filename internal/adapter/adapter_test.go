package adapter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept += d
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	t       *testing.T
	adapter *Adapter
	out     *channel.Buffered[protocol.Message]
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a, err := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock))
	require.NoError(t, err)
	h := &harness{t: t, adapter: a, out: channel.NewBuffered[protocol.Message](1024), clock: clock}
	h.send(protocol.Init{RateLimit: true})
	msgs := h.drain()
	require.Len(t, msgs, 1)
	require.IsType(t, protocol.WorldReady{}, msgs[0])
	return h
}

func (h *harness) send(cmds ...protocol.Command) {
	h.t.Helper()
	for _, c := range cmds {
		require.NoError(h.t, h.adapter.Handle(c, h.out))
	}
}

func (h *harness) drain() []protocol.Message {
	var msgs []protocol.Message
	for h.out.Len() > 0 {
		msgs = append(msgs, <-h.out.Receive())
	}
	return msgs
}

// step simulates once and returns the reports by kind, handing each
// buffer back afterwards.
func (h *harness) step(c protocol.Simulate) map[protocol.ReportKind]*protocol.Buffer {
	h.t.Helper()
	h.send(c)
	reports := make(map[protocol.ReportKind]*protocol.Buffer)
	for _, m := range h.drain() {
		if r, ok := m.(protocol.Report); ok {
			reports[r.Buffer.Kind()] = r.Buffer
		}
	}
	for _, b := range reports {
		h.send(protocol.ReturnBuffer{Buffer: b})
	}
	return reports
}

func (h *harness) addBox(id ident.ID, mass float64, pos mgl64.Vec3) {
	h.t.Helper()
	h.send(protocol.AddObject{
		ID:       id,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1},
		Mass:     mass,
		Position: pos,
		Rotation: mgl64.QuatIdent(),
	})
}

func (h *harness) addGround(id ident.ID) {
	h.t.Helper()
	h.send(protocol.AddObject{
		ID:       id,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapePlane, Normal: mgl64.Vec3{0, 1, 0}},
		Rotation: mgl64.QuatIdent(),
	})
}

func ids(b *protocol.Buffer) []ident.ID {
	out := make([]ident.ID, 0, b.Count())
	for i := 0; i < b.Count(); i++ {
		out = append(out, ident.FromFloat(b.Record(i)[0]))
	}
	return out
}

func TestHandle_BeforeInit(t *testing.T) {
	a, err := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	out := channel.NewBuffered[protocol.Message](8)

	err = a.Handle(protocol.Simulate{}, out)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Materials and the fixed step may be set before the world exists.
	assert.NoError(t, a.Handle(protocol.RegisterMaterial{ID: 1, Friction: 0.8, Restitution: 0.2}, out))
	assert.NoError(t, a.Handle(protocol.SetFixedTimeStep{Step: 1.0 / 30}, out))
	assert.Equal(t, 0, out.Len())
}

func TestInit_Broadphase(t *testing.T) {
	tests := []struct {
		name string
		init protocol.Init
		want string
	}{
		{"default", protocol.Init{}, "dynamic"},
		{"dynamic", protocol.Init{Broadphase: "dynamic"}, "dynamic"},
		{"sweepprune", protocol.Init{Broadphase: "sweepprune", AabbMin: mgl64.Vec3{-10, -10, -10}, AabbMax: mgl64.Vec3{10, 10, 10}}, "sweepprune"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.send(tt.init)
			assert.Equal(t, tt.want, h.adapter.world.Broadphase().Name())
			assert.Equal(t, mgl64.Vec3{0, -10, 0}, h.adapter.world.Gravity())
		})
	}
}

func TestInit_ResetsSession(t *testing.T) {
	h := newHarness(t)
	h.addBox(1, 1, mgl64.Vec3{})
	h.drain()
	require.Equal(t, 1, h.adapter.Bodies())

	h.send(protocol.Init{FixedTimeStep: 1.0 / 120, ReportSize: 10})
	assert.Equal(t, 0, h.adapter.Bodies())
	assert.InDelta(t, 1.0/120, h.adapter.fixedTimeStep, 1e-12)
	assert.Equal(t, 10, h.adapter.reportSize)
}

func TestMaterialApplied(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.RegisterMaterial{ID: 9, Friction: 0.8, Restitution: 0.2})
	h.send(protocol.AddObject{
		ID:         1,
		Shape:      protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 1},
		Mass:       1,
		Rotation:   mgl64.QuatIdent(),
		MaterialID: 9,
	})
	b, ok := h.adapter.bodies.Get(1)
	require.True(t, ok)
	assert.Equal(t, 0.8, b.rb.Friction())
	assert.Equal(t, 0.2, b.rb.Restitution())

	h.send(protocol.UnregisterMaterial{ID: 9})
	h.send(protocol.AddObject{
		ID:         2,
		Shape:      protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 1},
		Mass:       1,
		Rotation:   mgl64.QuatIdent(),
		MaterialID: 9,
	})
	b, ok = h.adapter.bodies.Get(2)
	require.True(t, ok)
	assert.Equal(t, 0.5, b.rb.Friction(), "engine default once the material is gone")
}

func TestRun_StopsOnClosedInput(t *testing.T) {
	a, err := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	in := channel.NewBuffered[protocol.Command](4)
	out := channel.NewBuffered[protocol.Message](16)

	in.Send(protocol.Init{})
	in.Send(protocol.Simulate{TimeStep: 1.0 / 60})
	in.Close()

	require.NoError(t, a.Run(context.Background(), in, out))
	assert.Equal(t, 1, a.Steps())
	assert.Equal(t, 5, out.Len(), "world ready plus four reports")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	in := channel.NewBuffered[protocol.Command](1)
	out := channel.NewBuffered[protocol.Message](1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, in, out) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
