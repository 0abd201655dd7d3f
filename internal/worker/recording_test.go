package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/bridge"
	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/internal/storage/memory"
	"github.com/go-gl/mathgl/mgl64"
)

// Records a live bridge session end to end into the memory backend.
func TestRecordBridgeSession(t *testing.T) {
	d, _ := newTestDispatcher(t)
	state := session.NewContext()
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	manager := NewManager(Dependencies{Backend: backend, State: state})
	manager.RegisterHandlers(d)

	cfg := bridge.DefaultConfig()
	cfg.Name = "recorded drop"
	cfg.Scene.RateLimit = false
	b, err := bridge.New(cfg, nil, d, state, nil)
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}
	if err := manager.StartSession(b.Info()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}

	body := b.Scene().AddBody(scene.BodyDesc{
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 0.5},
		Mass:     1,
		Position: mgl64.Vec3{0, 5, 0},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := b.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("failed to close bridge: %v", err)
	}
	d.Close()

	rec, ok := backend.Body(uint64(body.ID()))
	if !ok {
		t.Fatal("expected body to be recorded")
	}
	if rec.Shape != "sphere" {
		t.Errorf("expected sphere, got %q", rec.Shape)
	}
	states := backend.States(uint64(body.ID()))
	if len(states) != 5 {
		t.Fatalf("expected 5 states, got %d", len(states))
	}
	for i, s := range states {
		if s.Step != i+1 {
			t.Errorf("state %d: expected step %d, got %d", i, i+1, s.Step)
		}
	}
	if states[4].Position[1] >= 5 {
		t.Errorf("expected body to fall, y=%f", states[4].Position[1])
	}
	if manager.Unassociated() != 0 {
		t.Errorf("expected no unassociated records, got %d", manager.Unassociated())
	}

	if err := manager.EndSession(); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}
	path := backend.GetExportedFilePath()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected export at %s: %v", path, err)
	}
	if meta := backend.GetExportMetadata(); meta.SessionName != "recorded drop" || meta.Steps != 5 {
		t.Errorf("unexpected export metadata %+v", meta)
	}
}
