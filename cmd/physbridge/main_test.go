package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/internal/database"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scenario"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, AppName+" "+Version)
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.msgpack")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := protocol.NewLogWriter(f)
	require.NoError(t, w.Write(protocol.SetGravity{Gravity: mgl64.Vec3{0, -9.8, 0}}))
	require.NoError(t, w.Write(protocol.RemoveObject{ID: ident.ID(3)}))
	require.NoError(t, w.Write(protocol.RemoveObject{ID: ident.ID(4)}))
	require.NoError(t, f.Close())

	out, err := execute(t, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "setGravity")
	assert.Contains(t, out, "3 commands")
	assert.Regexp(t, `removeObject\s+2`, out)
}

func TestReplay_MissingFile(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "nope.msgpack"))
	assert.Error(t, err)
}

func TestRun_RequiresScenario(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestBridgeConfig(t *testing.T) {
	sc := &scenario.Scenario{FixedTimeStep: 0.01, Broadphase: "sweepprune"}
	cfg := bridgeConfig(config.PhysicsConfig{
		FixedTimeStep: 1.0 / 60,
		ReportSize:    10,
		Broadphase:    "dynamic",
		Gravity:       mgl64.Vec3{0, -10, 0},
		QueueSize:     64,
	}, sc)

	assert.Equal(t, 0.01, cfg.Scene.FixedTimeStep)
	assert.Equal(t, 0.01, cfg.Adapter.FixedTimeStep)
	assert.Equal(t, "sweepprune", cfg.Adapter.Broadphase)
	assert.Equal(t, 10, cfg.Scene.ReportSize)
	assert.Equal(t, 64, cfg.BufferSize)
	assert.False(t, cfg.Adapter.RateLimit)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	cfg := `{
		"logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
		"physics": {"rateLimit": false},
		"storage": {"type": "none"},
		"monitor": {"enabled": false}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0644))
	log := filepath.Join(dir, "commands.msgpack")

	out, err := execute(t, "run",
		"--config", dir,
		"--scenario", filepath.Join("testdata", "drop.yaml"),
		"--steps", "5",
		"--commands", log)
	require.NoError(t, err)
	assert.Contains(t, out, "drop: 5 steps")

	replayed, err := execute(t, "replay", log)
	require.NoError(t, err)
	assert.Contains(t, replayed, "addObject")
	assert.Regexp(t, `simulate\s+5`, replayed)
}

func TestReplay_FromDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	s := model.Session{UUID: "5f0c", Name: "drop", StartTime: time.Now()}
	require.NoError(t, db.Create(&s).Error)
	for i, c := range []protocol.Command{
		protocol.SetGravity{Gravity: mgl64.Vec3{0, -10, 0}},
		protocol.Simulate{},
	} {
		payload, err := protocol.Marshal(c)
		require.NoError(t, err)
		require.NoError(t, db.Create(&model.CommandLog{
			SessionID: s.ID,
			Step:      i,
			Time:      time.Now(),
			Name:      c.Name(),
			Payload:   payload,
		}).Error)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err := execute(t, "replay", "--db", "--session", "5f0c", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"drop"`)
	assert.Contains(t, out, "2 commands")
	assert.Regexp(t, `simulate\s+1`, out)
}
