package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *core.Session {
	return &core.Session{
		UUID:          "a1b2",
		Name:          "drop test: 1",
		Tag:           "smoke",
		StartTime:     time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		FixedTimeStep: 0.5,
	}
}

func started(t *testing.T, cfg config.MemoryConfig) *Backend {
	t.Helper()
	b := New(cfg)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(testSession()))
	return b
}

func TestRecordOutsideSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	assert.ErrorIs(t, b.AddBody(&core.Body{EntityID: 1}), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordCollision(&core.Collision{}), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordStepMetric(&core.StepMetric{}), core.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), core.ErrNoSession)
}

func TestStartSessionResets(t *testing.T) {
	b := started(t, config.MemoryConfig{})
	require.NoError(t, b.AddBody(&core.Body{EntityID: 4}))
	require.NoError(t, b.RecordCollision(&core.Collision{BodyA: 4}))

	require.NoError(t, b.StartSession(testSession()))

	_, ok := b.Body(4)
	assert.False(t, ok)
	assert.Empty(t, b.collisions)
}

func TestBodyStates(t *testing.T) {
	b := started(t, config.MemoryConfig{})
	require.NoError(t, b.AddBody(&core.Body{EntityID: 2, Shape: "box", Mass: 1}))

	require.NoError(t, b.RecordBodyState(&core.BodyState{EntityID: 2, Step: 1}))
	require.NoError(t, b.RecordBodyState(&core.BodyState{EntityID: 2, Step: 2}))
	require.NoError(t, b.RecordBodyState(&core.BodyState{EntityID: 99, Step: 2}))

	body, ok := b.Body(2)
	require.True(t, ok)
	assert.Equal(t, "box", body.Shape)

	states := b.States(2)
	require.Len(t, states, 2)
	assert.Equal(t, 2, states[1].Step)
	assert.Nil(t, b.States(99))
}

func TestRecordRemoval(t *testing.T) {
	b := started(t, config.MemoryConfig{})
	require.NoError(t, b.AddBody(&core.Body{EntityID: 1}))
	require.NoError(t, b.AddConstraint(&core.Constraint{EntityID: 2, BodyA: 1}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{EntityID: 3, Chassis: 1}))

	require.NoError(t, b.RecordRemoval(&core.Removal{EntityID: 2, Kind: core.RemovedConstraint, Step: 5}))
	require.NoError(t, b.RecordRemoval(&core.Removal{EntityID: 3, Kind: core.RemovedVehicle, Step: 5}))
	require.NoError(t, b.RecordRemoval(&core.Removal{EntityID: 1, Kind: core.RemovedBody, Step: 6}))

	assert.Equal(t, 6, b.bodies[1].Removed)
	assert.Equal(t, 5, b.constraints[2].Removed)
	assert.Equal(t, 5, b.vehicles[3].Removed)
	assert.Len(t, b.removals, 3)
}

func TestEndSession_WritesGzip(t *testing.T) {
	dir := t.TempDir()
	b := started(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.AddBody(&core.Body{EntityID: 1, Shape: "sphere"}))
	require.NoError(t, b.RecordBodyState(&core.BodyState{EntityID: 1, Step: 8}))

	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "drop_test__1_20260304_050607.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export map[string]any
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "a1b2", export["sessionUuid"])
	assert.Equal(t, float64(8), export["endStep"])

	meta := b.GetExportMetadata()
	assert.Equal(t, "a1b2", meta.SessionUUID)
	assert.Equal(t, 8, meta.Steps)
	assert.Equal(t, 4.0, meta.SessionDuration)
}

func TestEndSession_WritesPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := started(t, config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.EndSession())

	data, err := os.ReadFile(b.GetExportedFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionName":"drop test: 1"`)
	assert.ErrorIs(t, b.AddBody(&core.Body{}), core.ErrNoSession)
}

func TestExportFileName_DefaultName(t *testing.T) {
	name := exportFileName(&core.Session{StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, false)
	assert.Equal(t, "session_20260101_000000.json", name)
}

func TestConcurrentRecording(t *testing.T) {
	b := started(t, config.MemoryConfig{})
	require.NoError(t, b.AddBody(&core.Body{EntityID: 1}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(step int) {
			defer wg.Done()
			_ = b.RecordBodyState(&core.BodyState{EntityID: 1, Step: step})
		}(i)
		go func(step int) {
			defer wg.Done()
			_ = b.RecordCommand(&core.CommandLog{Step: step, Name: "simulate"})
		}(i)
	}
	wg.Wait()

	assert.Len(t, b.States(1), 50)
	assert.Len(t, b.commands, 50)
}
