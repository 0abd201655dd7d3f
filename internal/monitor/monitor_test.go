package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorld struct{}

func (fakeWorld) Bodies() int                     { return 12 }
func (fakeWorld) Constraints() int                { return 3 }
func (fakeWorld) Vehicles() int                   { return 1 }
func (fakeWorld) Steps() int                      { return 40 }
func (fakeWorld) Contacts() int                   { return 5 }
func (fakeWorld) LastStepDuration() time.Duration { return 2500 * time.Microsecond }

type fakeRecorder struct{}

func (fakeRecorder) LastWriteDuration() time.Duration { return 10 * time.Millisecond }
func (fakeRecorder) QueueLengths() map[string]int     { return map[string]int{"body_states": 7} }
func (fakeRecorder) Unassociated() int                { return 2 }

func newState(steps int) *session.Context {
	state := session.NewContext()
	state.Set(&core.Session{Name: "ramp", UUID: "u-1"})
	for i := 0; i < steps; i++ {
		state.Advance()
	}
	return state
}

func TestSnapshot(t *testing.T) {
	svc := NewService(Dependencies{State: newState(41), World: fakeWorld{}, Recorder: fakeRecorder{}})

	st := svc.Snapshot()
	assert.Equal(t, "ramp", st.SessionName)
	assert.Equal(t, "u-1", st.SessionUUID)
	assert.Equal(t, 41, st.Step)
	assert.Equal(t, 12, st.Bodies)
	assert.Equal(t, 3, st.Constraints)
	assert.Equal(t, 1, st.Vehicles)
	assert.Equal(t, 5, st.Contacts)
	assert.InDelta(t, 2.5, st.LastStepMs, 1e-9)
	assert.InDelta(t, 10, st.LastWriteMs, 1e-9)
	assert.Equal(t, 7, st.WriteQueues["body_states"])
	assert.Equal(t, 2, st.Unassociated)
	assert.Equal(t, 1, st.StepsInFlight)
}

func TestSnapshotWithoutProviders(t *testing.T) {
	st := NewService(Dependencies{}).Snapshot()
	assert.Equal(t, "No session started", st.SessionName)
	assert.Zero(t, st.Bodies)
	assert.Nil(t, st.WriteQueues)
}

func TestGetProgramStatus(t *testing.T) {
	svc := NewService(Dependencies{State: newState(3), World: fakeWorld{}})
	lines, st := svc.GetProgramStatus()

	require.Len(t, lines, 3)
	assert.Equal(t, "session: ramp (u-1)", lines[0])
	assert.Equal(t, "step: 3 (adapter 40)", lines[1])
	assert.Contains(t, lines[2], `"bodies": 12`)
	assert.Equal(t, 3, st.Step)
}

func TestPoint(t *testing.T) {
	svc := NewService(Dependencies{State: newState(1), World: fakeWorld{}, Recorder: fakeRecorder{}})
	p := Point(svc.Snapshot())

	assert.Equal(t, "status", p.Name())
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.EqualValues(t, 12, fields["bodies"])
	assert.EqualValues(t, 7, fields["queue_body_states"])
}

func TestStartWritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Dependencies{
		State:     newState(2),
		World:     fakeWorld{},
		StatusDir: dir,
		Interval:  10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	require.NoError(t, svc.Start())

	path := filepath.Join(dir, StatusFileName)
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.HasPrefix(string(data), "session: ramp")
	}, 2*time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}
