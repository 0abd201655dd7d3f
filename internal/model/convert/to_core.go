package convert

import (
	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/pkg/core"
)

// SessionToCore converts a stored session back. EndTime stays zero for a
// session that never ended.
func SessionToCore(m *model.Session) core.Session {
	s := core.Session{
		ID:            m.ID,
		UUID:          m.UUID,
		Name:          m.Name,
		Tag:           m.Tag,
		StartTime:     m.StartTime,
		FixedTimeStep: m.FixedTimeStep,
		Broadphase:    m.Broadphase,
		Gravity:       core.Vec3{m.Gravity.X, m.Gravity.Y, m.Gravity.Z},
		ReportSize:    m.ReportSize,
	}
	if m.EndTime != nil {
		s.EndTime = *m.EndTime
	}
	return s
}

// CommandLogToCore is used when replaying a stored session.
func CommandLogToCore(m model.CommandLog) core.CommandLog {
	return core.CommandLog{
		Step:    m.Step,
		Time:    m.Time,
		Name:    m.Name,
		Payload: m.Payload,
	}
}
