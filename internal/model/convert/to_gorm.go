// Package convert maps between the storage-neutral core records and the
// gorm models.
package convert

import (
	"time"

	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/pkg/core"
	"gorm.io/datatypes"
)

func vec3(v core.Vec3) model.Vec3 {
	return model.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func quat(q core.Quat) model.Quat {
	return model.Quat{X: q[0], Y: q[1], Z: q[2], W: q[3]}
}

// CoreToSession converts a core.Session. settings may be nil.
func CoreToSession(s core.Session, settings []byte) model.Session {
	if len(settings) == 0 {
		settings = []byte("{}")
	}
	m := model.Session{
		UUID:          s.UUID,
		Name:          s.Name,
		Tag:           s.Tag,
		StartTime:     s.StartTime,
		FixedTimeStep: s.FixedTimeStep,
		Broadphase:    s.Broadphase,
		Gravity:       vec3(s.Gravity),
		ReportSize:    s.ReportSize,
		Settings:      datatypes.JSON(settings),
	}
	m.ID = s.ID
	if !s.EndTime.IsZero() {
		end := s.EndTime
		m.EndTime = &end
	}
	return m
}

func CoreToBody(sessionID uint, b core.Body) model.Body {
	return model.Body{
		SessionID:      sessionID,
		EntityID:       b.EntityID,
		Time:           b.Time,
		Step:           b.Step,
		Shape:          b.Shape,
		Children:       b.Children,
		Mass:           b.Mass,
		Position:       vec3(b.Position),
		Rotation:       quat(b.Rotation),
		MaterialID:     b.MaterialID,
		CollisionFlags: b.CollisionFlags,
	}
}

func CoreToConstraint(sessionID uint, c core.Constraint) model.Constraint {
	return model.Constraint{
		SessionID: sessionID,
		EntityID:  c.EntityID,
		Time:      c.Time,
		Step:      c.Step,
		Type:      c.Type,
		BodyA:     c.BodyA,
		BodyB:     c.BodyB,
		PositionA: vec3(c.PositionA),
		PositionB: vec3(c.PositionB),
	}
}

func CoreToVehicle(sessionID uint, v core.Vehicle) model.Vehicle {
	return model.Vehicle{
		SessionID: sessionID,
		EntityID:  v.EntityID,
		Time:      v.Time,
		Step:      v.Step,
		Chassis:   v.Chassis,
	}
}

func CoreToRemoval(sessionID uint, r core.Removal) model.Removal {
	return model.Removal{
		SessionID: sessionID,
		Time:      r.Time,
		Step:      r.Step,
		EntityID:  r.EntityID,
		Kind:      r.Kind,
	}
}

func CoreToBodyState(sessionID uint, s core.BodyState) model.BodyState {
	return model.BodyState{
		SessionID:       sessionID,
		Time:            s.Time,
		Step:            s.Step,
		EntityID:        s.EntityID,
		Position:        vec3(s.Position),
		Rotation:        quat(s.Rotation),
		LinearVelocity:  vec3(s.LinearVelocity),
		AngularVelocity: vec3(s.AngularVelocity),
	}
}

func CoreToConstraintState(sessionID uint, s core.ConstraintState) model.ConstraintState {
	return model.ConstraintState{
		SessionID:      sessionID,
		Time:           s.Time,
		Step:           s.Step,
		EntityID:       s.EntityID,
		BodyA:          s.BodyA,
		Anchor:         vec3(s.Anchor),
		AppliedImpulse: s.AppliedImpulse,
	}
}

func CoreToWheelState(sessionID uint, s core.WheelState) model.WheelState {
	return model.WheelState{
		SessionID: sessionID,
		Time:      s.Time,
		Step:      s.Step,
		VehicleID: s.VehicleID,
		Wheel:     s.Wheel,
		Position:  vec3(s.Position),
		Rotation:  quat(s.Rotation),
	}
}

func CoreToCollision(sessionID uint, c core.Collision) model.Collision {
	return model.Collision{
		SessionID: sessionID,
		Time:      c.Time,
		Step:      c.Step,
		BodyA:     c.BodyA,
		BodyB:     c.BodyB,
		Normal:    vec3(c.Normal),
	}
}

func CoreToCommandLog(sessionID uint, c core.CommandLog) model.CommandLog {
	return model.CommandLog{
		SessionID: sessionID,
		Time:      c.Time,
		Step:      c.Step,
		Name:      c.Name,
		Payload:   c.Payload,
	}
}

func CoreToStepMetric(sessionID uint, m core.StepMetric) model.StepMetric {
	return model.StepMetric{
		Time:        m.Time,
		SessionID:   sessionID,
		Step:        m.Step,
		DurationMs:  float64(m.Duration) / float64(time.Millisecond),
		SubSteps:    m.SubSteps,
		Bodies:      m.Bodies,
		Contacts:    m.Contacts,
		Constraints: m.Constraints,
	}
}
