package worker

import (
	"fmt"

	"github.com/OCAP2/physbridge/internal/bridge"
	"github.com/OCAP2/physbridge/internal/dispatcher"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Entity creation - sync (reports for the entity may follow right away)
	d.Register("addObject", m.handleAddObject, dispatcher.Logged())
	d.Register("addConstraint", m.handleAddConstraint, dispatcher.Logged())
	d.Register("addVehicle", m.handleAddVehicle, dispatcher.Logged())

	// Removals - sync so late reports are told apart from unknown ids
	d.Register("removeObject", m.handleRemoveObject, dispatcher.Logged())
	d.Register("removeConstraint", m.handleRemoveConstraint, dispatcher.Logged())
	d.Register("removeVehicle", m.handleRemoveVehicle, dispatcher.Logged())

	// Reports - sync, the buffer goes back to the adapter afterwards
	d.Register(bridge.TopicReport, m.handleReport, dispatcher.Logged())

	// Command log and step metrics - buffered
	d.Register(bridge.TopicCommand, m.handleCommand, dispatcher.Buffered(10000), dispatcher.Logged())
	d.Register(bridge.TopicStepMetric, m.handleStepMetric, dispatcher.Buffered(1000), dispatcher.Logged())
}

func payload[T any](e dispatcher.Event) (T, error) {
	v, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Topic)
	}
	return v, nil
}

func (m *Manager) handleAddObject(e dispatcher.Event) error {
	c, err := payload[protocol.AddObject](e)
	if err != nil {
		return err
	}
	b := &core.Body{
		EntityID:   uint64(c.ID),
		Time:       e.Timestamp,
		Step:       e.Step,
		Shape:      string(c.Shape.Type),
		Children:   len(c.Children),
		Mass:       c.Mass,
		Position:   vec(c.Position),
		Rotation:   quat(c.Rotation),
		MaterialID: uint64(c.MaterialID),
	}
	if c.CollisionFlags != nil {
		b.CollisionFlags = *c.CollisionFlags
	}
	m.bodies.Add(c.ID, b)
	if err := m.backend.AddBody(b); err != nil {
		return fmt.Errorf("failed to record body %d: %w", c.ID, err)
	}
	return nil
}

func (m *Manager) handleAddConstraint(e dispatcher.Event) error {
	c, err := payload[protocol.AddConstraint](e)
	if err != nil {
		return err
	}
	rec := &core.Constraint{
		EntityID:  uint64(c.ID),
		Type:      string(c.Type),
		BodyA:     uint64(c.ObjectA),
		BodyB:     uint64(c.ObjectB),
		PositionA: vec(c.PositionA),
		PositionB: vec(c.PositionB),
		Time:      e.Timestamp,
		Step:      e.Step,
	}
	m.constraints.Add(c.ID, rec)
	if err := m.backend.AddConstraint(rec); err != nil {
		return fmt.Errorf("failed to record constraint %d: %w", c.ID, err)
	}
	return nil
}

func (m *Manager) handleAddVehicle(e dispatcher.Event) error {
	c, err := payload[protocol.AddVehicle](e)
	if err != nil {
		return err
	}
	rec := &core.Vehicle{
		EntityID: uint64(c.ID),
		Chassis:  uint64(c.Chassis),
		Time:     e.Timestamp,
		Step:     e.Step,
	}
	m.vehicles.Add(c.ID, rec)
	if err := m.backend.AddVehicle(rec); err != nil {
		return fmt.Errorf("failed to record vehicle %d: %w", c.ID, err)
	}
	return nil
}

func (m *Manager) handleRemoveObject(e dispatcher.Event) error {
	c, err := payload[protocol.RemoveObject](e)
	if err != nil {
		return err
	}
	if _, ok := m.bodies.Delete(c.ID); !ok {
		return nil
	}
	return m.recordRemoval(e, c.ID, core.RemovedBody)
}

func (m *Manager) handleRemoveConstraint(e dispatcher.Event) error {
	c, err := payload[protocol.RemoveConstraint](e)
	if err != nil {
		return err
	}
	if _, ok := m.constraints.Delete(c.ID); !ok {
		return nil
	}
	return m.recordRemoval(e, c.ID, core.RemovedConstraint)
}

func (m *Manager) handleRemoveVehicle(e dispatcher.Event) error {
	c, err := payload[protocol.RemoveVehicle](e)
	if err != nil {
		return err
	}
	if _, ok := m.vehicles.Delete(c.ID); !ok {
		return nil
	}
	return m.recordRemoval(e, c.ID, core.RemovedVehicle)
}

func (m *Manager) recordRemoval(e dispatcher.Event, id ident.ID, kind string) error {
	err := m.backend.RecordRemoval(&core.Removal{
		EntityID: uint64(id),
		Kind:     kind,
		Time:     e.Timestamp,
		Step:     e.Step,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s removal %d: %w", kind, id, err)
	}
	return nil
}

func (m *Manager) handleCommand(e dispatcher.Event) error {
	c, err := payload[protocol.Command](e)
	if err != nil {
		return err
	}
	data, err := protocol.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to log command: %w", err)
	}
	return m.backend.RecordCommand(&core.CommandLog{
		Step:    e.Step,
		Time:    e.Timestamp,
		Name:    c.Name(),
		Payload: data,
	})
}

func (m *Manager) handleStepMetric(e dispatcher.Event) error {
	sm, err := payload[core.StepMetric](e)
	if err != nil {
		return err
	}
	return m.backend.RecordStepMetric(&sm)
}

// handleReport copies a report buffer into records. It must not keep the
// buffer.
func (m *Manager) handleReport(e dispatcher.Event) error {
	r, err := payload[protocol.Report](e)
	if err != nil {
		return err
	}
	buf := r.Buffer
	var skipped int
	for i := 0; i < buf.Count(); i++ {
		err := m.recordReport(e, buf.Kind(), buf.Record(i))
		if err == ErrTooEarlyForStateAssociation {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to record %s report: %w", buf.Kind(), err)
		}
	}
	if skipped > 0 {
		m.unassociated.Add(int64(skipped))
		return fmt.Errorf("%s report: %d records: %w", buf.Kind(), skipped, ErrTooEarlyForStateAssociation)
	}
	return nil
}

func (m *Manager) recordReport(e dispatcher.Event, kind protocol.ReportKind, r []float64) error {
	switch kind {
	case protocol.ReportWorld:
		id := ident.FromFloat(r[0])
		if _, ok := m.bodies.Get(id); !ok {
			return ErrTooEarlyForStateAssociation
		}
		return m.backend.RecordBodyState(&core.BodyState{
			EntityID:        uint64(id),
			Step:            e.Step,
			Time:            e.Timestamp,
			Position:        core.Vec3{r[1], r[2], r[3]},
			Rotation:        core.Quat{r[4], r[5], r[6], r[7]},
			LinearVelocity:  core.Vec3{r[8], r[9], r[10]},
			AngularVelocity: core.Vec3{r[11], r[12], r[13]},
		})

	case protocol.ReportCollision:
		a, b := ident.FromFloat(r[0]), ident.FromFloat(r[1])
		if !m.Known(a) || !m.Known(b) {
			return ErrTooEarlyForStateAssociation
		}
		return m.backend.RecordCollision(&core.Collision{
			BodyA:  uint64(a),
			BodyB:  uint64(b),
			Step:   e.Step,
			Time:   e.Timestamp,
			Normal: core.Vec3{r[2], r[3], r[4]},
		})

	case protocol.ReportVehicle:
		id := ident.FromFloat(r[0])
		if _, ok := m.vehicles.Get(id); !ok {
			return ErrTooEarlyForStateAssociation
		}
		return m.backend.RecordWheelState(&core.WheelState{
			VehicleID: uint64(id),
			Wheel:     int(r[1]),
			Step:      e.Step,
			Time:      e.Timestamp,
			Position:  core.Vec3{r[2], r[3], r[4]},
			Rotation:  core.Quat{r[5], r[6], r[7], r[8]},
		})

	case protocol.ReportConstraint:
		id := ident.FromFloat(r[0])
		if _, ok := m.constraints.Get(id); !ok {
			return ErrTooEarlyForStateAssociation
		}
		return m.backend.RecordConstraintState(&core.ConstraintState{
			EntityID:       uint64(id),
			BodyA:          uint64(ident.FromFloat(r[1])),
			Step:           e.Step,
			Time:           e.Timestamp,
			Anchor:         core.Vec3{r[2], r[3], r[4]},
			AppliedImpulse: r[5],
		})
	}
	return fmt.Errorf("unknown report kind %d", int(kind))
}

func vec(v mgl64.Vec3) core.Vec3 { return core.Vec3(v) }

func quat(q mgl64.Quat) core.Quat { return core.Quat{q.V[0], q.V[1], q.V[2], q.W} }
