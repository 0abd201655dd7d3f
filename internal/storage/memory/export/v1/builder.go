package v1

import (
	"sort"
	"time"

	"github.com/OCAP2/physbridge/pkg/core"
)

// Version is written into every export.
const Version = 1

// SessionData contains all the data needed to build an export.
type SessionData struct {
	Session     *core.Session
	Bodies      map[uint64]*BodyRecord
	Constraints map[uint64]*ConstraintRecord
	Vehicles    map[uint64]*VehicleRecord

	Removals    []core.Removal
	Collisions  []core.Collision
	Commands    []core.CommandLog
	StepMetrics []core.StepMetric
}

// BodyRecord groups a body with all its time-series data.
type BodyRecord struct {
	Body    core.Body
	States  []core.BodyState
	Removed int
}

// ConstraintRecord groups a joint with its reported anchors.
type ConstraintRecord struct {
	Constraint core.Constraint
	States     []core.ConstraintState
	Removed    int
}

// VehicleRecord groups a vehicle with its wheel transforms.
type VehicleRecord struct {
	Vehicle core.Vehicle
	Wheels  []core.WheelState
	Removed int
}

// Build creates an Export from the session data. Entities are sorted by
// id and events by step, keeping the record order within a step.
func Build(data *SessionData) Export {
	s := data.Session
	export := Export{
		Version:       Version,
		SessionName:   s.Name,
		SessionUUID:   s.UUID,
		Tags:          s.Tag,
		StartTime:     s.StartTime.UTC().Format(time.RFC3339),
		FixedTimeStep: s.FixedTimeStep,
		Broadphase:    s.Broadphase,
		Gravity:       vec(s.Gravity),
		Bodies:        make([]Entity, 0, len(data.Bodies)),
		Constraints:   make([]Constraint, 0, len(data.Constraints)),
		Vehicles:      make([]Vehicle, 0, len(data.Vehicles)),
		Events:        make([][]any, 0),
		Steps:         make([][]any, 0, len(data.StepMetrics)),
	}

	maxStep := 0
	seen := func(step int) {
		if step > maxStep {
			maxStep = step
		}
	}

	for _, id := range sortedKeys(data.Bodies) {
		record := data.Bodies[id]
		entity := Entity{
			ID:           id,
			Shape:        record.Body.Shape,
			Children:     record.Body.Children,
			Mass:         record.Body.Mass,
			Material:     record.Body.MaterialID,
			StartStepNum: record.Body.Step,
			EndStepNum:   record.Removed,
			Frames:       make([][]any, 0, len(record.States)),
		}
		for _, state := range record.States {
			entity.Frames = append(entity.Frames, []any{
				state.Step,
				vec(state.Position),
				quat(state.Rotation),
				vec(state.LinearVelocity),
				vec(state.AngularVelocity),
			})
			seen(state.Step)
		}
		export.Bodies = append(export.Bodies, entity)
	}

	for _, id := range sortedKeys(data.Constraints) {
		record := data.Constraints[id]
		c := Constraint{
			ID:           id,
			Type:         record.Constraint.Type,
			BodyA:        record.Constraint.BodyA,
			BodyB:        record.Constraint.BodyB,
			StartStepNum: record.Constraint.Step,
			EndStepNum:   record.Removed,
			Frames:       make([][]any, 0, len(record.States)),
		}
		for _, state := range record.States {
			c.Frames = append(c.Frames, []any{state.Step, vec(state.Anchor), state.AppliedImpulse})
			seen(state.Step)
		}
		export.Constraints = append(export.Constraints, c)
	}

	for _, id := range sortedKeys(data.Vehicles) {
		record := data.Vehicles[id]
		v := Vehicle{
			ID:           id,
			Chassis:      record.Vehicle.Chassis,
			StartStepNum: record.Vehicle.Step,
			EndStepNum:   record.Removed,
			Frames:       make([][]any, 0, len(record.Wheels)),
		}
		for _, w := range record.Wheels {
			v.Frames = append(v.Frames, []any{w.Step, w.Wheel, vec(w.Position), quat(w.Rotation)})
			seen(w.Step)
		}
		export.Vehicles = append(export.Vehicles, v)
	}

	// Format: [step, "collision", bodyA, bodyB, [nx, ny, nz]]
	for _, c := range data.Collisions {
		export.Events = append(export.Events, []any{c.Step, "collision", c.BodyA, c.BodyB, vec(c.Normal)})
		seen(c.Step)
	}
	// Format: [step, "removed", kind, id]
	for _, r := range data.Removals {
		export.Events = append(export.Events, []any{r.Step, "removed", r.Kind, r.EntityID})
	}
	// Format: [step, "command", name]
	for _, c := range data.Commands {
		export.Events = append(export.Events, []any{c.Step, "command", c.Name})
	}
	sort.SliceStable(export.Events, func(i, j int) bool {
		return export.Events[i][0].(int) < export.Events[j][0].(int)
	})

	// Format: [step, durationMs, subSteps, bodies, contacts, constraints]
	for _, m := range data.StepMetrics {
		export.Steps = append(export.Steps, []any{
			m.Step,
			float64(m.Duration) / float64(time.Millisecond),
			m.SubSteps,
			m.Bodies,
			m.Contacts,
			m.Constraints,
		})
		seen(m.Step)
	}

	export.EndStep = maxStep
	return export
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func vec(v core.Vec3) []float64 { return []float64{v[0], v[1], v[2]} }

func quat(q core.Quat) []float64 { return []float64{q[0], q[1], q[2], q[3]} }
