package scene

import (
	"fmt"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

// WheelDesc places a wheel in chassis space. A nil Tuning keeps the
// vehicle's tuning.
type WheelDesc struct {
	ConnectionPoint      mgl64.Vec3
	Direction            mgl64.Vec3
	Axle                 mgl64.Vec3
	SuspensionRestLength float64
	Radius               float64
	Front                bool
	Tuning               *protocol.VehicleTuning
}

// Wheel is the proxy of one wheel. Its transform follows the vehicle
// reports.
type Wheel struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Radius   float64
	Front    bool
}

type Vehicle struct {
	scene   *Scene
	id      ident.ID
	chassis ident.ID
	tuning  protocol.VehicleTuning
	wheels  []Wheel
}

// AddVehicle turns body chassis into a raycast vehicle.
func (s *Scene) AddVehicle(chassis ident.ID, tuning protocol.VehicleTuning) (*Vehicle, error) {
	s.mu.Lock()
	if _, ok := s.bodies[chassis]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("chassis %s: %w", chassis, ErrUnknownBody)
	}
	v := &Vehicle{scene: s, id: s.ids.Next(), chassis: chassis, tuning: tuning}
	s.vehicles[v.id] = v
	s.mu.Unlock()

	s.send(protocol.AddVehicle{ID: v.id, Chassis: chassis, Tuning: tuning})
	return v, nil
}

func (s *Scene) RemoveVehicle(id ident.ID) {
	s.mu.Lock()
	_, ok := s.vehicles[id]
	delete(s.vehicles, id)
	s.mu.Unlock()
	if ok {
		s.send(protocol.RemoveVehicle{ID: id})
	}
}

func (s *Scene) Vehicle(id ident.ID) (*Vehicle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	return v, ok
}

func (v *Vehicle) ID() ident.ID      { return v.id }
func (v *Vehicle) Chassis() ident.ID { return v.chassis }

// AddWheel appends a wheel and returns its index. The proxy starts at the
// suspension rest point until the first report.
func (v *Vehicle) AddWheel(w WheelDesc) int {
	v.scene.mu.Lock()
	v.wheels = append(v.wheels, Wheel{
		Position: w.Direction.Mul(w.SuspensionRestLength / 100).Add(w.ConnectionPoint),
		Rotation: mgl64.QuatIdent(),
		Radius:   w.Radius,
		Front:    w.Front,
	})
	idx := len(v.wheels) - 1
	v.scene.mu.Unlock()

	v.scene.send(protocol.AddWheel{
		ID:                   v.id,
		ConnectionPoint:      w.ConnectionPoint,
		WheelDirection:       w.Direction,
		WheelAxle:            w.Axle,
		SuspensionRestLength: w.SuspensionRestLength,
		WheelRadius:          w.Radius,
		IsFrontWheel:         w.Front,
		Tuning:               w.Tuning,
	})
	return idx
}

func (v *Vehicle) Wheels() []Wheel {
	v.scene.mu.Lock()
	defer v.scene.mu.Unlock()
	return append([]Wheel(nil), v.wheels...)
}

func (v *Vehicle) Wheel(i int) (Wheel, bool) {
	v.scene.mu.Lock()
	defer v.scene.mu.Unlock()
	if i < 0 || i >= len(v.wheels) {
		return Wheel{}, false
	}
	return v.wheels[i], true
}

// wheelIndex picks the optional wheel argument; none means every wheel.
func wheelIndex(wheel []int) *int {
	if len(wheel) == 0 {
		return nil
	}
	w := wheel[0]
	return &w
}

func (v *Vehicle) SetSteering(steering float64, wheel ...int) {
	v.scene.send(protocol.SetSteering{ID: v.id, Steering: steering, Wheel: wheelIndex(wheel)})
}

func (v *Vehicle) SetBrake(brake float64, wheel ...int) {
	v.scene.send(protocol.SetBrake{ID: v.id, Brake: brake, Wheel: wheelIndex(wheel)})
}

func (v *Vehicle) ApplyEngineForce(force float64, wheel ...int) {
	v.scene.send(protocol.ApplyEngineForce{ID: v.id, Force: force, Wheel: wheelIndex(wheel)})
}
