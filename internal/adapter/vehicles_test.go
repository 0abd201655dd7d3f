package adapter

import (
	"testing"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCar(t *testing.T) (*harness, *vehicle) {
	h := newHarness(t)
	h.addGround(1)
	h.send(protocol.AddObject{
		ID:       2,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 2, Height: 0.5, Depth: 4},
		Mass:     100,
		Position: mgl64.Vec3{0, 0.9, 0},
		Rotation: mgl64.QuatIdent(),
	})
	h.send(protocol.AddVehicle{ID: 3, Chassis: 2, Tuning: protocol.DefaultVehicleTuning()})
	for _, cp := range []mgl64.Vec3{{-1, 0, 1.5}, {1, 0, 1.5}, {-1, 0, -1.5}, {1, 0, -1.5}} {
		h.send(protocol.AddWheel{
			ID:                   3,
			ConnectionPoint:      cp,
			WheelDirection:       mgl64.Vec3{0, -1, 0},
			WheelAxle:            mgl64.Vec3{-1, 0, 0},
			SuspensionRestLength: 0.6,
			WheelRadius:          0.4,
			IsFrontWheel:         cp[2] > 0,
		})
	}
	h.drain()

	v, ok := h.adapter.vehicles.Get(3)
	require.True(t, ok)
	return h, v
}

func TestAddVehicle(t *testing.T) {
	h, v := newCar(t)
	assert.Equal(t, 1, h.adapter.Vehicles())
	assert.Equal(t, 1, h.adapter.world.NumVehicles())
	assert.Equal(t, 4, v.raycast.NumWheels())
	assert.Equal(t, native.DisableDeactivation, v.chassis.rb.ActivationState())

	r, u, f := v.raycast.CoordinateSystem()
	assert.Equal(t, []int{0, 1, 2}, []int{r, u, f})
}

func TestAddVehicle_MissingChassis(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.AddVehicle{ID: 3, Chassis: 2, Tuning: protocol.DefaultVehicleTuning()})
	h.send(protocol.AddWheel{ID: 3, WheelRadius: 0.4})
	assert.Equal(t, 0, h.adapter.Vehicles())
}

func TestVehicleReport_FourWheels(t *testing.T) {
	h, _ := newCar(t)
	rep := h.step(protocol.Simulate{TimeStep: fixed})[protocol.ReportVehicle]

	require.Equal(t, 4, rep.Count())
	for i := 0; i < 4; i++ {
		rec := rep.Record(i)
		assert.Equal(t, ident.ID(3), ident.FromFloat(rec[0]))
		assert.Equal(t, float64(i), rec[1])
		q := mgl64.Quat{W: rec[8], V: mgl64.Vec3{rec[5], rec[6], rec[7]}}
		assert.InDelta(t, 1.0, q.Len(), 1e-9)
	}
}

func TestAddWheel_TuningOverride(t *testing.T) {
	h, v := newCar(t)
	custom := protocol.DefaultVehicleTuning()
	custom.SuspensionStiffness = 20
	h.send(protocol.AddWheel{ID: 3, WheelDirection: mgl64.Vec3{0, -1, 0}, WheelAxle: mgl64.Vec3{-1, 0, 0}, WheelRadius: 0.4, Tuning: &custom})

	require.Equal(t, 5, v.raycast.NumWheels())
	assert.Equal(t, 5.88, v.raycast.WheelInfo(0).Tuning.SuspensionStiffness)
	assert.Equal(t, 20.0, v.raycast.WheelInfo(4).Tuning.SuspensionStiffness)
}

func TestVehicleControls(t *testing.T) {
	h, v := newCar(t)
	wheel := 1
	invalid := 9

	h.send(protocol.SetSteering{ID: 3, Steering: 0.3, Wheel: &wheel})
	assert.Equal(t, 0.3, v.raycast.WheelInfo(1).Steering)
	assert.Zero(t, v.raycast.WheelInfo(0).Steering)

	h.send(protocol.SetBrake{ID: 3, Brake: 5})
	h.send(protocol.ApplyEngineForce{ID: 3, Force: 100, Wheel: &invalid})
	for i := 0; i < 4; i++ {
		assert.Equal(t, 5.0, v.raycast.WheelInfo(i).Brake)
		assert.Equal(t, 100.0, v.raycast.WheelInfo(i).EngineForce)
	}
}

func TestRemoveVehicle(t *testing.T) {
	h, _ := newCar(t)
	h.send(protocol.RemoveVehicle{ID: 3})
	assert.Equal(t, 0, h.adapter.Vehicles())
	assert.Equal(t, 0, h.adapter.world.NumVehicles())
	assert.Equal(t, 2, h.adapter.Bodies(), "chassis stays")

	rep := h.step(protocol.Simulate{TimeStep: fixed})[protocol.ReportVehicle]
	assert.Equal(t, 0, rep.Count())
}

func TestRemoveChassis_DropsVehicle(t *testing.T) {
	h, _ := newCar(t)
	h.send(protocol.RemoveObject{ID: 2})
	assert.Equal(t, 0, h.adapter.Vehicles())
	assert.Equal(t, 0, h.adapter.world.NumVehicles())
}
