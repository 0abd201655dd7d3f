package adapter

import (
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
)

func nativeTuning(t protocol.VehicleTuning) native.VehicleTuning {
	return native.VehicleTuning{
		SuspensionStiffness:   t.SuspensionStiffness,
		SuspensionCompression: t.SuspensionCompression,
		SuspensionDamping:     t.SuspensionDamping,
		MaxSuspensionTravelCm: t.MaxSuspensionTravelCm,
		FrictionSlip:          t.FrictionSlip,
		MaxSuspensionForce:    t.MaxSuspensionForce,
	}
}

func (a *Adapter) addVehicle(c protocol.AddVehicle) {
	if _, exists := a.vehicles.Get(c.ID); exists {
		a.logger.Debug("vehicle already exists", "id", c.ID)
		return
	}
	chassis, ok := a.bodies.Get(c.Chassis)
	if !ok {
		a.logger.Debug("vehicle chassis missing", "id", c.ID, "chassis", c.Chassis)
		return
	}

	tuning := nativeTuning(c.Tuning)
	rv := native.NewRaycastVehicle(tuning, chassis.rb)
	rv.SetCoordinateSystem(0, 1, 2)
	chassis.rb.ForceActivationState(native.DisableDeactivation)

	a.world.AddVehicle(rv)
	a.vehicles.Add(c.ID, &vehicle{id: c.ID, chassis: chassis, raycast: rv, tuning: tuning})
}

func (a *Adapter) removeVehicle(id ident.ID) {
	v, ok := a.vehicles.Delete(id)
	if !ok {
		a.logger.Debug("unknown vehicle", "id", id)
		return
	}
	a.world.RemoveVehicle(v.raycast)
}

func (a *Adapter) addWheel(c protocol.AddWheel) {
	a.withVehicle(c.ID, func(v *vehicle) {
		tuning := v.tuning
		if c.Tuning != nil {
			tuning = nativeTuning(*c.Tuning)
		}
		v.raycast.AddWheel(
			c.ConnectionPoint,
			c.WheelDirection,
			c.WheelAxle,
			c.SuspensionRestLength,
			c.WheelRadius,
			tuning,
			c.IsFrontWheel,
		)
	})
}

// eachWheel calls fn for the given wheel, or for every wheel when the
// index is missing or out of range.
func eachWheel(v *vehicle, wheel *int, fn func(int)) {
	n := v.raycast.NumWheels()
	if wheel != nil && *wheel >= 0 && *wheel < n {
		fn(*wheel)
		return
	}
	for i := 0; i < n; i++ {
		fn(i)
	}
}
