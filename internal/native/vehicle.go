package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// VehicleTuning holds the suspension and tire parameters of a vehicle
// or of a single wheel.
type VehicleTuning struct {
	SuspensionStiffness   float64
	SuspensionCompression float64
	SuspensionDamping     float64
	MaxSuspensionTravelCm float64
	FrictionSlip          float64
	MaxSuspensionForce    float64
}

func DefaultVehicleTuning() VehicleTuning {
	return VehicleTuning{
		SuspensionStiffness:   5.88,
		SuspensionCompression: 0.83,
		SuspensionDamping:     0.88,
		MaxSuspensionTravelCm: 500,
		FrictionSlip:          10.5,
		MaxSuspensionForce:    6000,
	}
}

const (
	defaultRollInfluence  = 0.1
	sideFrictionStiffness = 1.0
)

// WheelInfo is the state of one wheel. Vectors ending in CS are in
// chassis space.
type WheelInfo struct {
	ConnectionPointCS    mgl64.Vec3
	WheelDirectionCS     mgl64.Vec3
	WheelAxleCS          mgl64.Vec3
	SuspensionRestLength float64
	Radius               float64
	IsFrontWheel         bool
	Tuning               VehicleTuning
	RollInfluence        float64
	Steering             float64
	Brake                float64
	EngineForce          float64
	Rotation             float64
	DeltaRotation        float64
	SuspensionLength     float64
	SuspensionForce      float64
	InContact            bool
	ContactPointWS       mgl64.Vec3
	ContactNormalWS      mgl64.Vec3
	GroundObject         *RigidBody

	worldTransform Transform
}

func (w *WheelInfo) maxTravel() float64 { return w.Tuning.MaxSuspensionTravelCm * 0.01 }

// RaycastVehicle models wheels as rays cast from the chassis.
type RaycastVehicle struct {
	tuning  VehicleTuning
	chassis *RigidBody
	wheels  []*WheelInfo

	rightAxis, upAxis, forwardAxis int
}

func NewRaycastVehicle(tuning VehicleTuning, chassis *RigidBody) *RaycastVehicle {
	return &RaycastVehicle{
		tuning:      tuning,
		chassis:     chassis,
		rightAxis:   0,
		upAxis:      1,
		forwardAxis: 2,
	}
}

func (v *RaycastVehicle) ChassisBody() *RigidBody { return v.chassis }

// SetCoordinateSystem selects which chassis axes are right, up and forward.
func (v *RaycastVehicle) SetCoordinateSystem(right, up, forward int) {
	v.rightAxis, v.upAxis, v.forwardAxis = right, up, forward
}

func (v *RaycastVehicle) CoordinateSystem() (right, up, forward int) {
	return v.rightAxis, v.upAxis, v.forwardAxis
}

// AddWheel appends a wheel and returns it.
func (v *RaycastVehicle) AddWheel(connectionPointCS, wheelDirectionCS, wheelAxleCS mgl64.Vec3,
	suspensionRestLength, wheelRadius float64, tuning VehicleTuning, isFrontWheel bool) *WheelInfo {
	w := &WheelInfo{
		ConnectionPointCS:    connectionPointCS,
		WheelDirectionCS:     safeNormalize(wheelDirectionCS, mgl64.Vec3{0, -1, 0}),
		WheelAxleCS:          safeNormalize(wheelAxleCS, mgl64.Vec3{-1, 0, 0}),
		SuspensionRestLength: suspensionRestLength,
		Radius:               wheelRadius,
		IsFrontWheel:         isFrontWheel,
		Tuning:               tuning,
		RollInfluence:        defaultRollInfluence,
		SuspensionLength:     suspensionRestLength,
	}
	v.wheels = append(v.wheels, w)
	v.updateWheelTransform(len(v.wheels) - 1)
	return w
}

func (v *RaycastVehicle) NumWheels() int { return len(v.wheels) }

func (v *RaycastVehicle) WheelInfo(i int) *WheelInfo { return v.wheels[i] }

func (v *RaycastVehicle) validWheel(i int) bool { return i >= 0 && i < len(v.wheels) }

func (v *RaycastVehicle) SetSteeringValue(steering float64, wheel int) {
	if v.validWheel(wheel) {
		v.wheels[wheel].Steering = steering
	}
}

func (v *RaycastVehicle) SetBrake(brake float64, wheel int) {
	if v.validWheel(wheel) {
		v.wheels[wheel].Brake = brake
	}
}

func (v *RaycastVehicle) ApplyEngineForce(force float64, wheel int) {
	if v.validWheel(wheel) {
		v.wheels[wheel].EngineForce = force
	}
}

// WheelTransformWS returns the last computed world transform of wheel i.
func (v *RaycastVehicle) WheelTransformWS(i int) Transform { return v.wheels[i].worldTransform }

// CurrentSpeedKmHour is the chassis speed along its forward axis.
func (v *RaycastVehicle) CurrentSpeedKmHour() float64 {
	var fwd mgl64.Vec3
	fwd[v.forwardAxis] = 1
	fwd = v.chassis.transform.Basis.Rotate(fwd)
	return 3.6 * v.chassis.linearVelocity.Dot(fwd)
}

func (v *RaycastVehicle) updateWheelTransform(i int) {
	w := v.wheels[i]
	t := v.chassis.transform
	hardPoint := t.Apply(w.ConnectionPointCS)
	dir := t.Basis.Rotate(w.WheelDirectionCS)
	steer := mgl64.QuatRotate(w.Steering, w.WheelDirectionCS.Mul(-1))
	roll := mgl64.QuatRotate(-w.Rotation, w.WheelAxleCS)
	w.worldTransform = Transform{
		Origin: hardPoint.Add(dir.Mul(w.SuspensionLength)),
		Basis:  t.Basis.Mul(steer).Mul(roll).Normalize(),
	}
}

func (v *RaycastVehicle) updateAllWheelTransforms() {
	for i := range v.wheels {
		v.updateWheelTransform(i)
	}
}

// updateVehicle runs suspension, friction and wheel spin for one sub-step.
func (v *RaycastVehicle) updateVehicle(world *DiscreteDynamicsWorld, dt float64) {
	chassis := v.chassis
	t := chassis.transform
	mass := chassis.Mass()
	if mass == 0 {
		return
	}

	grounded := 0
	for _, w := range v.wheels {
		v.castWheel(world, w, t)
		if w.InContact {
			grounded++
		}
	}

	for _, w := range v.wheels {
		w.SuspensionForce = 0
		if !w.InContact {
			continue
		}
		dir := t.Basis.Rotate(w.WheelDirectionCS)
		denom := w.ContactNormalWS.Dot(dir)
		inv := 10.0
		if denom < -0.1 {
			inv = -1 / denom
		}
		rel := w.ContactPointWS.Sub(t.Origin)
		projVel := w.ContactNormalWS.Dot(chassis.VelocityInLocalPoint(rel))
		relVel := projVel * inv

		force := w.Tuning.SuspensionStiffness * (w.SuspensionRestLength - w.SuspensionLength) * inv
		damping := w.Tuning.SuspensionDamping
		if relVel < 0 {
			damping = w.Tuning.SuspensionCompression
		}
		force -= damping * relVel
		force *= mass
		w.SuspensionForce = clamp(force, 0, w.Tuning.MaxSuspensionForce)
		chassis.ApplyImpulse(w.ContactNormalWS.Mul(w.SuspensionForce*dt), rel)
	}

	for _, w := range v.wheels {
		if !w.InContact {
			continue
		}
		axle := t.Basis.Rotate(mgl64.QuatRotate(w.Steering, w.WheelDirectionCS.Mul(-1)).Rotate(w.WheelAxleCS))
		n := w.ContactNormalWS
		side := safeNormalize(axle.Sub(n.Mul(axle.Dot(n))), axle)
		forward := n.Cross(side)
		rel := w.ContactPointWS.Sub(t.Origin)
		vel := chassis.VelocityInLocalPoint(rel)

		forwardImpulse := w.EngineForce * dt
		if w.Brake > 0 {
			stop := -vel.Dot(forward) * mass / float64(grounded)
			forwardImpulse += clamp(stop, -w.Brake*dt, w.Brake*dt)
		}
		sideImpulse := -vel.Dot(side) * mass / float64(grounded) * sideFrictionStiffness
		maxImpulse := w.Tuning.FrictionSlip * w.SuspensionForce * dt
		total := math.Hypot(forwardImpulse, sideImpulse)
		if maxImpulse > 0 && total > maxImpulse {
			scale := maxImpulse / total
			forwardImpulse *= scale
			sideImpulse *= scale
		}

		up := t.Basis.Rotate(w.WheelDirectionCS).Mul(-1)
		sideRel := rel.Sub(up.Mul(rel.Dot(up) * (1 - w.RollInfluence)))
		chassis.ApplyImpulse(forward.Mul(forwardImpulse), rel)
		chassis.ApplyImpulse(side.Mul(sideImpulse), sideRel)
		if w.GroundObject != nil && !w.GroundObject.isStaticOrKinematic() {
			w.GroundObject.ApplyImpulse(side.Mul(-sideImpulse), w.ContactPointWS.Sub(w.GroundObject.transform.Origin))
		}
	}

	for _, w := range v.wheels {
		if w.InContact {
			rel := w.ContactPointWS.Sub(t.Origin)
			axle := t.Basis.Rotate(w.WheelAxleCS)
			fwd := t.Basis.Rotate(w.WheelDirectionCS).Mul(-1).Cross(axle)
			w.DeltaRotation = chassis.VelocityInLocalPoint(rel).Dot(fwd) * dt / w.Radius
		} else {
			w.DeltaRotation *= 0.99
		}
		w.Rotation += w.DeltaRotation
	}
}

func (v *RaycastVehicle) castWheel(world *DiscreteDynamicsWorld, w *WheelInfo, t Transform) {
	from := t.Apply(w.ConnectionPointCS)
	dir := t.Basis.Rotate(w.WheelDirectionCS)
	rayLength := w.SuspensionRestLength + w.Radius
	to := from.Add(dir.Mul(rayLength))

	hit, ok := world.RayTest(from, to, v.chassis)
	if !ok {
		w.InContact = false
		w.GroundObject = nil
		w.SuspensionLength = w.SuspensionRestLength
		w.ContactNormalWS = dir.Mul(-1)
		return
	}
	w.InContact = true
	w.GroundObject = hit.Body
	w.ContactPointWS = hit.Point
	w.ContactNormalWS = hit.Normal
	length := hit.Fraction*rayLength - w.Radius
	minLen := w.SuspensionRestLength - w.maxTravel()
	maxLen := w.SuspensionRestLength + w.maxTravel()
	w.SuspensionLength = clamp(length, minLen, maxLen)
}
