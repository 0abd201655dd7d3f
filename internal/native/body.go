package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Collision flags.
const (
	CollisionFlagStatic            = 1
	CollisionFlagKinematic         = 2
	CollisionFlagNoContactResponse = 4
)

// Activation states.
const (
	ActiveTag           = 1
	IslandSleeping      = 2
	WantsDeactivation   = 3
	DisableDeactivation = 4
	DisableSimulation   = 5
)

const (
	sleepLinearThreshold  = 0.8
	sleepAngularThreshold = 1.0
	timeToSleep           = 2.0
)

// MotionState carries the graphics-facing world transform of a body.
type MotionState struct {
	transform Transform
}

func NewMotionState(t Transform) *MotionState {
	return &MotionState{transform: t}
}

func (m *MotionState) WorldTransform() Transform     { return m.transform }
func (m *MotionState) SetWorldTransform(t Transform) { m.transform = t }

// RigidBodyInfo gathers the construction parameters of a body.
type RigidBodyInfo struct {
	Mass         float64
	MotionState  *MotionState
	Shape        Shape
	LocalInertia mgl64.Vec3
}

// RigidBody is a simulated body. The zero value is not usable; use NewRigidBody.
type RigidBody struct {
	shape       Shape
	motionState *MotionState
	transform   Transform

	invMass          float64
	invInertiaLocal  mgl64.Vec3
	invInertiaWorld  mgl64.Mat3
	linearVelocity   mgl64.Vec3
	angularVelocity  mgl64.Vec3
	totalForce       mgl64.Vec3
	totalTorque      mgl64.Vec3
	gravity          mgl64.Vec3
	linearFactor     mgl64.Vec3
	angularFactor    mgl64.Vec3
	linearDamping    float64
	angularDamping   float64
	friction         float64
	restitution      float64
	ccdThreshold     float64
	ccdSweptRadius   float64
	collisionFlags   int
	activationState  int
	deactivationTime float64

	// UserIndex is free for the owner; the world never reads it.
	UserIndex uint64
}

func NewRigidBody(info RigidBodyInfo) *RigidBody {
	b := &RigidBody{
		shape:           info.Shape,
		motionState:     info.MotionState,
		transform:       IdentityTransform(),
		linearFactor:    mgl64.Vec3{1, 1, 1},
		angularFactor:   mgl64.Vec3{1, 1, 1},
		friction:        0.5,
		activationState: ActiveTag,
	}
	if info.MotionState != nil {
		b.transform = info.MotionState.WorldTransform()
	}
	b.SetMassProps(info.Mass, info.LocalInertia)
	return b
}

func (b *RigidBody) Shape() Shape                { return b.shape }
func (b *RigidBody) MotionState() *MotionState   { return b.motionState }
func (b *RigidBody) WorldTransform() Transform   { return b.transform }
func (b *RigidBody) LinearVelocity() mgl64.Vec3  { return b.linearVelocity }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }
func (b *RigidBody) InvMass() float64            { return b.invMass }

// Mass is zero for static bodies.
func (b *RigidBody) Mass() float64 {
	if b.invMass == 0 {
		return 0
	}
	return 1 / b.invMass
}

// CenterOfMassTransform equals the world transform: shapes are built
// around their center of mass.
func (b *RigidBody) CenterOfMassTransform() Transform { return b.transform }

// SetWorldTransform teleports the body. The motion state follows.
func (b *RigidBody) SetWorldTransform(t Transform) {
	b.transform = t
	if b.motionState != nil {
		b.motionState.SetWorldTransform(t)
	}
	b.updateInertiaWorld()
}

// SetMassProps sets mass and local inertia. Zero mass makes the body static.
func (b *RigidBody) SetMassProps(mass float64, inertia mgl64.Vec3) {
	if mass == 0 {
		b.collisionFlags |= CollisionFlagStatic
		b.invMass = 0
	} else {
		b.collisionFlags &^= CollisionFlagStatic
		b.invMass = 1 / mass
	}
	for i := 0; i < 3; i++ {
		if inertia[i] != 0 {
			b.invInertiaLocal[i] = 1 / inertia[i]
		} else {
			b.invInertiaLocal[i] = 0
		}
	}
	b.updateInertiaWorld()
}

// UpdateInertiaTensor recomputes the world inverse inertia from the
// current orientation.
func (b *RigidBody) UpdateInertiaTensor() { b.updateInertiaWorld() }

func (b *RigidBody) updateInertiaWorld() {
	r := rotationMatrix(b.transform.Basis)
	d := mgl64.Diag3(b.invInertiaLocal)
	b.invInertiaWorld = r.Mul3(d).Mul3(r.Transpose())
}

func (b *RigidBody) InvInertiaWorld() mgl64.Mat3 { return b.invInertiaWorld }

func (b *RigidBody) IsStaticObject() bool {
	return b.collisionFlags&CollisionFlagStatic != 0
}

func (b *RigidBody) IsKinematicObject() bool {
	return b.collisionFlags&CollisionFlagKinematic != 0
}

func (b *RigidBody) isStaticOrKinematic() bool {
	return b.collisionFlags&(CollisionFlagStatic|CollisionFlagKinematic) != 0
}

func (b *RigidBody) hasContactResponse() bool {
	return b.collisionFlags&CollisionFlagNoContactResponse == 0
}

func (b *RigidBody) CollisionFlags() int     { return b.collisionFlags }
func (b *RigidBody) SetCollisionFlags(f int) { b.collisionFlags = f }

func (b *RigidBody) Friction() float64         { return b.friction }
func (b *RigidBody) SetFriction(f float64)     { b.friction = f }
func (b *RigidBody) Restitution() float64      { return b.restitution }
func (b *RigidBody) SetRestitution(r float64)  { b.restitution = r }
func (b *RigidBody) LinearFactor() mgl64.Vec3  { return b.linearFactor }
func (b *RigidBody) AngularFactor() mgl64.Vec3 { return b.angularFactor }

func (b *RigidBody) SetLinearFactor(f mgl64.Vec3)  { b.linearFactor = f }
func (b *RigidBody) SetAngularFactor(f mgl64.Vec3) { b.angularFactor = f }

// SetDamping clamps both coefficients to [0, 1].
func (b *RigidBody) SetDamping(linear, angular float64) {
	b.linearDamping = clamp(linear, 0, 1)
	b.angularDamping = clamp(angular, 0, 1)
}

func (b *RigidBody) Damping() (linear, angular float64) {
	return b.linearDamping, b.angularDamping
}

func (b *RigidBody) SetCcdMotionThreshold(t float64)   { b.ccdThreshold = t }
func (b *RigidBody) CcdMotionThreshold() float64       { return b.ccdThreshold }
func (b *RigidBody) SetCcdSweptSphereRadius(r float64) { b.ccdSweptRadius = r }
func (b *RigidBody) CcdSweptSphereRadius() float64     { return b.ccdSweptRadius }

func (b *RigidBody) SetLinearVelocity(v mgl64.Vec3)  { b.linearVelocity = v }
func (b *RigidBody) SetAngularVelocity(v mgl64.Vec3) { b.angularVelocity = v }

func (b *RigidBody) ActivationState() int { return b.activationState }

// SetActivationState leaves the pinned states alone, like ForceActivationState
// does not.
func (b *RigidBody) SetActivationState(s int) {
	if b.activationState != DisableDeactivation && b.activationState != DisableSimulation {
		b.activationState = s
	}
}

func (b *RigidBody) ForceActivationState(s int) { b.activationState = s }

// Activate wakes a sleeping dynamic body.
func (b *RigidBody) Activate() {
	if b.isStaticOrKinematic() {
		return
	}
	b.SetActivationState(ActiveTag)
	b.deactivationTime = 0
}

func (b *RigidBody) IsActive() bool {
	return b.activationState != IslandSleeping && b.activationState != DisableSimulation
}

func (b *RigidBody) ApplyCentralImpulse(impulse mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.linearVelocity = b.linearVelocity.Add(mulElem(impulse, b.linearFactor).Mul(b.invMass))
}

func (b *RigidBody) ApplyTorqueImpulse(torque mgl64.Vec3) {
	b.angularVelocity = b.angularVelocity.Add(mulElem(b.invInertiaWorld.Mul3x1(torque), b.angularFactor))
}

// ApplyImpulse applies impulse at rel, relative to the center of mass.
func (b *RigidBody) ApplyImpulse(impulse, rel mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.ApplyCentralImpulse(impulse)
	b.ApplyTorqueImpulse(rel.Cross(mulElem(impulse, b.linearFactor)))
}

func (b *RigidBody) ApplyCentralForce(force mgl64.Vec3) {
	b.totalForce = b.totalForce.Add(mulElem(force, b.linearFactor))
}

func (b *RigidBody) ApplyTorque(torque mgl64.Vec3) {
	b.totalTorque = b.totalTorque.Add(mulElem(torque, b.angularFactor))
}

// ApplyForce applies force at rel, relative to the center of mass.
func (b *RigidBody) ApplyForce(force, rel mgl64.Vec3) {
	b.ApplyCentralForce(force)
	b.ApplyTorque(rel.Cross(mulElem(force, b.linearFactor)))
}

func (b *RigidBody) ClearForces() {
	b.totalForce = mgl64.Vec3{}
	b.totalTorque = mgl64.Vec3{}
}

func (b *RigidBody) TotalForce() mgl64.Vec3 { return b.totalForce }

// VelocityInLocalPoint returns the velocity of a point at rel from the
// center of mass.
func (b *RigidBody) VelocityInLocalPoint(rel mgl64.Vec3) mgl64.Vec3 {
	return b.linearVelocity.Add(b.angularVelocity.Cross(rel))
}

func (b *RigidBody) setGravity(g mgl64.Vec3) {
	if b.invMass != 0 {
		b.gravity = g
	}
}

func (b *RigidBody) integrateVelocities(dt float64) {
	if b.isStaticOrKinematic() || !b.IsActive() {
		return
	}
	acc := b.totalForce.Mul(b.invMass).Add(mulElem(b.gravity, b.linearFactor))
	b.linearVelocity = b.linearVelocity.Add(acc.Mul(dt))
	b.angularVelocity = b.angularVelocity.Add(mulElem(b.invInertiaWorld.Mul3x1(b.totalTorque), b.angularFactor).Mul(dt))
}

func (b *RigidBody) applyDamping(dt float64) {
	b.linearVelocity = b.linearVelocity.Mul(math.Pow(1-b.linearDamping, dt))
	b.angularVelocity = b.angularVelocity.Mul(math.Pow(1-b.angularDamping, dt))
}

const maxAngularStep = math.Pi / 4

func (b *RigidBody) integrateTransform(dt float64) {
	if b.isStaticOrKinematic() || !b.IsActive() {
		return
	}
	origin := b.transform.Origin.Add(b.linearVelocity.Mul(dt))
	w := b.angularVelocity
	angle := w.Len() * dt
	if angle > maxAngularStep {
		w = w.Mul(maxAngularStep / angle)
		angle = maxAngularStep
	}
	basis := b.transform.Basis
	if angle > 1e-12 {
		dq := mgl64.QuatRotate(angle, w.Normalize())
		basis = dq.Mul(basis).Normalize()
	}
	b.SetWorldTransform(Transform{Origin: origin, Basis: basis})
}

func (b *RigidBody) updateDeactivation(dt float64) {
	if b.activationState == IslandSleeping || b.activationState == DisableDeactivation || b.activationState == DisableSimulation {
		return
	}
	if b.linearVelocity.Len() < sleepLinearThreshold && b.angularVelocity.Len() < sleepAngularThreshold {
		b.deactivationTime += dt
	} else {
		b.deactivationTime = 0
		b.SetActivationState(ActiveTag)
	}
	if b.deactivationTime > timeToSleep && b.activationState == ActiveTag {
		b.activationState = WantsDeactivation
	}
}

func (b *RigidBody) worldBounds() aabb {
	lo, hi := b.shape.LocalBounds()
	return transformBounds(b.transform, lo, hi)
}
