// Package protocol defines the closed set of messages exchanged between the
// scene and the adapter, and the flat report buffer layout.
package protocol

import (
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/go-gl/mathgl/mgl64"
)

// Command travels from the scene to the adapter.
type Command interface {
	Name() string
	isCommand()
}

// ShapeType names a collision shape kind on the wire.
type ShapeType string

const (
	ShapePlane       ShapeType = "plane"
	ShapeBox         ShapeType = "box"
	ShapeSphere      ShapeType = "sphere"
	ShapeCylinder    ShapeType = "cylinder"
	ShapeCapsule     ShapeType = "capsule"
	ShapeCone        ShapeType = "cone"
	ShapeConcave     ShapeType = "concave"
	ShapeConvex      ShapeType = "convex"
	ShapeHeightfield ShapeType = "heightfield"
)

// ShapeDesc carries the parameters of one shape. Only the fields of Type
// are read.
type ShapeDesc struct {
	Type ShapeType `msgpack:"type"`

	Normal mgl64.Vec3 `msgpack:"normal,omitempty"`
	Width  float64    `msgpack:"width,omitempty"`
	Height float64    `msgpack:"height,omitempty"`
	Depth  float64    `msgpack:"depth,omitempty"`
	Radius float64    `msgpack:"radius,omitempty"`

	// concave
	Triangles [][3]mgl64.Vec3 `msgpack:"triangles,omitempty"`
	// convex
	Points []mgl64.Vec3 `msgpack:"points,omitempty"`

	// heightfield: XPts by YPts samples spread over XSize by YSize.
	XPts         int       `msgpack:"xpts,omitempty"`
	YPts         int       `msgpack:"ypts,omitempty"`
	Heights      []float64 `msgpack:"heights,omitempty"`
	AbsMaxHeight float64   `msgpack:"absMaxHeight,omitempty"`
	XSize        float64   `msgpack:"xsize,omitempty"`
	YSize        float64   `msgpack:"ysize,omitempty"`
}

// ChildShape is a compound child placed relative to the parent body.
type ChildShape struct {
	Shape          ShapeDesc  `msgpack:"shape"`
	PositionOffset mgl64.Vec3 `msgpack:"positionOffset"`
	Rotation       mgl64.Quat `msgpack:"rotation"`
}

// ConstraintType names a joint kind on the wire.
type ConstraintType string

const (
	ConstraintPoint     ConstraintType = "point"
	ConstraintHinge     ConstraintType = "hinge"
	ConstraintSlider    ConstraintType = "slider"
	ConstraintConeTwist ConstraintType = "conetwist"
	ConstraintDof       ConstraintType = "dof"
)

// VehicleTuning mirrors the suspension and tyre parameters of a vehicle.
type VehicleTuning struct {
	SuspensionStiffness   float64 `msgpack:"suspensionStiffness"`
	SuspensionCompression float64 `msgpack:"suspensionCompression"`
	SuspensionDamping     float64 `msgpack:"suspensionDamping"`
	MaxSuspensionTravelCm float64 `msgpack:"maxSuspensionTravel"`
	FrictionSlip          float64 `msgpack:"frictionSlip"`
	MaxSuspensionForce    float64 `msgpack:"maxSuspensionForce"`
}

// DefaultVehicleTuning returns the tuning applied when none is given.
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

// World

type Init struct {
	ReportSize    int        `msgpack:"reportSize"`
	Broadphase    string     `msgpack:"broadphase"`
	AabbMin       mgl64.Vec3 `msgpack:"aabbMin"`
	AabbMax       mgl64.Vec3 `msgpack:"aabbMax"`
	FixedTimeStep float64    `msgpack:"fixedTimeStep"`
	RateLimit     bool       `msgpack:"rateLimit"`
}

type RegisterMaterial struct {
	ID          ident.ID `msgpack:"id"`
	Friction    float64  `msgpack:"friction"`
	Restitution float64  `msgpack:"restitution"`
}

type UnregisterMaterial struct {
	ID ident.ID `msgpack:"id"`
}

type SetFixedTimeStep struct {
	Step float64 `msgpack:"step"`
}

type SetGravity struct {
	Gravity mgl64.Vec3 `msgpack:"gravity"`
}

// Simulate advances the world. Zero TimeStep or MaxSubSteps means the
// adapter picks them.
type Simulate struct {
	TimeStep    float64 `msgpack:"timeStep,omitempty"`
	MaxSubSteps int     `msgpack:"maxSubSteps,omitempty"`
}

type SimulationResume struct{}

// ReturnBuffer hands a report buffer back to the adapter for reuse.
type ReturnBuffer struct {
	Buffer *Buffer `msgpack:"-"`
}

// Bodies

type AddObject struct {
	ID             ident.ID     `msgpack:"id"`
	Shape          ShapeDesc    `msgpack:"shape"`
	Children       []ChildShape `msgpack:"children,omitempty"`
	Mass           float64      `msgpack:"mass"`
	Position       mgl64.Vec3   `msgpack:"position"`
	Rotation       mgl64.Quat   `msgpack:"rotation"`
	MaterialID     ident.ID     `msgpack:"materialId,omitempty"`
	CollisionFlags *int         `msgpack:"collisionFlags,omitempty"`
}

type RemoveObject struct {
	ID ident.ID `msgpack:"id"`
}

// UpdateTransform carries only the components that changed.
type UpdateTransform struct {
	ID       ident.ID    `msgpack:"id"`
	Position *mgl64.Vec3 `msgpack:"position,omitempty"`
	Rotation *mgl64.Quat `msgpack:"rotation,omitempty"`
}

type UpdateMass struct {
	ID   ident.ID `msgpack:"id"`
	Mass float64  `msgpack:"mass"`
}

type ApplyCentralImpulse struct {
	ID      ident.ID   `msgpack:"id"`
	Impulse mgl64.Vec3 `msgpack:"impulse"`
}

type ApplyImpulse struct {
	ID      ident.ID   `msgpack:"id"`
	Impulse mgl64.Vec3 `msgpack:"impulse"`
	Offset  mgl64.Vec3 `msgpack:"offset"`
}

type ApplyCentralForce struct {
	ID    ident.ID   `msgpack:"id"`
	Force mgl64.Vec3 `msgpack:"force"`
}

type ApplyForce struct {
	ID     ident.ID   `msgpack:"id"`
	Force  mgl64.Vec3 `msgpack:"force"`
	Offset mgl64.Vec3 `msgpack:"offset"`
}

type SetAngularVelocity struct {
	ID       ident.ID   `msgpack:"id"`
	Velocity mgl64.Vec3 `msgpack:"velocity"`
}

type SetLinearVelocity struct {
	ID       ident.ID   `msgpack:"id"`
	Velocity mgl64.Vec3 `msgpack:"velocity"`
}

type SetAngularFactor struct {
	ID     ident.ID   `msgpack:"id"`
	Factor mgl64.Vec3 `msgpack:"factor"`
}

type SetLinearFactor struct {
	ID     ident.ID   `msgpack:"id"`
	Factor mgl64.Vec3 `msgpack:"factor"`
}

type SetDamping struct {
	ID      ident.ID `msgpack:"id"`
	Linear  float64  `msgpack:"linear"`
	Angular float64  `msgpack:"angular"`
}

type SetCcdMotionThreshold struct {
	ID        ident.ID `msgpack:"id"`
	Threshold float64  `msgpack:"threshold"`
}

type SetCcdSweptSphereRadius struct {
	ID     ident.ID `msgpack:"id"`
	Radius float64  `msgpack:"radius"`
}

// Constraints

// AddConstraint positions are local to their body. ObjectB is ident.None
// for single-body joints.
type AddConstraint struct {
	ID        ident.ID       `msgpack:"id"`
	Type      ConstraintType `msgpack:"type"`
	ObjectA   ident.ID       `msgpack:"objecta"`
	ObjectB   ident.ID       `msgpack:"objectb,omitempty"`
	PositionA mgl64.Vec3     `msgpack:"positiona"`
	PositionB mgl64.Vec3     `msgpack:"positionb,omitempty"`
	Axis      mgl64.Vec3     `msgpack:"axis,omitempty"`
	AxisA     mgl64.Vec3     `msgpack:"axisa,omitempty"`
	AxisB     mgl64.Vec3     `msgpack:"axisb,omitempty"`
}

type RemoveConstraint struct {
	ID ident.ID `msgpack:"id"`
}

type ConstraintSetBreakingImpulseThreshold struct {
	ID        ident.ID `msgpack:"id"`
	Threshold float64  `msgpack:"threshold"`
}

type HingeSetLimits struct {
	ID               ident.ID `msgpack:"id"`
	Low              float64  `msgpack:"low"`
	High             float64  `msgpack:"high"`
	BiasFactor       float64  `msgpack:"biasFactor"`
	RelaxationFactor float64  `msgpack:"relaxationFactor"`
}

type HingeEnableAngularMotor struct {
	ID           ident.ID `msgpack:"id"`
	Velocity     float64  `msgpack:"velocity"`
	Acceleration float64  `msgpack:"acceleration"`
}

type HingeDisableMotor struct {
	ID ident.ID `msgpack:"id"`
}

type SliderSetLimits struct {
	ID       ident.ID `msgpack:"id"`
	LinLower float64  `msgpack:"linLower"`
	LinUpper float64  `msgpack:"linUpper"`
	AngLower float64  `msgpack:"angLower"`
	AngUpper float64  `msgpack:"angUpper"`
}

type SliderSetRestitution struct {
	ID      ident.ID `msgpack:"id"`
	Linear  float64  `msgpack:"linear"`
	Angular float64  `msgpack:"angular"`
}

type SliderEnableLinearMotor struct {
	ID           ident.ID `msgpack:"id"`
	Velocity     float64  `msgpack:"velocity"`
	Acceleration float64  `msgpack:"acceleration"`
}

type SliderDisableLinearMotor struct {
	ID ident.ID `msgpack:"id"`
}

type SliderEnableAngularMotor struct {
	ID           ident.ID `msgpack:"id"`
	Velocity     float64  `msgpack:"velocity"`
	Acceleration float64  `msgpack:"acceleration"`
}

type SliderDisableAngularMotor struct {
	ID ident.ID `msgpack:"id"`
}

// ConeTwistSetLimit angles are per axis: X twist, Y and Z swing.
type ConeTwistSetLimit struct {
	ID ident.ID `msgpack:"id"`
	X  float64  `msgpack:"x"`
	Y  float64  `msgpack:"y"`
	Z  float64  `msgpack:"z"`
}

type ConeTwistEnableMotor struct {
	ID ident.ID `msgpack:"id"`
}

type ConeTwistSetMaxMotorImpulse struct {
	ID         ident.ID `msgpack:"id"`
	MaxImpulse float64  `msgpack:"maxImpulse"`
}

type ConeTwistSetMotorTarget struct {
	ID     ident.ID   `msgpack:"id"`
	Target mgl64.Quat `msgpack:"target"`
}

type ConeTwistDisableMotor struct {
	ID ident.ID `msgpack:"id"`
}

type DofSetLinearLowerLimit struct {
	ID    ident.ID   `msgpack:"id"`
	Limit mgl64.Vec3 `msgpack:"limit"`
}

type DofSetLinearUpperLimit struct {
	ID    ident.ID   `msgpack:"id"`
	Limit mgl64.Vec3 `msgpack:"limit"`
}

type DofSetAngularLowerLimit struct {
	ID    ident.ID   `msgpack:"id"`
	Limit mgl64.Vec3 `msgpack:"limit"`
}

type DofSetAngularUpperLimit struct {
	ID    ident.ID   `msgpack:"id"`
	Limit mgl64.Vec3 `msgpack:"limit"`
}

type DofEnableAngularMotor struct {
	ID    ident.ID `msgpack:"id"`
	Which int      `msgpack:"which"`
}

type DofConfigureAngularMotor struct {
	ID        ident.ID `msgpack:"id"`
	Which     int      `msgpack:"which"`
	LowAngle  float64  `msgpack:"lowAngle"`
	HighAngle float64  `msgpack:"highAngle"`
	Velocity  float64  `msgpack:"velocity"`
	MaxForce  float64  `msgpack:"maxForce"`
}

type DofDisableAngularMotor struct {
	ID    ident.ID `msgpack:"id"`
	Which int      `msgpack:"which"`
}

// Vehicles

type AddVehicle struct {
	ID      ident.ID      `msgpack:"id"`
	Chassis ident.ID      `msgpack:"rigidBody"`
	Tuning  VehicleTuning `msgpack:"tuning"`
}

type RemoveVehicle struct {
	ID ident.ID `msgpack:"id"`
}

// AddWheel attaches the next wheel to vehicle ID. A nil Tuning keeps the
// vehicle's tuning.
type AddWheel struct {
	ID                   ident.ID       `msgpack:"id"`
	ConnectionPoint      mgl64.Vec3     `msgpack:"connectionPoint"`
	WheelDirection       mgl64.Vec3     `msgpack:"wheelDirection"`
	WheelAxle            mgl64.Vec3     `msgpack:"wheelAxle"`
	SuspensionRestLength float64        `msgpack:"suspensionRestLength"`
	WheelRadius          float64        `msgpack:"wheelRadius"`
	IsFrontWheel         bool           `msgpack:"isFrontWheel"`
	Tuning               *VehicleTuning `msgpack:"tuning,omitempty"`
}

// SetSteering applies to every wheel when Wheel is nil.
type SetSteering struct {
	ID       ident.ID `msgpack:"id"`
	Steering float64  `msgpack:"steering"`
	Wheel    *int     `msgpack:"wheel,omitempty"`
}

type SetBrake struct {
	ID    ident.ID `msgpack:"id"`
	Brake float64  `msgpack:"brake"`
	Wheel *int     `msgpack:"wheel,omitempty"`
}

type ApplyEngineForce struct {
	ID    ident.ID `msgpack:"id"`
	Force float64  `msgpack:"force"`
	Wheel *int     `msgpack:"wheel,omitempty"`
}

func (Init) Name() string                                  { return "init" }
func (RegisterMaterial) Name() string                      { return "registerMaterial" }
func (UnregisterMaterial) Name() string                    { return "unRegisterMaterial" }
func (SetFixedTimeStep) Name() string                      { return "setFixedTimeStep" }
func (SetGravity) Name() string                            { return "setGravity" }
func (Simulate) Name() string                              { return "simulate" }
func (SimulationResume) Name() string                      { return "simulationResume" }
func (ReturnBuffer) Name() string                          { return "returnBuffer" }
func (AddObject) Name() string                             { return "addObject" }
func (RemoveObject) Name() string                          { return "removeObject" }
func (UpdateTransform) Name() string                       { return "updateTransform" }
func (UpdateMass) Name() string                            { return "updateMass" }
func (ApplyCentralImpulse) Name() string                   { return "applyCentralImpulse" }
func (ApplyImpulse) Name() string                          { return "applyImpulse" }
func (ApplyCentralForce) Name() string                     { return "applyCentralForce" }
func (ApplyForce) Name() string                            { return "applyForce" }
func (SetAngularVelocity) Name() string                    { return "setAngularVelocity" }
func (SetLinearVelocity) Name() string                     { return "setLinearVelocity" }
func (SetAngularFactor) Name() string                      { return "setAngularFactor" }
func (SetLinearFactor) Name() string                       { return "setLinearFactor" }
func (SetDamping) Name() string                            { return "setDamping" }
func (SetCcdMotionThreshold) Name() string                 { return "setCcdMotionThreshold" }
func (SetCcdSweptSphereRadius) Name() string               { return "setCcdSweptSphereRadius" }
func (AddConstraint) Name() string                         { return "addConstraint" }
func (RemoveConstraint) Name() string                      { return "removeConstraint" }
func (ConstraintSetBreakingImpulseThreshold) Name() string { return "constraint_setBreakingImpulseThreshold" }
func (HingeSetLimits) Name() string                        { return "hinge_setLimits" }
func (HingeEnableAngularMotor) Name() string               { return "hinge_enableAngularMotor" }
func (HingeDisableMotor) Name() string                     { return "hinge_disableMotor" }
func (SliderSetLimits) Name() string                       { return "slider_setLimits" }
func (SliderSetRestitution) Name() string                  { return "slider_setRestitution" }
func (SliderEnableLinearMotor) Name() string               { return "slider_enableLinearMotor" }
func (SliderDisableLinearMotor) Name() string              { return "slider_disableLinearMotor" }
func (SliderEnableAngularMotor) Name() string              { return "slider_enableAngularMotor" }
func (SliderDisableAngularMotor) Name() string             { return "slider_disableAngularMotor" }
func (ConeTwistSetLimit) Name() string                     { return "conetwist_setLimit" }
func (ConeTwistEnableMotor) Name() string                  { return "conetwist_enableMotor" }
func (ConeTwistSetMaxMotorImpulse) Name() string           { return "conetwist_setMaxMotorImpulse" }
func (ConeTwistSetMotorTarget) Name() string               { return "conetwist_setMotorTarget" }
func (ConeTwistDisableMotor) Name() string                 { return "conetwist_disableMotor" }
func (DofSetLinearLowerLimit) Name() string                { return "dof_setLinearLowerLimit" }
func (DofSetLinearUpperLimit) Name() string                { return "dof_setLinearUpperLimit" }
func (DofSetAngularLowerLimit) Name() string               { return "dof_setAngularLowerLimit" }
func (DofSetAngularUpperLimit) Name() string               { return "dof_setAngularUpperLimit" }
func (DofEnableAngularMotor) Name() string                 { return "dof_enableAngularMotor" }
func (DofConfigureAngularMotor) Name() string              { return "dof_configureAngularMotor" }
func (DofDisableAngularMotor) Name() string                { return "dof_disableAngularMotor" }
func (AddVehicle) Name() string                            { return "addVehicle" }
func (RemoveVehicle) Name() string                         { return "removeVehicle" }
func (AddWheel) Name() string                              { return "addWheel" }
func (SetSteering) Name() string                           { return "setSteering" }
func (SetBrake) Name() string                              { return "setBrake" }
func (ApplyEngineForce) Name() string                      { return "applyEngineForce" }

func (Init) isCommand()                                  {}
func (RegisterMaterial) isCommand()                      {}
func (UnregisterMaterial) isCommand()                    {}
func (SetFixedTimeStep) isCommand()                      {}
func (SetGravity) isCommand()                            {}
func (Simulate) isCommand()                              {}
func (SimulationResume) isCommand()                      {}
func (ReturnBuffer) isCommand()                          {}
func (AddObject) isCommand()                             {}
func (RemoveObject) isCommand()                          {}
func (UpdateTransform) isCommand()                       {}
func (UpdateMass) isCommand()                            {}
func (ApplyCentralImpulse) isCommand()                   {}
func (ApplyImpulse) isCommand()                          {}
func (ApplyCentralForce) isCommand()                     {}
func (ApplyForce) isCommand()                            {}
func (SetAngularVelocity) isCommand()                    {}
func (SetLinearVelocity) isCommand()                     {}
func (SetAngularFactor) isCommand()                      {}
func (SetLinearFactor) isCommand()                       {}
func (SetDamping) isCommand()                            {}
func (SetCcdMotionThreshold) isCommand()                 {}
func (SetCcdSweptSphereRadius) isCommand()               {}
func (AddConstraint) isCommand()                         {}
func (RemoveConstraint) isCommand()                      {}
func (ConstraintSetBreakingImpulseThreshold) isCommand() {}
func (HingeSetLimits) isCommand()                        {}
func (HingeEnableAngularMotor) isCommand()               {}
func (HingeDisableMotor) isCommand()                     {}
func (SliderSetLimits) isCommand()                       {}
func (SliderSetRestitution) isCommand()                  {}
func (SliderEnableLinearMotor) isCommand()               {}
func (SliderDisableLinearMotor) isCommand()              {}
func (SliderEnableAngularMotor) isCommand()              {}
func (SliderDisableAngularMotor) isCommand()             {}
func (ConeTwistSetLimit) isCommand()                     {}
func (ConeTwistEnableMotor) isCommand()                  {}
func (ConeTwistSetMaxMotorImpulse) isCommand()           {}
func (ConeTwistSetMotorTarget) isCommand()               {}
func (ConeTwistDisableMotor) isCommand()                 {}
func (DofSetLinearLowerLimit) isCommand()                {}
func (DofSetLinearUpperLimit) isCommand()                {}
func (DofSetAngularLowerLimit) isCommand()               {}
func (DofSetAngularUpperLimit) isCommand()               {}
func (DofEnableAngularMotor) isCommand()                 {}
func (DofConfigureAngularMotor) isCommand()              {}
func (DofDisableAngularMotor) isCommand()                {}
func (AddVehicle) isCommand()                            {}
func (RemoveVehicle) isCommand()                         {}
func (AddWheel) isCommand()                              {}
func (SetSteering) isCommand()                           {}
func (SetBrake) isCommand()                              {}
func (ApplyEngineForce) isCommand()                      {}
