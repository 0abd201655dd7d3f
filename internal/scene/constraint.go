package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownBody  = errors.New("unknown body")
	ErrSecondBody   = errors.New("joint needs a second body")
	ErrUnknownJoint = errors.New("unknown constraint type")
)

// ConstraintDesc describes a joint by its world-space anchor. B is
// ident.None for a joint pinned to the world.
type ConstraintDesc struct {
	Type     protocol.ConstraintType
	A        ident.ID
	B        ident.ID
	Position mgl64.Vec3
	Axis     mgl64.Vec3
}

// Constraint mirrors one joint. PositionA and AppliedImpulse follow the
// constraint reports.
type Constraint struct {
	scene *Scene
	id    ident.ID
	kind  protocol.ConstraintType
	a, b  ident.ID

	positionA      mgl64.Vec3
	appliedImpulse float64
}

// AddConstraint converts the world anchor into each body's frame and
// sends the joint to the adapter.
func (s *Scene) AddConstraint(desc ConstraintDesc) (*Constraint, error) {
	s.mu.Lock()
	cmd, err := s.constraintCommand(desc)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	c := &Constraint{
		scene:     s,
		id:        s.ids.Next(),
		kind:      desc.Type,
		a:         desc.A,
		b:         desc.B,
		positionA: desc.Position,
	}
	cmd.ID = c.id
	s.constraints[c.id] = c
	s.mu.Unlock()

	s.send(cmd)
	return c, nil
}

func (s *Scene) constraintCommand(desc ConstraintDesc) (protocol.AddConstraint, error) {
	cmd := protocol.AddConstraint{Type: desc.Type, ObjectA: desc.A, ObjectB: ident.None}
	a, ok := s.bodies[desc.A]
	if !ok {
		return cmd, fmt.Errorf("body %s: %w", desc.A, ErrUnknownBody)
	}
	var b *Body
	if desc.B != ident.None {
		if b, ok = s.bodies[desc.B]; !ok {
			return cmd, fmt.Errorf("body %s: %w", desc.B, ErrUnknownBody)
		}
		cmd.ObjectB = desc.B
	}

	cmd.PositionA = a.worldToLocal(desc.Position)
	if b != nil {
		cmd.PositionB = b.worldToLocal(desc.Position)
	}

	switch desc.Type {
	case protocol.ConstraintPoint, protocol.ConstraintHinge, protocol.ConstraintSlider:
		cmd.Axis = desc.Axis
	case protocol.ConstraintConeTwist, protocol.ConstraintDof:
		if b == nil && desc.Type == protocol.ConstraintConeTwist {
			return cmd, ErrSecondBody
		}
		cmd.AxisA = eulerXYZ(a.rotation)
		if b != nil {
			cmd.AxisB = eulerXYZ(b.rotation)
		}
	default:
		return cmd, fmt.Errorf("%q: %w", desc.Type, ErrUnknownJoint)
	}
	return cmd, nil
}

// RemoveConstraint forgets the joint and tells the adapter to drop it.
func (s *Scene) RemoveConstraint(id ident.ID) {
	s.mu.Lock()
	_, ok := s.constraints[id]
	delete(s.constraints, id)
	s.mu.Unlock()
	if ok {
		s.send(protocol.RemoveConstraint{ID: id})
	}
}

func (s *Scene) Constraint(id ident.ID) (*Constraint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.constraints[id]
	return c, ok
}

func (c *Constraint) ID() ident.ID                  { return c.id }
func (c *Constraint) Type() protocol.ConstraintType { return c.kind }

// Bodies returns both body ids; b is ident.None for a world joint.
func (c *Constraint) Bodies() (a, b ident.ID) { return c.a, c.b }

// PositionA is the anchor in world space as last reported.
func (c *Constraint) PositionA() mgl64.Vec3 {
	c.scene.mu.Lock()
	defer c.scene.mu.Unlock()
	return c.positionA
}

func (c *Constraint) AppliedImpulse() float64 {
	c.scene.mu.Lock()
	defer c.scene.mu.Unlock()
	return c.appliedImpulse
}

func (c *Constraint) SetBreakingImpulseThreshold(threshold float64) {
	c.scene.send(protocol.ConstraintSetBreakingImpulseThreshold{ID: c.id, Threshold: threshold})
}

// eulerXYZ decomposes q into XYZ-order Euler angles.
func eulerXYZ(q mgl64.Quat) mgl64.Vec3 {
	m := q.Normalize().Mat4()
	m11, m12, m13 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m22, m23 := m.At(1, 1), m.At(1, 2)
	m32, m33 := m.At(2, 1), m.At(2, 2)

	y := math.Asin(mgl64.Clamp(m13, -1, 1))
	if math.Abs(m13) < 0.9999999 {
		return mgl64.Vec3{math.Atan2(-m23, m33), y, math.Atan2(-m12, m11)}
	}
	return mgl64.Vec3{math.Atan2(m32, m22), y, 0}
}

// Typed handles

type Point struct{ *Constraint }

type Hinge struct{ *Constraint }

type Slider struct{ *Constraint }

type ConeTwist struct{ *Constraint }

type Dof struct{ *Constraint }

func (s *Scene) AddPoint(a, b ident.ID, anchor mgl64.Vec3) (Point, error) {
	c, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintPoint, A: a, B: b, Position: anchor})
	return Point{c}, err
}

func (s *Scene) AddHinge(a, b ident.ID, anchor, axis mgl64.Vec3) (Hinge, error) {
	c, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintHinge, A: a, B: b, Position: anchor, Axis: axis})
	return Hinge{c}, err
}

// AddSlider takes the slide axis as Euler angles.
func (s *Scene) AddSlider(a, b ident.ID, anchor, axis mgl64.Vec3) (Slider, error) {
	c, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintSlider, A: a, B: b, Position: anchor, Axis: axis})
	return Slider{c}, err
}

func (s *Scene) AddConeTwist(a, b ident.ID, anchor mgl64.Vec3) (ConeTwist, error) {
	c, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintConeTwist, A: a, B: b, Position: anchor})
	return ConeTwist{c}, err
}

func (s *Scene) AddDof(a, b ident.ID, anchor mgl64.Vec3) (Dof, error) {
	c, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintDof, A: a, B: b, Position: anchor})
	return Dof{c}, err
}

func (h Hinge) SetLimits(low, high, biasFactor, relaxationFactor float64) {
	h.scene.send(protocol.HingeSetLimits{ID: h.id, Low: low, High: high, BiasFactor: biasFactor, RelaxationFactor: relaxationFactor})
}

func (h Hinge) EnableAngularMotor(velocity, acceleration float64) {
	h.scene.send(protocol.HingeEnableAngularMotor{ID: h.id, Velocity: velocity, Acceleration: acceleration})
}

func (h Hinge) DisableMotor() {
	h.scene.send(protocol.HingeDisableMotor{ID: h.id})
}

func (s Slider) SetLimits(linLower, linUpper, angLower, angUpper float64) {
	s.scene.send(protocol.SliderSetLimits{ID: s.id, LinLower: linLower, LinUpper: linUpper, AngLower: angLower, AngUpper: angUpper})
}

func (s Slider) SetRestitution(linear, angular float64) {
	s.scene.send(protocol.SliderSetRestitution{ID: s.id, Linear: linear, Angular: angular})
}

func (s Slider) EnableLinearMotor(velocity, acceleration float64) {
	s.scene.send(protocol.SliderEnableLinearMotor{ID: s.id, Velocity: velocity, Acceleration: acceleration})
}

func (s Slider) DisableLinearMotor() {
	s.scene.send(protocol.SliderDisableLinearMotor{ID: s.id})
}

func (s Slider) EnableAngularMotor(velocity, acceleration float64) {
	s.scene.send(protocol.SliderEnableAngularMotor{ID: s.id, Velocity: velocity, Acceleration: acceleration})
}

func (s Slider) DisableAngularMotor() {
	s.scene.send(protocol.SliderDisableAngularMotor{ID: s.id})
}

// SetLimit takes the twist (x) and swing (y, z) spans in radians.
func (c ConeTwist) SetLimit(limit mgl64.Vec3) {
	c.scene.send(protocol.ConeTwistSetLimit{ID: c.id, X: limit[0], Y: limit[1], Z: limit[2]})
}

func (c ConeTwist) EnableMotor() {
	c.scene.send(protocol.ConeTwistEnableMotor{ID: c.id})
}

func (c ConeTwist) SetMaxMotorImpulse(maxImpulse float64) {
	c.scene.send(protocol.ConeTwistSetMaxMotorImpulse{ID: c.id, MaxImpulse: maxImpulse})
}

// SetMotorTarget takes the target orientation as Euler angles.
func (c ConeTwist) SetMotorTarget(target mgl64.Vec3) {
	q := mgl64.AnglesToQuat(target[0], target[1], target[2], mgl64.XYZ)
	c.scene.send(protocol.ConeTwistSetMotorTarget{ID: c.id, Target: q})
}

func (c ConeTwist) DisableMotor() {
	c.scene.send(protocol.ConeTwistDisableMotor{ID: c.id})
}

func (d Dof) SetLinearLowerLimit(limit mgl64.Vec3) {
	d.scene.send(protocol.DofSetLinearLowerLimit{ID: d.id, Limit: limit})
}

func (d Dof) SetLinearUpperLimit(limit mgl64.Vec3) {
	d.scene.send(protocol.DofSetLinearUpperLimit{ID: d.id, Limit: limit})
}

func (d Dof) SetAngularLowerLimit(limit mgl64.Vec3) {
	d.scene.send(protocol.DofSetAngularLowerLimit{ID: d.id, Limit: limit})
}

func (d Dof) SetAngularUpperLimit(limit mgl64.Vec3) {
	d.scene.send(protocol.DofSetAngularUpperLimit{ID: d.id, Limit: limit})
}

// EnableAngularMotor turns on the motor of axis which (0 to 2).
func (d Dof) EnableAngularMotor(which int) {
	d.scene.send(protocol.DofEnableAngularMotor{ID: d.id, Which: which})
}

func (d Dof) ConfigureAngularMotor(which int, lowAngle, highAngle, velocity, maxForce float64) {
	d.scene.send(protocol.DofConfigureAngularMotor{
		ID:        d.id,
		Which:     which,
		LowAngle:  lowAngle,
		HighAngle: highAngle,
		Velocity:  velocity,
		MaxForce:  maxForce,
	})
}

func (d Dof) DisableAngularMotor(which int) {
	d.scene.send(protocol.DofDisableAngularMotor{ID: d.id, Which: which})
}
