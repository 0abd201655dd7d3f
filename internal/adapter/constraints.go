package adapter

import (
	"math"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

func (a *Adapter) addConstraint(c protocol.AddConstraint) {
	if _, exists := a.constraints.Get(c.ID); exists {
		a.logger.Debug("constraint already exists", "id", c.ID)
		return
	}
	ba, ok := a.bodies.Get(c.ObjectA)
	if !ok {
		a.logger.Debug("constraint body missing", "id", c.ID, "body", c.ObjectA)
		return
	}
	var bb *body
	if c.ObjectB != ident.None {
		if bb, ok = a.bodies.Get(c.ObjectB); !ok {
			a.logger.Debug("constraint body missing", "id", c.ID, "body", c.ObjectB)
			return
		}
	}

	joint := buildJoint(c, ba, bb)
	if joint == nil {
		a.logger.Debug("constraint not built", "id", c.ID, "type", c.Type)
		return
	}
	a.world.AddConstraint(joint)
	joint.EnableFeedback(true)
	a.constraints.Add(c.ID, &constraint{id: c.ID, kind: c.Type, joint: joint, a: ba, b: bb})
}

// buildJoint returns nil for an unknown type, or for a cone twist
// without its second body.
func buildJoint(c protocol.AddConstraint, ba, bb *body) native.Constraint {
	switch c.Type {
	case protocol.ConstraintPoint:
		if bb == nil {
			return native.NewPoint2PointConstraint(ba.rb, c.PositionA)
		}
		return native.NewPoint2PointConstraintPair(ba.rb, bb.rb, c.PositionA, c.PositionB)

	case protocol.ConstraintHinge:
		if bb == nil {
			return native.NewHingeConstraint(ba.rb, c.PositionA, c.Axis)
		}
		return native.NewHingeConstraintPair(ba.rb, bb.rb, c.PositionA, c.PositionB, c.Axis, c.Axis)

	case protocol.ConstraintSlider:
		rot := native.QuatFromEuler(c.Axis[0], c.Axis[1], c.Axis[2])
		frameA := native.NewTransform(c.PositionA, rot)
		if bb == nil {
			return native.NewSliderConstraint(ba.rb, frameA)
		}
		return native.NewSliderConstraintPair(ba.rb, bb.rb, frameA, native.NewTransform(c.PositionB, rot))

	case protocol.ConstraintConeTwist:
		if bb == nil {
			return nil
		}
		cone := native.NewConeTwistConstraint(ba.rb, bb.rb, axisFrame(c.PositionA, c.AxisA), axisFrame(c.PositionB, c.AxisB))
		cone.SetLimit(math.Pi, 0, math.Pi)
		return cone

	case protocol.ConstraintDof:
		frameA := axisFrame(c.PositionA, c.AxisA)
		if bb == nil {
			return native.NewGeneric6DofConstraint(ba.rb, frameA)
		}
		return native.NewGeneric6DofConstraintPair(ba.rb, bb.rb, frameA, axisFrame(c.PositionB, c.AxisB))
	}
	return nil
}

// axisFrame turns a body's Euler orientation into a joint frame.
func axisFrame(origin, euler mgl64.Vec3) native.Transform {
	return native.NewTransform(origin, native.QuatFromEulerZYX(-euler[2], -euler[1], -euler[0]))
}

func (a *Adapter) removeConstraint(id ident.ID) {
	c, ok := a.constraints.Delete(id)
	if !ok {
		a.logger.Debug("unknown constraint", "id", id)
		return
	}
	a.world.RemoveConstraint(c.joint)
}

func (c *constraint) activate() {
	c.a.rb.Activate()
	if c.b != nil {
		c.b.rb.Activate()
	}
}

func constraintID(cmd protocol.Command) ident.ID {
	switch c := cmd.(type) {
	case protocol.HingeSetLimits:
		return c.ID
	case protocol.HingeEnableAngularMotor:
		return c.ID
	case protocol.HingeDisableMotor:
		return c.ID
	case protocol.SliderSetLimits:
		return c.ID
	case protocol.SliderSetRestitution:
		return c.ID
	case protocol.SliderEnableLinearMotor:
		return c.ID
	case protocol.SliderDisableLinearMotor:
		return c.ID
	case protocol.SliderEnableAngularMotor:
		return c.ID
	case protocol.SliderDisableAngularMotor:
		return c.ID
	case protocol.ConeTwistSetLimit:
		return c.ID
	case protocol.ConeTwistEnableMotor:
		return c.ID
	case protocol.ConeTwistSetMaxMotorImpulse:
		return c.ID
	case protocol.ConeTwistSetMotorTarget:
		return c.ID
	case protocol.ConeTwistDisableMotor:
		return c.ID
	case protocol.DofSetLinearLowerLimit:
		return c.ID
	case protocol.DofSetLinearUpperLimit:
		return c.ID
	case protocol.DofSetAngularLowerLimit:
		return c.ID
	case protocol.DofSetAngularUpperLimit:
		return c.ID
	case protocol.DofEnableAngularMotor:
		return c.ID
	case protocol.DofConfigureAngularMotor:
		return c.ID
	case protocol.DofDisableAngularMotor:
		return c.ID
	}
	return ident.None
}

// mutateConstraint applies a runtime joint command and wakes both bodies.
// A command aimed at a joint of another kind is ignored.
func (a *Adapter) mutateConstraint(cmd protocol.Command) {
	a.withConstraint(constraintID(cmd), func(c *constraint) {
		if !applyMutation(c.joint, cmd) {
			a.logger.Debug("constraint kind mismatch", "id", c.id, "kind", c.kind, "command", cmd.Name())
			return
		}
		c.activate()
	})
}

func applyMutation(joint native.Constraint, cmd protocol.Command) bool {
	switch j := joint.(type) {
	case *native.HingeConstraint:
		return mutateHinge(j, cmd)
	case *native.SliderConstraint:
		return mutateSlider(j, cmd)
	case *native.ConeTwistConstraint:
		return mutateConeTwist(j, cmd)
	case *native.Generic6DofConstraint:
		return mutateDof(j, cmd)
	}
	return false
}

func mutateHinge(h *native.HingeConstraint, cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.HingeSetLimits:
		h.SetLimit(c.Low, c.High, c.BiasFactor, c.RelaxationFactor)
	case protocol.HingeEnableAngularMotor:
		h.EnableAngularMotor(true, c.Velocity, c.Acceleration)
	case protocol.HingeDisableMotor:
		h.EnableMotor(false)
	default:
		return false
	}
	return true
}

func mutateSlider(s *native.SliderConstraint, cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.SliderSetLimits:
		s.SetLowerLinLimit(c.LinLower)
		s.SetUpperLinLimit(c.LinUpper)
		s.SetLowerAngLimit(c.AngLower)
		s.SetUpperAngLimit(c.AngUpper)
	case protocol.SliderSetRestitution:
		s.SetSoftnessLimLin(c.Linear)
		s.SetSoftnessLimAng(c.Angular)
	case protocol.SliderEnableLinearMotor:
		s.SetTargetLinMotorVelocity(c.Velocity)
		s.SetMaxLinMotorForce(c.Acceleration)
		s.SetPoweredLinMotor(true)
	case protocol.SliderDisableLinearMotor:
		s.SetPoweredLinMotor(false)
	case protocol.SliderEnableAngularMotor:
		s.SetTargetAngMotorVelocity(c.Velocity)
		s.SetMaxAngMotorForce(c.Acceleration)
		s.SetPoweredAngMotor(true)
	case protocol.SliderDisableAngularMotor:
		s.SetPoweredAngMotor(false)
	default:
		return false
	}
	return true
}

func mutateConeTwist(ct *native.ConeTwistConstraint, cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.ConeTwistSetLimit:
		ct.SetLimit(c.Z, c.Y, c.X)
	case protocol.ConeTwistEnableMotor:
		ct.EnableMotor(true)
	case protocol.ConeTwistSetMaxMotorImpulse:
		ct.SetMaxMotorImpulse(c.MaxImpulse)
	case protocol.ConeTwistSetMotorTarget:
		ct.SetMotorTarget(c.Target)
	case protocol.ConeTwistDisableMotor:
		ct.EnableMotor(false)
	default:
		return false
	}
	return true
}

func mutateDof(d *native.Generic6DofConstraint, cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.DofSetLinearLowerLimit:
		d.SetLinearLowerLimit(c.Limit)
	case protocol.DofSetLinearUpperLimit:
		d.SetLinearUpperLimit(c.Limit)
	case protocol.DofSetAngularLowerLimit:
		d.SetAngularLowerLimit(c.Limit)
	case protocol.DofSetAngularUpperLimit:
		d.SetAngularUpperLimit(c.Limit)
	case protocol.DofEnableAngularMotor:
		if m := d.RotationalLimitMotor(c.Which); m != nil {
			m.EnableMotor = true
		}
	case protocol.DofConfigureAngularMotor:
		if m := d.RotationalLimitMotor(c.Which); m != nil {
			m.LoLimit = c.LowAngle
			m.HiLimit = c.HighAngle
			m.TargetVelocity = c.Velocity
			m.MaxMotorForce = c.MaxForce
		}
	case protocol.DofDisableAngularMotor:
		if m := d.RotationalLimitMotor(c.Which); m != nil {
			m.EnableMotor = false
		}
	default:
		return false
	}
	return true
}
