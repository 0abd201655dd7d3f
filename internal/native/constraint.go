package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Constraint joins body A to body B, or to the world when B is nil.
type Constraint interface {
	BodyA() *RigidBody
	BodyB() *RigidBody
	EnableFeedback(bool)
	AppliedImpulse() float64
	SetBreakingImpulseThreshold(float64)
	BreakingImpulseThreshold() float64
	IsEnabled() bool
	SetEnabled(bool)
	FrameA() Transform

	base() *constraintBase
	buildRows(rb *rowBuilder)
}

type constraintBase struct {
	bodyA, bodyB *RigidBody
	frameA       Transform
	frameB       Transform
	feedback     bool
	applied      float64
	threshold    float64
	enabled      bool
	rows         []*solverRow
}

func newConstraintBase(a, b *RigidBody, frameA, frameB Transform) constraintBase {
	return constraintBase{
		bodyA:     a,
		bodyB:     b,
		frameA:    frameA,
		frameB:    frameB,
		threshold: math.Inf(1),
		enabled:   true,
	}
}

func (c *constraintBase) base() *constraintBase { return c }

func (c *constraintBase) BodyA() *RigidBody                     { return c.bodyA }
func (c *constraintBase) BodyB() *RigidBody                     { return c.bodyB }
func (c *constraintBase) EnableFeedback(on bool)                { c.feedback = on }
func (c *constraintBase) AppliedImpulse() float64               { return c.applied }
func (c *constraintBase) SetBreakingImpulseThreshold(t float64) { c.threshold = t }
func (c *constraintBase) BreakingImpulseThreshold() float64     { return c.threshold }
func (c *constraintBase) IsEnabled() bool                       { return c.enabled }
func (c *constraintBase) SetEnabled(on bool)                    { c.enabled = on }

// FrameA is the constraint frame in body A space.
func (c *constraintBase) FrameA() Transform { return c.frameA }

func bodyTransform(b *RigidBody) Transform {
	if b == nil {
		return IdentityTransform()
	}
	return b.transform
}

func (c *constraintBase) worldFrames() (Transform, Transform) {
	return bodyTransform(c.bodyA).Mul(c.frameA), bodyTransform(c.bodyB).Mul(c.frameB)
}

func (c *constraintBase) track(rb *rowBuilder, r *solverRow) *solverRow {
	rb.add(r)
	c.rows = append(c.rows, r)
	return r
}

// pointRows pins the frame origins together along the three world axes.
func (c *constraintBase) pointRows(rb *rowBuilder, pA, pB mgl64.Vec3) {
	diff := pA.Sub(pB)
	for i := 0; i < 3; i++ {
		var u mgl64.Vec3
		u[i] = 1
		r := rb.linearRow(c.bodyA, c.bodyB, pA, pB, u)
		r.target = rb.positionTarget(defaultERP, diff[i])
		c.track(rb, r)
	}
}

func (c *constraintBase) begin() { c.rows = c.rows[:0] }

// finish stores the applied impulse and breaks the constraint when it
// exceeds the threshold.
func (c *constraintBase) finish() {
	sum := 0.0
	for _, r := range c.rows {
		sum += r.acc * r.acc
	}
	c.applied = math.Sqrt(sum)
	if c.applied >= c.threshold {
		c.enabled = false
	}
}

// frameInWorld returns the frame of B matching A's frame at creation,
// for constraints attached to the world.
func frameInWorld(a *RigidBody, frameA Transform) Transform {
	return a.transform.Mul(frameA)
}

// Point2PointConstraint is a ball joint.
type Point2PointConstraint struct {
	constraintBase
}

func NewPoint2PointConstraint(a *RigidBody, pivotA mgl64.Vec3) *Point2PointConstraint {
	frameA := Transform{Origin: pivotA, Basis: mgl64.QuatIdent()}
	return &Point2PointConstraint{constraintBase: newConstraintBase(a, nil, frameA, frameInWorld(a, frameA))}
}

func NewPoint2PointConstraintPair(a, b *RigidBody, pivotA, pivotB mgl64.Vec3) *Point2PointConstraint {
	return &Point2PointConstraint{constraintBase: newConstraintBase(a, b,
		Transform{Origin: pivotA, Basis: mgl64.QuatIdent()},
		Transform{Origin: pivotB, Basis: mgl64.QuatIdent()})}
}

func (c *Point2PointConstraint) buildRows(rb *rowBuilder) {
	fa, fb := c.worldFrames()
	c.pointRows(rb, fa.Origin, fb.Origin)
}

// HingeConstraint allows rotation about one axis.
type HingeConstraint struct {
	constraintBase
	axisA, axisB mgl64.Vec3
	refA, refB   mgl64.Vec3

	lowerLimit, upperLimit float64
	biasFactor             float64
	relaxationFactor       float64

	motorEnabled    bool
	motorVelocity   float64
	maxMotorImpulse float64
}

func newHinge(a, b *RigidBody, pivotA, pivotB, axisA, axisB mgl64.Vec3) *HingeConstraint {
	axisA = safeNormalize(axisA, mgl64.Vec3{0, 0, 1})
	axisB = safeNormalize(axisB, mgl64.Vec3{0, 0, 1})
	h := &HingeConstraint{
		axisA:            axisA,
		axisB:            axisB,
		lowerLimit:       1,
		upperLimit:       -1,
		biasFactor:       0.3,
		relaxationFactor: 1,
	}
	frameA := Transform{Origin: pivotA, Basis: mgl64.QuatIdent()}
	frameB := Transform{Origin: pivotB, Basis: mgl64.QuatIdent()}
	if b == nil {
		frameB = frameInWorld(a, frameA)
		h.axisB = a.transform.Basis.Rotate(axisA)
	}
	h.constraintBase = newConstraintBase(a, b, frameA, frameB)
	h.refA, _ = planeSpace(axisA)
	refWorld := a.transform.Basis.Rotate(h.refA)
	h.refB = bodyTransform(b).Basis.Conjugate().Rotate(refWorld)
	return h
}

func NewHingeConstraint(a *RigidBody, pivotA, axisA mgl64.Vec3) *HingeConstraint {
	return newHinge(a, nil, pivotA, mgl64.Vec3{}, axisA, axisA)
}

func NewHingeConstraintPair(a, b *RigidBody, pivotA, pivotB, axisA, axisB mgl64.Vec3) *HingeConstraint {
	return newHinge(a, b, pivotA, pivotB, axisA, axisB)
}

// SetLimit bounds the hinge angle. low > high leaves it free.
func (h *HingeConstraint) SetLimit(low, high, biasFactor, relaxationFactor float64) {
	h.lowerLimit, h.upperLimit = low, high
	h.biasFactor, h.relaxationFactor = biasFactor, relaxationFactor
}

func (h *HingeConstraint) Limits() (low, high float64) { return h.lowerLimit, h.upperLimit }

func (h *HingeConstraint) EnableAngularMotor(enable bool, velocity, maxImpulse float64) {
	h.motorEnabled = enable
	h.motorVelocity = velocity
	h.maxMotorImpulse = maxImpulse
}

func (h *HingeConstraint) EnableMotor(enable bool) { h.motorEnabled = enable }

func (h *HingeConstraint) MotorEnabled() bool { return h.motorEnabled }

// HingeAngle is the rotation of A relative to B about the hinge axis.
func (h *HingeConstraint) HingeAngle() float64 {
	a := h.bodyA.transform.Basis.Rotate(h.axisA)
	ra := h.bodyA.transform.Basis.Rotate(h.refA)
	rb := bodyTransform(h.bodyB).Basis.Rotate(h.refB)
	return math.Atan2(rb.Cross(ra).Dot(a), rb.Dot(ra))
}

func (h *HingeConstraint) buildRows(rb *rowBuilder) {
	fa, fb := h.worldFrames()
	h.pointRows(rb, fa.Origin, fb.Origin)

	a := h.bodyA.transform.Basis.Rotate(h.axisA)
	b := bodyTransform(h.bodyB).Basis.Rotate(h.axisB)
	p, q := planeSpace(a)
	cross := a.Cross(b)
	for _, u := range []mgl64.Vec3{p, q} {
		r := rb.angularRow(h.bodyA, h.bodyB, u)
		r.target = defaultERP / rb.dt * cross.Dot(u)
		h.track(rb, r)
	}

	angle := h.HingeAngle()
	limit := rb.angularRow(h.bodyA, h.bodyB, a)
	if h.lowerLimit <= h.upperLimit && rb.limitRow(limit, angle, h.lowerLimit, h.upperLimit, h.biasFactor) {
		limit.effMass *= h.relaxationFactor
		h.rows = append(h.rows, limit)
	}
	if h.motorEnabled {
		m := rb.angularRow(h.bodyA, h.bodyB, a)
		m.target = h.motorVelocity
		m.lo, m.hi = -h.maxMotorImpulse, h.maxMotorImpulse
		h.track(rb, m)
	}
}

// SliderConstraint allows translation along and rotation about the X
// axis of its frames.
type SliderConstraint struct {
	constraintBase
	lowerLin, upperLin float64
	lowerAng, upperAng float64
	softnessLin        float64
	softnessAng        float64

	poweredLin        bool
	targetLinVelocity float64
	maxLinForce       float64
	poweredAng        bool
	targetAngVelocity float64
	maxAngForce       float64
}

func newSlider(a, b *RigidBody, frameA, frameB Transform) *SliderConstraint {
	return &SliderConstraint{
		constraintBase: newConstraintBase(a, b, frameA, frameB),
		lowerLin:       1,
		upperLin:       -1,
		softnessLin:    1,
		softnessAng:    1,
	}
}

func NewSliderConstraint(a *RigidBody, frameA Transform) *SliderConstraint {
	return newSlider(a, nil, frameA, frameInWorld(a, frameA))
}

func NewSliderConstraintPair(a, b *RigidBody, frameA, frameB Transform) *SliderConstraint {
	return newSlider(a, b, frameA, frameB)
}

func (s *SliderConstraint) SetLowerLinLimit(v float64)  { s.lowerLin = v }
func (s *SliderConstraint) SetUpperLinLimit(v float64)  { s.upperLin = v }
func (s *SliderConstraint) SetLowerAngLimit(v float64)  { s.lowerAng = v }
func (s *SliderConstraint) SetUpperAngLimit(v float64)  { s.upperAng = v }
func (s *SliderConstraint) SetSoftnessLimLin(v float64) { s.softnessLin = v }
func (s *SliderConstraint) SetSoftnessLimAng(v float64) { s.softnessAng = v }

func (s *SliderConstraint) LinLimits() (lower, upper float64) { return s.lowerLin, s.upperLin }
func (s *SliderConstraint) AngLimits() (lower, upper float64) { return s.lowerAng, s.upperAng }

func (s *SliderConstraint) SetTargetLinMotorVelocity(v float64) { s.targetLinVelocity = v }
func (s *SliderConstraint) SetMaxLinMotorForce(f float64)       { s.maxLinForce = f }
func (s *SliderConstraint) SetPoweredLinMotor(on bool)          { s.poweredLin = on }
func (s *SliderConstraint) PoweredLinMotor() bool               { return s.poweredLin }
func (s *SliderConstraint) SetTargetAngMotorVelocity(v float64) { s.targetAngVelocity = v }
func (s *SliderConstraint) SetMaxAngMotorForce(f float64)       { s.maxAngForce = f }
func (s *SliderConstraint) SetPoweredAngMotor(on bool)          { s.poweredAng = on }
func (s *SliderConstraint) PoweredAngMotor() bool               { return s.poweredAng }

// LinearPos is the offset of frame A from frame B along the slider axis.
func (s *SliderConstraint) LinearPos() float64 {
	fa, fb := s.worldFrames()
	axis := fb.Basis.Rotate(mgl64.Vec3{1, 0, 0})
	return fa.Origin.Sub(fb.Origin).Dot(axis)
}

func (s *SliderConstraint) buildRows(rb *rowBuilder) {
	fa, fb := s.worldFrames()
	axis := fb.Basis.Rotate(mgl64.Vec3{1, 0, 0})
	perp1 := fb.Basis.Rotate(mgl64.Vec3{0, 1, 0})
	perp2 := fb.Basis.Rotate(mgl64.Vec3{0, 0, 1})
	diff := fa.Origin.Sub(fb.Origin)

	for _, u := range []mgl64.Vec3{perp1, perp2} {
		r := rb.linearRow(s.bodyA, s.bodyB, fa.Origin, fa.Origin, u)
		r.target = rb.positionTarget(defaultERP, diff.Dot(u))
		s.track(rb, r)
	}

	rot := rotationVector(fa.Basis.Mul(fb.Basis.Conjugate()))
	for _, u := range []mgl64.Vec3{perp1, perp2} {
		r := rb.angularRow(s.bodyA, s.bodyB, u)
		r.target = rb.positionTarget(defaultERP, rot.Dot(u))
		s.track(rb, r)
	}

	dt := rb.dt
	lin := rb.linearRow(s.bodyA, s.bodyB, fa.Origin, fa.Origin, axis)
	if rb.limitRow(lin, diff.Dot(axis), s.lowerLin, s.upperLin, defaultERP) {
		lin.effMass *= s.softnessLin
		s.rows = append(s.rows, lin)
	}
	if s.poweredLin {
		m := rb.linearRow(s.bodyA, s.bodyB, fa.Origin, fa.Origin, axis)
		m.target = s.targetLinVelocity
		m.lo, m.hi = -s.maxLinForce*dt, s.maxLinForce*dt
		s.track(rb, m)
	}

	ang := rb.angularRow(s.bodyA, s.bodyB, axis)
	if rb.limitRow(ang, rot.Dot(axis), s.lowerAng, s.upperAng, defaultERP) {
		ang.effMass *= s.softnessAng
		s.rows = append(s.rows, ang)
	}
	if s.poweredAng {
		m := rb.angularRow(s.bodyA, s.bodyB, axis)
		m.target = s.targetAngVelocity
		m.lo, m.hi = -s.maxAngForce*dt, s.maxAngForce*dt
		s.track(rb, m)
	}
}

// ConeTwistConstraint is a ball joint with swing and twist limits about
// the X axis of its frames.
type ConeTwistConstraint struct {
	constraintBase
	swingSpan1, swingSpan2, twistSpan float64

	motorEnabled    bool
	maxMotorImpulse float64
	motorTarget     mgl64.Quat
}

func NewConeTwistConstraint(a, b *RigidBody, frameA, frameB Transform) *ConeTwistConstraint {
	return &ConeTwistConstraint{
		constraintBase: newConstraintBase(a, b, frameA, frameB),
		swingSpan1:     math.Pi,
		swingSpan2:     math.Pi,
		twistSpan:      math.Pi,
		motorTarget:    mgl64.QuatIdent(),
	}
}

// SetLimit sets the swing spans about Z and Y and the twist span about X.
// Spans outside (0, pi) leave that axis free.
func (c *ConeTwistConstraint) SetLimit(swingSpan1, swingSpan2, twistSpan float64) {
	c.swingSpan1, c.swingSpan2, c.twistSpan = swingSpan1, swingSpan2, twistSpan
}

func (c *ConeTwistConstraint) Limits() (swing1, swing2, twist float64) {
	return c.swingSpan1, c.swingSpan2, c.twistSpan
}

func (c *ConeTwistConstraint) EnableMotor(on bool)          { c.motorEnabled = on }
func (c *ConeTwistConstraint) MotorEnabled() bool           { return c.motorEnabled }
func (c *ConeTwistConstraint) SetMaxMotorImpulse(m float64) { c.maxMotorImpulse = m }
func (c *ConeTwistConstraint) MaxMotorImpulse() float64     { return c.maxMotorImpulse }
func (c *ConeTwistConstraint) SetMotorTarget(q mgl64.Quat)  { c.motorTarget = q.Normalize() }
func (c *ConeTwistConstraint) MotorTarget() mgl64.Quat      { return c.motorTarget }

func spanLimited(span float64) bool { return span > 0 && span < math.Pi }

func (c *ConeTwistConstraint) buildRows(rb *rowBuilder) {
	fa, fb := c.worldFrames()
	c.pointRows(rb, fa.Origin, fb.Origin)

	rel := fb.Basis.Conjugate().Mul(fa.Basis).Normalize()
	twist := mgl64.Quat{W: rel.W, V: mgl64.Vec3{rel.V[0], 0, 0}}
	if twist.Len() < 1e-12 {
		twist = mgl64.QuatIdent()
	}
	twist = twist.Normalize()
	swing := rel.Mul(twist.Conjugate())
	swingVec := rotationVector(swing)
	twistAngle := rotationVector(twist)[0]

	axes := []struct {
		local mgl64.Vec3
		angle float64
		span  float64
	}{
		{mgl64.Vec3{0, 0, 1}, swingVec[2], c.swingSpan1},
		{mgl64.Vec3{0, 1, 0}, swingVec[1], c.swingSpan2},
		{mgl64.Vec3{1, 0, 0}, twistAngle, c.twistSpan},
	}
	for _, ax := range axes {
		if !spanLimited(ax.span) {
			continue
		}
		r := rb.angularRow(c.bodyA, c.bodyB, fb.Basis.Rotate(ax.local))
		if rb.limitRow(r, ax.angle, -ax.span, ax.span, defaultERP) {
			c.rows = append(c.rows, r)
		}
	}

	if c.motorEnabled {
		delta := rotationVector(c.motorTarget.Mul(rel.Conjugate()))
		world := fb.Basis.Rotate(delta)
		for i := 0; i < 3; i++ {
			var u mgl64.Vec3
			u[i] = 1
			m := rb.angularRow(c.bodyA, c.bodyB, u)
			m.target = defaultERP / rb.dt * world[i]
			m.lo, m.hi = -c.maxMotorImpulse, c.maxMotorImpulse
			c.track(rb, m)
		}
	}
}

// RotationalLimitMotor limits and drives one angular axis of a
// Generic6DofConstraint.
type RotationalLimitMotor struct {
	LoLimit        float64
	HiLimit        float64
	TargetVelocity float64
	MaxMotorForce  float64
	EnableMotor    bool
}

// Generic6DofConstraint limits each linear and angular axis of frame A
// relative to frame B. Per axis, lower == upper locks, lower < upper
// limits and lower > upper frees.
type Generic6DofConstraint struct {
	constraintBase
	linearLower, linearUpper mgl64.Vec3
	motors                   [3]RotationalLimitMotor
}

func NewGeneric6DofConstraint(a *RigidBody, frameA Transform) *Generic6DofConstraint {
	return &Generic6DofConstraint{constraintBase: newConstraintBase(a, nil, frameA, frameInWorld(a, frameA))}
}

func NewGeneric6DofConstraintPair(a, b *RigidBody, frameA, frameB Transform) *Generic6DofConstraint {
	return &Generic6DofConstraint{constraintBase: newConstraintBase(a, b, frameA, frameB)}
}

func (d *Generic6DofConstraint) SetLinearLowerLimit(v mgl64.Vec3) { d.linearLower = v }
func (d *Generic6DofConstraint) SetLinearUpperLimit(v mgl64.Vec3) { d.linearUpper = v }

func (d *Generic6DofConstraint) SetAngularLowerLimit(v mgl64.Vec3) {
	for i := range d.motors {
		d.motors[i].LoLimit = v[i]
	}
}

func (d *Generic6DofConstraint) SetAngularUpperLimit(v mgl64.Vec3) {
	for i := range d.motors {
		d.motors[i].HiLimit = v[i]
	}
}

func (d *Generic6DofConstraint) LinearLimits() (lower, upper mgl64.Vec3) {
	return d.linearLower, d.linearUpper
}

// RotationalLimitMotor returns axis i (0..2), or nil when out of range.
func (d *Generic6DofConstraint) RotationalLimitMotor(i int) *RotationalLimitMotor {
	if i < 0 || i >= len(d.motors) {
		return nil
	}
	return &d.motors[i]
}

func (d *Generic6DofConstraint) buildRows(rb *rowBuilder) {
	fa, fb := d.worldFrames()
	diff := fa.Origin.Sub(fb.Origin)
	for i := 0; i < 3; i++ {
		var local mgl64.Vec3
		local[i] = 1
		u := fb.Basis.Rotate(local)
		r := rb.linearRow(d.bodyA, d.bodyB, fa.Origin, fa.Origin, u)
		if rb.limitRow(r, diff.Dot(u), d.linearLower[i], d.linearUpper[i], defaultERP) {
			d.rows = append(d.rows, r)
		}
	}

	rel := rotationVector(fb.Basis.Conjugate().Mul(fa.Basis))
	for i := range d.motors {
		m := &d.motors[i]
		var local mgl64.Vec3
		local[i] = 1
		u := fb.Basis.Rotate(local)
		r := rb.angularRow(d.bodyA, d.bodyB, u)
		if rb.limitRow(r, rel[i], m.LoLimit, m.HiLimit, defaultERP) {
			d.rows = append(d.rows, r)
		}
		if m.EnableMotor {
			mr := rb.angularRow(d.bodyA, d.bodyB, u)
			mr.target = m.TargetVelocity
			mr.lo, mr.hi = -m.MaxMotorForce*rb.dt, m.MaxMotorForce*rb.dt
			d.track(rb, mr)
		}
	}
}
