package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	defaultSolverIterations = 10
	defaultERP              = 0.2
	contactSlop             = 0.005
	maxFrictionCoefficient  = 10
)

// solverRow is one scalar velocity constraint J*v = target with the
// accumulated impulse clamped to [lo, hi].
type solverRow struct {
	bodyA, bodyB           *RigidBody
	linA, angA, linB, angB mgl64.Vec3
	effMass                float64
	target                 float64
	lo, hi                 float64
	acc                    float64

	// frictionOf bounds a friction row by the normal row's impulse.
	frictionOf   *solverRow
	frictionCoef float64
	point        *ManifoldPoint
}

func solverInvMass(b *RigidBody) float64 {
	if b == nil || b.isStaticOrKinematic() || !b.IsActive() {
		return 0
	}
	return b.invMass
}

func solverInvInertia(b *RigidBody) mgl64.Mat3 {
	if b == nil || b.isStaticOrKinematic() || !b.IsActive() {
		return mgl64.Mat3{}
	}
	return b.invInertiaWorld
}

func bodyVelocity(b *RigidBody) (mgl64.Vec3, mgl64.Vec3) {
	if b == nil {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	return b.linearVelocity, b.angularVelocity
}

func (r *solverRow) prepare() {
	k := 0.0
	if m := solverInvMass(r.bodyA); m > 0 {
		k += m * mulElem(r.linA, r.bodyA.linearFactor).Dot(r.linA)
	}
	k += mulElem(solverInvInertia(r.bodyA).Mul3x1(r.angA), angularFactorOf(r.bodyA)).Dot(r.angA)
	if m := solverInvMass(r.bodyB); m > 0 {
		k += m * mulElem(r.linB, r.bodyB.linearFactor).Dot(r.linB)
	}
	k += mulElem(solverInvInertia(r.bodyB).Mul3x1(r.angB), angularFactorOf(r.bodyB)).Dot(r.angB)
	if k > 1e-12 {
		r.effMass = 1 / k
	}
}

func angularFactorOf(b *RigidBody) mgl64.Vec3 {
	if b == nil {
		return mgl64.Vec3{}
	}
	return b.angularFactor
}

func (r *solverRow) velocity() float64 {
	va, wa := bodyVelocity(r.bodyA)
	vb, wb := bodyVelocity(r.bodyB)
	return r.linA.Dot(va) + r.angA.Dot(wa) + r.linB.Dot(vb) + r.angB.Dot(wb)
}

func (r *solverRow) applyImpulse(lambda float64) {
	if m := solverInvMass(r.bodyA); m > 0 {
		b := r.bodyA
		b.linearVelocity = b.linearVelocity.Add(mulElem(r.linA, b.linearFactor).Mul(m * lambda))
		b.angularVelocity = b.angularVelocity.Add(mulElem(b.invInertiaWorld.Mul3x1(r.angA), b.angularFactor).Mul(lambda))
	}
	if m := solverInvMass(r.bodyB); m > 0 {
		b := r.bodyB
		b.linearVelocity = b.linearVelocity.Add(mulElem(r.linB, b.linearFactor).Mul(m * lambda))
		b.angularVelocity = b.angularVelocity.Add(mulElem(b.invInertiaWorld.Mul3x1(r.angB), b.angularFactor).Mul(lambda))
	}
}

func (r *solverRow) solve() {
	if r.effMass == 0 {
		return
	}
	if r.frictionOf != nil {
		limit := r.frictionCoef * r.frictionOf.acc
		r.lo, r.hi = -limit, limit
	}
	delta := (r.target - r.velocity()) * r.effMass
	next := clamp(r.acc+delta, r.lo, r.hi)
	delta = next - r.acc
	r.acc = next
	r.applyImpulse(delta)
}

// rowBuilder collects rows for one sub-step.
type rowBuilder struct {
	dt   float64
	rows []*solverRow
}

func (rb *rowBuilder) add(r *solverRow) *solverRow {
	r.prepare()
	rb.rows = append(rb.rows, r)
	return r
}

// linearRow constrains the velocity of point pA on a relative to point pB
// on b along world axis u.
func (rb *rowBuilder) linearRow(a, b *RigidBody, pA, pB, u mgl64.Vec3) *solverRow {
	r := &solverRow{bodyA: a, bodyB: b, lo: math.Inf(-1), hi: math.Inf(1)}
	r.linA = u
	if a != nil {
		r.angA = pA.Sub(a.transform.Origin).Cross(u)
	}
	if b != nil {
		r.linB = u.Mul(-1)
		r.angB = pB.Sub(b.transform.Origin).Cross(u).Mul(-1)
	}
	return r
}

// angularRow constrains the relative angular velocity of a and b about u.
func (rb *rowBuilder) angularRow(a, b *RigidBody, u mgl64.Vec3) *solverRow {
	r := &solverRow{bodyA: a, bodyB: b, lo: math.Inf(-1), hi: math.Inf(1)}
	if a != nil {
		r.angA = u
	}
	if b != nil {
		r.angB = u.Mul(-1)
	}
	return r
}

// positionTarget turns a position error C into a velocity target.
func (rb *rowBuilder) positionTarget(erp, c float64) float64 {
	return -erp / rb.dt * c
}

// limitRow adds a one-sided row when pos lies outside [lower, upper], a
// locking row when lower == upper and nothing when lower > upper.
func (rb *rowBuilder) limitRow(r *solverRow, pos, lower, upper, erp float64) bool {
	switch {
	case lower > upper:
		return false
	case lower == upper:
		r.target = rb.positionTarget(erp, pos-lower)
	case pos < lower:
		r.target = rb.positionTarget(erp, pos-lower)
		r.lo, r.hi = 0, math.Inf(1)
	case pos > upper:
		r.target = rb.positionTarget(erp, pos-upper)
		r.lo, r.hi = math.Inf(-1), 0
	default:
		return false
	}
	rb.add(r)
	return true
}

// contactRows adds the normal and two friction rows of every point.
func (rb *rowBuilder) contactRows(m *PersistentManifold) {
	a, b := m.body0, m.body1
	if !a.hasContactResponse() || !b.hasContactResponse() {
		return
	}
	friction := math.Min(a.friction*b.friction, maxFrictionCoefficient)
	restitution := a.restitution * b.restitution
	for i := range m.points {
		p := &m.points[i]
		n := p.NormalWorldOnB
		normal := rb.linearRow(a, b, p.PositionWorldOnA, p.PositionWorldOnB, n)
		normal.lo, normal.hi = 0, math.Inf(1)
		normal.point = p
		if p.Distance > 0 {
			normal.target = -p.Distance / rb.dt
		} else {
			normal.target = defaultERP * math.Max(-p.Distance-contactSlop, 0) / rb.dt
		}
		if vn := normal.velocity(); restitution > 0 && vn < 0 {
			normal.target = math.Max(normal.target, -vn*restitution)
		}
		rb.add(normal)

		t1, t2 := planeSpace(n)
		for _, t := range []mgl64.Vec3{t1, t2} {
			f := rb.linearRow(a, b, p.PositionWorldOnA, p.PositionWorldOnB, t)
			f.frictionOf = normal
			f.frictionCoef = friction
			rb.add(f)
		}
	}
}

func (rb *rowBuilder) solve(iterations int) {
	for it := 0; it < iterations; it++ {
		for _, r := range rb.rows {
			r.solve()
		}
	}
	for _, r := range rb.rows {
		if r.point != nil {
			r.point.AppliedImpulse = r.acc
		}
	}
}
