package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DiscreteDynamicsWorld steps rigid bodies, constraints and vehicles at a
// fixed internal rate.
type DiscreteDynamicsWorld struct {
	broadphase  Broadphase
	dispatcher  CollisionDispatcher
	bodies      []*RigidBody
	constraints []Constraint
	vehicles    []*RaycastVehicle
	gravity     mgl64.Vec3

	solverIterations int
	localTime        float64
	simulatedTime    float64
}

func NewDiscreteDynamicsWorld(bp Broadphase) *DiscreteDynamicsWorld {
	if bp == nil {
		bp = NewDbvtBroadphase()
	}
	return &DiscreteDynamicsWorld{
		broadphase:       bp,
		gravity:          mgl64.Vec3{0, -10, 0},
		solverIterations: defaultSolverIterations,
	}
}

func (w *DiscreteDynamicsWorld) Broadphase() Broadphase { return w.broadphase }

func (w *DiscreteDynamicsWorld) Dispatcher() *CollisionDispatcher { return &w.dispatcher }

func (w *DiscreteDynamicsWorld) Gravity() mgl64.Vec3 { return w.gravity }

// SetGravity applies to every body already in the world and to bodies
// added later.
func (w *DiscreteDynamicsWorld) SetGravity(g mgl64.Vec3) {
	w.gravity = g
	for _, b := range w.bodies {
		b.setGravity(g)
	}
}

// SimulatedTime is the total time advanced by internal sub-steps.
func (w *DiscreteDynamicsWorld) SimulatedTime() float64 { return w.simulatedTime }

func (w *DiscreteDynamicsWorld) NumBodies() int { return len(w.bodies) }

func (w *DiscreteDynamicsWorld) NumConstraints() int { return len(w.constraints) }

func (w *DiscreteDynamicsWorld) NumVehicles() int { return len(w.vehicles) }

func (w *DiscreteDynamicsWorld) AddRigidBody(b *RigidBody) {
	for _, existing := range w.bodies {
		if existing == b {
			return
		}
	}
	b.setGravity(w.gravity)
	w.bodies = append(w.bodies, b)
}

func (w *DiscreteDynamicsWorld) RemoveRigidBody(b *RigidBody) {
	w.bodies = removeItem(w.bodies, b)
	w.dispatcher.dropBody(b)
}

func (w *DiscreteDynamicsWorld) AddConstraint(c Constraint) {
	w.constraints = append(w.constraints, c)
}

func (w *DiscreteDynamicsWorld) RemoveConstraint(c Constraint) {
	w.constraints = removeItem(w.constraints, c)
}

func (w *DiscreteDynamicsWorld) AddVehicle(v *RaycastVehicle) {
	w.vehicles = append(w.vehicles, v)
}

func (w *DiscreteDynamicsWorld) RemoveVehicle(v *RaycastVehicle) {
	w.vehicles = removeItem(w.vehicles, v)
}

func removeItem[T comparable](items []T, item T) []T {
	for i, it := range items {
		if it == item {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

// StepSimulation advances the world by timeStep using sub-steps of
// fixedTimeStep, at most maxSubSteps of them. Leftover time carries over
// to the next call. With maxSubSteps == 0 a single variable step of
// timeStep is taken. It returns the number of sub-steps due.
func (w *DiscreteDynamicsWorld) StepSimulation(timeStep float64, maxSubSteps int, fixedTimeStep float64) int {
	numSim := 0
	if maxSubSteps > 0 {
		w.localTime += timeStep
		if w.localTime >= fixedTimeStep {
			numSim = int(w.localTime / fixedTimeStep)
			w.localTime -= float64(numSim) * fixedTimeStep
		}
	} else {
		fixedTimeStep = timeStep
		w.localTime = 0
		if timeStep > 0 {
			numSim = 1
		}
		maxSubSteps = 1
	}

	if numSim > 0 {
		clamped := numSim
		if clamped > maxSubSteps {
			clamped = maxSubSteps
		}
		for i := 0; i < clamped; i++ {
			w.singleStep(fixedTimeStep)
		}
	}

	for _, b := range w.bodies {
		if b.motionState != nil && !b.isStaticOrKinematic() {
			b.motionState.SetWorldTransform(b.transform)
		}
		b.ClearForces()
	}
	return numSim
}

func (w *DiscreteDynamicsWorld) singleStep(dt float64) {
	for _, b := range w.bodies {
		b.integrateVelocities(dt)
		b.applyDamping(dt)
	}

	w.performCollisionDetection()
	w.wakeTouchingIslands()

	rb := &rowBuilder{dt: dt}
	for _, m := range w.dispatcher.manifolds {
		if len(m.points) > 0 {
			rb.contactRows(m)
		}
	}
	active := make([]Constraint, 0, len(w.constraints))
	for _, c := range w.constraints {
		if !c.IsEnabled() {
			continue
		}
		c.base().begin()
		c.buildRows(rb)
		active = append(active, c)
	}
	rb.solve(w.solverIterations)
	for _, c := range active {
		c.base().finish()
	}

	for _, b := range w.bodies {
		b.integrateTransform(dt)
	}
	for _, v := range w.vehicles {
		v.updateVehicle(w, dt)
		v.updateAllWheelTransforms()
	}
	w.updateActivationState(dt)
	w.simulatedTime += dt
}

func (w *DiscreteDynamicsWorld) performCollisionDetection() {
	w.dispatcher.clear()
	for _, p := range w.broadphase.pairs(w.bodies) {
		if !needsCollision(p[0], p[1]) {
			continue
		}
		w.dispatcher.manifolds = append(w.dispatcher.manifolds, collidePair(p[0], p[1]))
	}
}

// islands groups dynamic bodies linked by contacts or constraints.
type islands struct {
	parent map[*RigidBody]*RigidBody
}

func (is *islands) find(b *RigidBody) *RigidBody {
	for is.parent[b] != nil && is.parent[b] != b {
		b = is.parent[b]
	}
	return b
}

func (is *islands) union(a, b *RigidBody) {
	if a == nil || b == nil || a.isStaticOrKinematic() || b.isStaticOrKinematic() {
		return
	}
	ra, rb := is.find(a), is.find(b)
	if ra != rb {
		is.parent[ra] = rb
	}
}

func (w *DiscreteDynamicsWorld) buildIslands() *islands {
	is := &islands{parent: make(map[*RigidBody]*RigidBody, len(w.bodies))}
	for _, b := range w.bodies {
		is.parent[b] = b
	}
	for _, m := range w.dispatcher.manifolds {
		if len(m.points) > 0 {
			is.union(m.body0, m.body1)
		}
	}
	for _, c := range w.constraints {
		if c.IsEnabled() {
			is.union(c.BodyA(), c.BodyB())
		}
	}
	return is
}

// wakeTouchingIslands wakes sleeping bodies that share an island with an
// awake one.
func (w *DiscreteDynamicsWorld) wakeTouchingIslands() {
	is := w.buildIslands()
	awake := map[*RigidBody]bool{}
	for _, b := range w.bodies {
		if !b.isStaticOrKinematic() && b.activationState != IslandSleeping {
			awake[is.find(b)] = true
		}
	}
	for _, b := range w.bodies {
		if b.activationState == IslandSleeping && awake[is.find(b)] {
			b.activationState = WantsDeactivation
			b.deactivationTime = 0
		}
	}
}

// updateActivationState puts an island to sleep once all of its bodies
// want deactivation.
func (w *DiscreteDynamicsWorld) updateActivationState(dt float64) {
	for _, b := range w.bodies {
		if !b.isStaticOrKinematic() {
			b.updateDeactivation(dt)
		}
	}
	is := w.buildIslands()
	restless := map[*RigidBody]bool{}
	for _, b := range w.bodies {
		if b.isStaticOrKinematic() {
			continue
		}
		if s := b.activationState; s != WantsDeactivation && s != IslandSleeping {
			restless[is.find(b)] = true
		}
	}
	for _, b := range w.bodies {
		if b.isStaticOrKinematic() || b.activationState != WantsDeactivation {
			continue
		}
		if !restless[is.find(b)] {
			b.activationState = IslandSleeping
			b.linearVelocity = mgl64.Vec3{}
			b.angularVelocity = mgl64.Vec3{}
		}
	}
}

// RayResult is the closest hit of a ray test.
type RayResult struct {
	Body     *RigidBody
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Fraction float64
}

// RayTest returns the closest body hit between from and to, ignoring skip.
func (w *DiscreteDynamicsWorld) RayTest(from, to mgl64.Vec3, skip *RigidBody) (RayResult, bool) {
	best := RayResult{Fraction: math.Inf(1)}
	found := false
	for _, b := range w.bodies {
		if b == skip || !b.hasContactResponse() {
			continue
		}
		forEachLeaf(b.shape, b.transform, func(s Shape, t Transform) {
			lf, lt := t.ApplyInverse(from), t.ApplyInverse(to)
			frac, n, ok := rayLocal(s, lf, lt)
			if !ok || frac >= best.Fraction {
				return
			}
			best = RayResult{
				Body:     b,
				Point:    from.Add(to.Sub(from).Mul(frac)),
				Normal:   safeNormalize(t.Basis.Rotate(n), mgl64.Vec3{0, 1, 0}),
				Fraction: frac,
			}
			found = true
		})
	}
	return best, found
}

// rayLocal intersects a segment with a shape in the shape's own frame.
func rayLocal(s Shape, from, to mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	d := to.Sub(from)
	switch sh := s.(type) {
	case *StaticPlaneShape:
		denom := sh.Normal.Dot(d)
		if math.Abs(denom) < 1e-12 {
			return 0, mgl64.Vec3{}, false
		}
		frac := (sh.Constant - sh.Normal.Dot(from)) / denom
		if frac < 0 || frac > 1 {
			return 0, mgl64.Vec3{}, false
		}
		return frac, sh.Normal, true
	case *SphereShape:
		return raySphere(from, d, sh.Radius())
	case concaveShape:
		best, normal, hit := 2.0, mgl64.Vec3{}, false
		sh.ForEachTriangle(func(a, b, c mgl64.Vec3) {
			if frac, n, ok := rayTriangle(from, d, a, b, c); ok && frac < best {
				best, normal, hit = frac, n, true
			}
		})
		return best, normal, hit
	}
	lo, hi := s.LocalBounds()
	return raySlab(from, d, lo, hi)
}

func raySphere(from, d mgl64.Vec3, r float64) (float64, mgl64.Vec3, bool) {
	a := d.Dot(d)
	b := 2 * from.Dot(d)
	c := from.Dot(from) - r*r
	disc := b*b - 4*a*c
	if a == 0 || disc < 0 {
		return 0, mgl64.Vec3{}, false
	}
	frac := (-b - math.Sqrt(disc)) / (2 * a)
	if frac < 0 || frac > 1 {
		return 0, mgl64.Vec3{}, false
	}
	return frac, from.Add(d.Mul(frac)).Normalize(), true
}

func raySlab(from, d, lo, hi mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	tMin, tMax := 0.0, 1.0
	var normal mgl64.Vec3
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if from[i] < lo[i] || from[i] > hi[i] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		t1 := (lo[i] - from[i]) / d[i]
		t2 := (hi[i] - from[i]) / d[i]
		n := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			n = 1
		}
		if t1 > tMin {
			tMin = t1
			normal = mgl64.Vec3{}
			normal[i] = n
		}
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, mgl64.Vec3{}, false
		}
	}
	if normal == (mgl64.Vec3{}) {
		return 0, mgl64.Vec3{}, false
	}
	return tMin, normal, true
}

// rayTriangle is Moller-Trumbore; the normal faces the ray origin.
func rayTriangle(from, d, a, b, c mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	e1, e2 := b.Sub(a), c.Sub(a)
	p := d.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < 1e-12 {
		return 0, mgl64.Vec3{}, false
	}
	inv := 1 / det
	s := from.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, mgl64.Vec3{}, false
	}
	q := s.Cross(e1)
	v := d.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, mgl64.Vec3{}, false
	}
	frac := e2.Dot(q) * inv
	if frac < 0 || frac > 1 {
		return 0, mgl64.Vec3{}, false
	}
	n := e1.Cross(e2).Normalize()
	if n.Dot(d) > 0 {
		n = n.Mul(-1)
	}
	return frac, n, true
}
