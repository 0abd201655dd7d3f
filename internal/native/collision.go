package native

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

const maxManifoldPoints = 4

// ManifoldPoint is one contact between two bodies. NormalWorldOnB points
// from B toward A, and PositionWorldOnA = PositionWorldOnB + NormalWorldOnB*Distance.
type ManifoldPoint struct {
	PositionWorldOnA mgl64.Vec3
	PositionWorldOnB mgl64.Vec3
	NormalWorldOnB   mgl64.Vec3
	Distance         float64
	AppliedImpulse   float64
}

// PersistentManifold holds the contacts of one overlapping body pair.
// A manifold exists while the bounding boxes overlap, even without contacts.
type PersistentManifold struct {
	body0, body1 *RigidBody
	points       []ManifoldPoint
}

func (m *PersistentManifold) Body0() *RigidBody            { return m.body0 }
func (m *PersistentManifold) Body1() *RigidBody            { return m.body1 }
func (m *PersistentManifold) NumContacts() int             { return len(m.points) }
func (m *PersistentManifold) Contact(i int) *ManifoldPoint { return &m.points[i] }

func (m *PersistentManifold) addPoint(p ManifoldPoint) {
	m.points = append(m.points, p)
}

// reduce keeps the deepest points.
func (m *PersistentManifold) reduce() {
	if len(m.points) <= maxManifoldPoints {
		return
	}
	sort.SliceStable(m.points, func(i, j int) bool { return m.points[i].Distance < m.points[j].Distance })
	m.points = m.points[:maxManifoldPoints]
}

// CollisionDispatcher owns the manifolds found by the last collision pass.
type CollisionDispatcher struct {
	manifolds []*PersistentManifold
}

func (d *CollisionDispatcher) NumManifolds() int { return len(d.manifolds) }

func (d *CollisionDispatcher) ManifoldByIndex(i int) *PersistentManifold { return d.manifolds[i] }

func (d *CollisionDispatcher) clear() { d.manifolds = d.manifolds[:0] }

func (d *CollisionDispatcher) dropBody(b *RigidBody) {
	kept := d.manifolds[:0]
	for _, m := range d.manifolds {
		if m.body0 != b && m.body1 != b {
			kept = append(kept, m)
		}
	}
	d.manifolds = kept
}

func needsCollision(a, b *RigidBody) bool {
	if a.isStaticOrKinematic() && b.isStaticOrKinematic() {
		return false
	}
	return a.IsActive() || b.IsActive()
}

// collidePair runs the narrowphase for one broadphase pair.
func collidePair(a, b *RigidBody) *PersistentManifold {
	m := &PersistentManifold{body0: a, body1: b}
	forEachLeaf(a.shape, a.transform, func(sa Shape, ta Transform) {
		forEachLeaf(b.shape, b.transform, func(sb Shape, tb Transform) {
			collideLeaves(m, sa, ta, sb, tb)
		})
	})
	m.reduce()
	return m
}

func forEachLeaf(s Shape, t Transform, fn func(Shape, Transform)) {
	if c, ok := s.(*CompoundShape); ok {
		for _, ch := range c.children {
			forEachLeaf(ch.Shape, t.Mul(ch.Transform), fn)
		}
		return
	}
	fn(s, t)
}

func collideLeaves(m *PersistentManifold, sa Shape, ta Transform, sb Shape, tb Transform) {
	pa, aPlane := sa.(*StaticPlaneShape)
	pb, bPlane := sb.(*StaticPlaneShape)
	ca, aConvex := sa.(convexShape)
	cb, bConvex := sb.(convexShape)
	ma, aConcave := sa.(concaveShape)
	mb, bConcave := sb.(concaveShape)

	switch {
	case aConvex && bPlane:
		collidePlane(m, newWorldConvex(ca, ta), pb, tb, false)
	case aPlane && bConvex:
		collidePlane(m, newWorldConvex(cb, tb), pa, ta, true)
	case aConvex && bConvex:
		collideConvex(m, newWorldConvex(ca, ta), newWorldConvex(cb, tb))
	case aConvex && bConcave:
		wa := newWorldConvex(ca, ta)
		forEachNearTriangle(mb, tb, wa.bounds(), func(tri worldConvex) {
			collideConvex(m, wa, tri)
		})
	case aConcave && bConvex:
		wb := newWorldConvex(cb, tb)
		forEachNearTriangle(ma, ta, wb.bounds(), func(tri worldConvex) {
			collideConvex(m, tri, wb)
		})
	}
}

func forEachNearTriangle(s concaveShape, t Transform, box aabb, fn func(worldConvex)) {
	box = box.expand(ContactBreakingThreshold)
	s.ForEachTriangle(func(a, b, c mgl64.Vec3) {
		tri := Triangle{t.Apply(a), t.Apply(b), t.Apply(c)}
		lo, hi := pointBounds(tri[:])
		if !box.overlaps(aabb{min: lo, max: hi}) {
			return
		}
		fn(newWorldTriangle(tri))
	})
}

// collidePlane handles convex against plane. flipped is true when the
// plane belongs to body0.
func collidePlane(m *PersistentManifold, c worldConvex, p *StaticPlaneShape, tp Transform, flipped bool) {
	n := tp.Basis.Rotate(p.Normal)
	d := p.Constant + n.Dot(tp.Origin)
	candidates := c.vertices()
	if candidates == nil {
		candidates = []mgl64.Vec3{c.support(n.Mul(-1))}
	}
	for _, v := range candidates {
		dist := n.Dot(v) - d
		if dist > ContactBreakingThreshold {
			continue
		}
		onPlane := v.Sub(n.Mul(dist))
		if flipped {
			m.addPoint(ManifoldPoint{
				PositionWorldOnA: onPlane,
				PositionWorldOnB: v,
				NormalWorldOnB:   n.Mul(-1),
				Distance:         dist,
			})
			continue
		}
		m.addPoint(ManifoldPoint{
			PositionWorldOnA: v,
			PositionWorldOnB: onPlane,
			NormalWorldOnB:   n,
			Distance:         dist,
		})
	}
}

// collideConvex separates two convex pieces along the candidate axis of
// least penetration.
func collideConvex(m *PersistentManifold, a, b worldConvex) {
	ca, cb := a.center(), b.center()
	if b.tri != nil {
		cb = closestPointOnTriangle(ca, *b.tri)
	}
	if a.tri != nil {
		ca = closestPointOnTriangle(cb, *a.tri)
	}
	between := ca.Sub(cb)

	axes := make([]mgl64.Vec3, 0, 16)
	axes = append(axes, between)
	axes = append(axes, a.axes()...)
	axes = append(axes, b.axes()...)
	for _, ea := range a.edges() {
		for _, eb := range b.edges() {
			axes = append(axes, ea.Cross(eb))
		}
	}

	var best mgl64.Vec3
	bestDist := math.Inf(-1)
	for _, axis := range axes {
		l := axis.Len()
		if l < 1e-9 {
			continue
		}
		n := axis.Mul(1 / l)
		if n.Dot(between) < 0 {
			n = n.Mul(-1)
		}
		dist := a.support(n.Mul(-1)).Dot(n) - b.support(n).Dot(n)
		if dist > ContactBreakingThreshold {
			return
		}
		if dist > bestDist {
			best, bestDist = n, dist
		}
	}
	if math.IsInf(bestDist, -1) {
		return
	}

	n := best
	maxB := b.support(n).Dot(n)
	minA := a.support(n.Mul(-1)).Dot(n)
	before := len(m.points)
	for _, v := range a.vertices() {
		dist := v.Dot(n) - maxB
		if dist <= ContactBreakingThreshold && b.contains(v, ContactBreakingThreshold) {
			m.addPoint(ManifoldPoint{PositionWorldOnA: v, PositionWorldOnB: v.Sub(n.Mul(dist)), NormalWorldOnB: n, Distance: dist})
		}
	}
	for _, v := range b.vertices() {
		dist := minA - v.Dot(n)
		if dist <= ContactBreakingThreshold && a.contains(v, ContactBreakingThreshold) {
			m.addPoint(ManifoldPoint{PositionWorldOnA: v.Add(n.Mul(dist)), PositionWorldOnB: v, NormalWorldOnB: n, Distance: dist})
		}
	}
	if len(m.points) > before {
		return
	}
	if a.isPolyhedral() && !b.isPolyhedral() {
		pb := b.support(n)
		m.addPoint(ManifoldPoint{PositionWorldOnA: pb.Add(n.Mul(bestDist)), PositionWorldOnB: pb, NormalWorldOnB: n, Distance: bestDist})
		return
	}
	pa := a.support(n.Mul(-1))
	m.addPoint(ManifoldPoint{PositionWorldOnA: pa, PositionWorldOnB: pa.Sub(n.Mul(bestDist)), NormalWorldOnB: n, Distance: bestDist})
}

// worldConvex is a convex leaf or a single triangle placed in world space.
type worldConvex struct {
	shape convexShape
	t     Transform
	tri   *Triangle
}

func newWorldConvex(s convexShape, t Transform) worldConvex {
	return worldConvex{shape: s, t: t}
}

func newWorldTriangle(tri Triangle) worldConvex {
	return worldConvex{tri: &tri, t: IdentityTransform()}
}

func (w worldConvex) support(dir mgl64.Vec3) mgl64.Vec3 {
	if w.tri != nil {
		best := w.tri[0]
		for _, v := range w.tri[1:] {
			if v.Dot(dir) > best.Dot(dir) {
				best = v
			}
		}
		return best
	}
	local := w.t.Basis.Conjugate().Rotate(dir)
	return w.t.Apply(w.shape.Support(local))
}

func (w worldConvex) center() mgl64.Vec3 {
	if w.tri != nil {
		return w.tri[0].Add(w.tri[1]).Add(w.tri[2]).Mul(1.0 / 3)
	}
	lo, hi := w.shape.LocalBounds()
	return w.t.Apply(lo.Add(hi).Mul(0.5))
}

func (w worldConvex) bounds() aabb {
	if w.tri != nil {
		lo, hi := pointBounds(w.tri[:])
		return aabb{min: lo, max: hi}
	}
	lo, hi := w.shape.LocalBounds()
	return transformBounds(w.t, lo, hi)
}

func (w worldConvex) isPolyhedral() bool {
	if w.tri != nil {
		return true
	}
	_, ok := w.shape.(polyhedral)
	return ok
}

func (w worldConvex) basisAxes() []mgl64.Vec3 {
	return []mgl64.Vec3{
		w.t.Basis.Rotate(mgl64.Vec3{1, 0, 0}),
		w.t.Basis.Rotate(mgl64.Vec3{0, 1, 0}),
		w.t.Basis.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

func (w worldConvex) axes() []mgl64.Vec3 {
	if w.tri != nil {
		return []mgl64.Vec3{w.tri[1].Sub(w.tri[0]).Cross(w.tri[2].Sub(w.tri[0]))}
	}
	switch w.shape.(type) {
	case *BoxShape:
		return w.basisAxes()
	case *CylinderShape, *CapsuleShape, *ConeShape:
		return []mgl64.Vec3{w.t.Basis.Rotate(mgl64.Vec3{0, 1, 0})}
	}
	return nil
}

func (w worldConvex) edges() []mgl64.Vec3 {
	if w.tri != nil {
		return []mgl64.Vec3{w.tri[1].Sub(w.tri[0]), w.tri[2].Sub(w.tri[1]), w.tri[0].Sub(w.tri[2])}
	}
	if _, ok := w.shape.(*BoxShape); ok {
		return w.basisAxes()
	}
	return nil
}

func (w worldConvex) vertices() []mgl64.Vec3 {
	if w.tri != nil {
		return w.tri[:]
	}
	p, ok := w.shape.(polyhedral)
	if !ok {
		return nil
	}
	local := p.Vertices()
	out := make([]mgl64.Vec3, len(local))
	for i, v := range local {
		out[i] = w.t.Apply(v)
	}
	return out
}

// contains reports whether a world point lies inside the piece grown by slack.
// Only boxes and triangles can answer; everything else says no.
func (w worldConvex) contains(p mgl64.Vec3, slack float64) bool {
	if w.tri != nil {
		return insideTrianglePrism(p, *w.tri, slack)
	}
	box, ok := w.shape.(*BoxShape)
	if !ok {
		return false
	}
	local := w.t.ApplyInverse(p)
	h := box.HalfExtents()
	for i := 0; i < 3; i++ {
		if math.Abs(local[i]) > h[i]+slack {
			return false
		}
	}
	return true
}

func insideTrianglePrism(p mgl64.Vec3, tri Triangle, slack float64) bool {
	n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
	if n.Len() < 1e-12 {
		return false
	}
	n = n.Normalize()
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		edgeNormal := b.Sub(a).Cross(n).Normalize()
		if p.Sub(a).Dot(edgeNormal) > slack {
			return false
		}
	}
	return true
}

// closestPointOnTriangle follows the region tests of Ericson, RTCD 5.1.5.
func closestPointOnTriangle(p mgl64.Vec3, tri Triangle) mgl64.Vec3 {
	a, b, c := tri[0], tri[1], tri[2]
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	return a.Add(ab.Mul(vb * denom)).Add(ac.Mul(vc * denom))
}
