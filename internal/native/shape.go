package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind identifies a collision shape type.
type ShapeKind int

const (
	KindPlane ShapeKind = iota
	KindBox
	KindSphere
	KindCylinder
	KindCapsule
	KindCone
	KindConvexHull
	KindTriangleMesh
	KindHeightfield
	KindCompound
)

var shapeKindNames = [...]string{
	KindPlane:        "plane",
	KindBox:          "box",
	KindSphere:       "sphere",
	KindCylinder:     "cylinder",
	KindCapsule:      "capsule",
	KindCone:         "cone",
	KindConvexHull:   "convex",
	KindTriangleMesh: "concave",
	KindHeightfield:  "heightfield",
	KindCompound:     "compound",
}

func (k ShapeKind) String() string {
	if int(k) < len(shapeKindNames) {
		return shapeKindNames[k]
	}
	return "unknown"
}

// ContactBreakingThreshold is how far apart two shapes may be and still
// keep a contact point in their manifold.
const ContactBreakingThreshold = 0.02

const planeExtent = 1e9

// Shape is a collision shape owned by one or more bodies.
type Shape interface {
	Kind() ShapeKind
	// CalculateLocalInertia returns the diagonal inertia tensor for mass.
	CalculateLocalInertia(mass float64) mgl64.Vec3
	// LocalBounds returns the shape AABB in its own frame.
	LocalBounds() (lo, hi mgl64.Vec3)
	SetLocalScaling(s mgl64.Vec3)
	LocalScaling() mgl64.Vec3
}

// convexShape is any shape with a support mapping.
type convexShape interface {
	Shape
	// Support returns the local point farthest along dir.
	Support(dir mgl64.Vec3) mgl64.Vec3
}

// polyhedral shapes contribute their vertices as contact candidates.
type polyhedral interface {
	Vertices() []mgl64.Vec3
}

// concaveShape exposes triangles in local space.
type concaveShape interface {
	Shape
	ForEachTriangle(fn func(a, b, c mgl64.Vec3))
}

type scaling struct {
	scale mgl64.Vec3
}

func unitScaling() scaling { return scaling{scale: mgl64.Vec3{1, 1, 1}} }

func (s *scaling) SetLocalScaling(v mgl64.Vec3) { s.scale = v }
func (s *scaling) LocalScaling() mgl64.Vec3     { return s.scale }

func boxInertia(mass float64, half mgl64.Vec3) mgl64.Vec3 {
	lx, ly, lz := 2*half[0], 2*half[1], 2*half[2]
	return mgl64.Vec3{
		mass / 12 * (ly*ly + lz*lz),
		mass / 12 * (lx*lx + lz*lz),
		mass / 12 * (lx*lx + ly*ly),
	}
}

// StaticPlaneShape is an infinite plane n·x = constant. It never moves.
type StaticPlaneShape struct {
	scaling
	Normal   mgl64.Vec3
	Constant float64
}

func NewStaticPlaneShape(normal mgl64.Vec3, constant float64) *StaticPlaneShape {
	return &StaticPlaneShape{
		scaling:  unitScaling(),
		Normal:   safeNormalize(normal, mgl64.Vec3{0, 1, 0}),
		Constant: constant,
	}
}

func (s *StaticPlaneShape) Kind() ShapeKind { return KindPlane }

func (s *StaticPlaneShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

func (s *StaticPlaneShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	e := mgl64.Vec3{planeExtent, planeExtent, planeExtent}
	return e.Mul(-1), e
}

// BoxShape is centered on its origin.
type BoxShape struct {
	scaling
	halfExtents mgl64.Vec3
}

func NewBoxShape(halfExtents mgl64.Vec3) *BoxShape {
	return &BoxShape{scaling: unitScaling(), halfExtents: halfExtents}
}

func (s *BoxShape) Kind() ShapeKind { return KindBox }

// HalfExtents includes local scaling.
func (s *BoxShape) HalfExtents() mgl64.Vec3 { return mulElem(s.halfExtents, s.scale) }

func (s *BoxShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	return boxInertia(mass, s.HalfExtents())
}

func (s *BoxShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	h := s.HalfExtents()
	return h.Mul(-1), h
}

func (s *BoxShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	h := s.HalfExtents()
	return mgl64.Vec3{sign(dir[0]) * h[0], sign(dir[1]) * h[1], sign(dir[2]) * h[2]}
}

func (s *BoxShape) Vertices() []mgl64.Vec3 {
	h := s.HalfExtents()
	out := make([]mgl64.Vec3, 0, 8)
	for _, x := range []float64{-1, 1} {
		for _, y := range []float64{-1, 1} {
			for _, z := range []float64{-1, 1} {
				out = append(out, mgl64.Vec3{x * h[0], y * h[1], z * h[2]})
			}
		}
	}
	return out
}

// SphereShape ignores non-uniform scaling; the x component is used.
type SphereShape struct {
	scaling
	radius float64
}

func NewSphereShape(radius float64) *SphereShape {
	return &SphereShape{scaling: unitScaling(), radius: radius}
}

func (s *SphereShape) Kind() ShapeKind { return KindSphere }

func (s *SphereShape) Radius() float64 { return s.radius * s.scale[0] }

func (s *SphereShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	i := 0.4 * mass * s.Radius() * s.Radius()
	return mgl64.Vec3{i, i, i}
}

func (s *SphereShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	r := s.Radius()
	return mgl64.Vec3{-r, -r, -r}, mgl64.Vec3{r, r, r}
}

func (s *SphereShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	return safeNormalize(dir, mgl64.Vec3{0, 1, 0}).Mul(s.Radius())
}

// CylinderShape is aligned with the local Y axis.
type CylinderShape struct {
	scaling
	halfExtents mgl64.Vec3
}

func NewCylinderShape(halfExtents mgl64.Vec3) *CylinderShape {
	return &CylinderShape{scaling: unitScaling(), halfExtents: halfExtents}
}

func (s *CylinderShape) Kind() ShapeKind { return KindCylinder }

func (s *CylinderShape) dims() (radius, halfHeight float64) {
	h := mulElem(s.halfExtents, s.scale)
	return h[0], h[1]
}

func (s *CylinderShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	r, hh := s.dims()
	side := mass * (3*r*r + 4*hh*hh) / 12
	return mgl64.Vec3{side, 0.5 * mass * r * r, side}
}

func (s *CylinderShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	r, hh := s.dims()
	return mgl64.Vec3{-r, -hh, -r}, mgl64.Vec3{r, hh, r}
}

func (s *CylinderShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	r, hh := s.dims()
	l := math.Hypot(dir[0], dir[2])
	if l < 1e-12 {
		return mgl64.Vec3{r, sign(dir[1]) * hh, 0}
	}
	return mgl64.Vec3{r * dir[0] / l, sign(dir[1]) * hh, r * dir[2] / l}
}

// CapsuleShape is aligned with local Y. height excludes the end caps.
type CapsuleShape struct {
	scaling
	radius, height float64
}

func NewCapsuleShape(radius, height float64) *CapsuleShape {
	return &CapsuleShape{scaling: unitScaling(), radius: radius, height: math.Max(height, 0)}
}

func (s *CapsuleShape) Kind() ShapeKind { return KindCapsule }

func (s *CapsuleShape) dims() (radius, halfHeight float64) {
	return s.radius * s.scale[0], s.height / 2 * s.scale[1]
}

func (s *CapsuleShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	r, hh := s.dims()
	return boxInertia(mass, mgl64.Vec3{r, hh + r, r})
}

func (s *CapsuleShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	r, hh := s.dims()
	return mgl64.Vec3{-r, -hh - r, -r}, mgl64.Vec3{r, hh + r, r}
}

func (s *CapsuleShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	r, hh := s.dims()
	center := mgl64.Vec3{0, sign(dir[1]) * hh, 0}
	return center.Add(safeNormalize(dir, mgl64.Vec3{0, 1, 0}).Mul(r))
}

// ConeShape is aligned with local Y, apex up, centered on half height.
type ConeShape struct {
	scaling
	radius, height float64
}

func NewConeShape(radius, height float64) *ConeShape {
	return &ConeShape{scaling: unitScaling(), radius: radius, height: height}
}

func (s *ConeShape) Kind() ShapeKind { return KindCone }

func (s *ConeShape) dims() (radius, height float64) {
	return s.radius * s.scale[0], s.height * s.scale[1]
}

func (s *ConeShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	r, h := s.dims()
	return boxInertia(mass, mgl64.Vec3{r, h / 2, r})
}

func (s *ConeShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	r, h := s.dims()
	return mgl64.Vec3{-r, -h / 2, -r}, mgl64.Vec3{r, h / 2, r}
}

func (s *ConeShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	r, h := s.dims()
	sinAngle := r / math.Sqrt(r*r+h*h)
	if dir[1] > dir.Len()*sinAngle {
		return mgl64.Vec3{0, h / 2, 0}
	}
	l := math.Hypot(dir[0], dir[2])
	if l < 1e-12 {
		return mgl64.Vec3{0, -h / 2, 0}
	}
	return mgl64.Vec3{r * dir[0] / l, -h / 2, r * dir[2] / l}
}

// ConvexHullShape is the hull of a point cloud.
type ConvexHullShape struct {
	scaling
	points []mgl64.Vec3
}

func NewConvexHullShape(points []mgl64.Vec3) *ConvexHullShape {
	cp := make([]mgl64.Vec3, len(points))
	copy(cp, points)
	return &ConvexHullShape{scaling: unitScaling(), points: cp}
}

func (s *ConvexHullShape) Kind() ShapeKind { return KindConvexHull }

// AddPoint grows the hull by one point.
func (s *ConvexHullShape) AddPoint(p mgl64.Vec3) { s.points = append(s.points, p) }

func (s *ConvexHullShape) NumPoints() int { return len(s.points) }

func (s *ConvexHullShape) Vertices() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(s.points))
	for i, p := range s.points {
		out[i] = mulElem(p, s.scale)
	}
	return out
}

func (s *ConvexHullShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	lo, hi := s.LocalBounds()
	return boxInertia(mass, hi.Sub(lo).Mul(0.5))
}

func (s *ConvexHullShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	return pointBounds(s.Vertices())
}

func (s *ConvexHullShape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	best, bestDot := mgl64.Vec3{}, math.Inf(-1)
	for _, p := range s.Vertices() {
		if d := p.Dot(dir); d > bestDot {
			best, bestDot = p, d
		}
	}
	return best
}

func pointBounds(pts []mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if len(pts) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], p[i])
			hi[i] = math.Max(hi[i], p[i])
		}
	}
	return lo, hi
}

// Triangle is three vertices in shape space.
type Triangle [3]mgl64.Vec3

// TriangleMeshShape is a concave mesh, normally used on static bodies.
type TriangleMeshShape struct {
	scaling
	triangles []Triangle
}

// NewTriangleMeshShape fails with ErrEmptyMesh when no triangles are given.
func NewTriangleMeshShape(triangles []Triangle) (*TriangleMeshShape, error) {
	if len(triangles) == 0 {
		return nil, ErrEmptyMesh
	}
	cp := make([]Triangle, len(triangles))
	copy(cp, triangles)
	return &TriangleMeshShape{scaling: unitScaling(), triangles: cp}, nil
}

func (s *TriangleMeshShape) Kind() ShapeKind { return KindTriangleMesh }

func (s *TriangleMeshShape) NumTriangles() int { return len(s.triangles) }

func (s *TriangleMeshShape) ForEachTriangle(fn func(a, b, c mgl64.Vec3)) {
	for _, t := range s.triangles {
		fn(mulElem(t[0], s.scale), mulElem(t[1], s.scale), mulElem(t[2], s.scale))
	}
}

func (s *TriangleMeshShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	lo, hi := s.LocalBounds()
	return boxInertia(mass, hi.Sub(lo).Mul(0.5))
}

func (s *TriangleMeshShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	pts := make([]mgl64.Vec3, 0, 3*len(s.triangles))
	s.ForEachTriangle(func(a, b, c mgl64.Vec3) { pts = append(pts, a, b, c) })
	return pointBounds(pts)
}

// HeightfieldShape is a regular grid of heights along the Z axis,
// centered on its origin. Heights are indexed row by row, x fastest.
type HeightfieldShape struct {
	scaling
	width, length int
	heights       []float64
	absMaxHeight  float64
}

func NewHeightfieldShape(width, length int, heights []float64, absMaxHeight float64) *HeightfieldShape {
	cp := make([]float64, width*length)
	copy(cp, heights)
	return &HeightfieldShape{
		scaling:      unitScaling(),
		width:        width,
		length:       length,
		heights:      cp,
		absMaxHeight: absMaxHeight,
	}
}

func (s *HeightfieldShape) Kind() ShapeKind { return KindHeightfield }

func (s *HeightfieldShape) vertex(i, j int) mgl64.Vec3 {
	x := float64(i) - float64(s.width-1)/2
	y := float64(j) - float64(s.length-1)/2
	h := clamp(s.heights[j*s.width+i], -s.absMaxHeight, s.absMaxHeight)
	return mulElem(mgl64.Vec3{x, y, h}, s.scale)
}

func (s *HeightfieldShape) ForEachTriangle(fn func(a, b, c mgl64.Vec3)) {
	for j := 0; j+1 < s.length; j++ {
		for i := 0; i+1 < s.width; i++ {
			v00, v10 := s.vertex(i, j), s.vertex(i+1, j)
			v01, v11 := s.vertex(i, j+1), s.vertex(i+1, j+1)
			fn(v00, v10, v11)
			fn(v00, v11, v01)
		}
	}
}

func (s *HeightfieldShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

func (s *HeightfieldShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	half := mgl64.Vec3{float64(s.width-1) / 2, float64(s.length-1) / 2, s.absMaxHeight}
	half = mulElem(half, s.scale)
	for i := range half {
		half[i] = math.Abs(half[i])
	}
	return half.Mul(-1), half
}

// CompoundChild is one shape placed inside a compound.
type CompoundChild struct {
	Transform Transform
	Shape     Shape
}

// CompoundShape groups child shapes under one body.
type CompoundShape struct {
	scaling
	children []CompoundChild
}

func NewCompoundShape() *CompoundShape {
	return &CompoundShape{scaling: unitScaling()}
}

func (s *CompoundShape) Kind() ShapeKind { return KindCompound }

func (s *CompoundShape) AddChild(t Transform, child Shape) {
	s.children = append(s.children, CompoundChild{Transform: t, Shape: child})
}

func (s *CompoundShape) NumChildShapes() int { return len(s.children) }

func (s *CompoundShape) Child(i int) CompoundChild { return s.children[i] }

func (s *CompoundShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	lo, hi := s.LocalBounds()
	return boxInertia(mass, hi.Sub(lo).Mul(0.5))
}

func (s *CompoundShape) LocalBounds() (mgl64.Vec3, mgl64.Vec3) {
	if len(s.children) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	var box aabb
	for i, c := range s.children {
		lo, hi := c.Shape.LocalBounds()
		b := transformBounds(c.Transform, lo, hi)
		if i == 0 {
			box = b
			continue
		}
		for k := 0; k < 3; k++ {
			box.min[k] = math.Min(box.min[k], b.min[k])
			box.max[k] = math.Max(box.max[k], b.max[k])
		}
	}
	return box.min, box.max
}
