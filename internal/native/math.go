package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid transform: rotate by Basis, then translate by Origin.
type Transform struct {
	Origin mgl64.Vec3
	Basis  mgl64.Quat
}

// IdentityTransform returns the transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Basis: mgl64.QuatIdent()}
}

// NewTransform builds a transform from a rotation and an origin.
func NewTransform(origin mgl64.Vec3, basis mgl64.Quat) Transform {
	return Transform{Origin: origin, Basis: basis.Normalize()}
}

// Apply maps a local point into the transform's parent frame.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Origin.Add(t.Basis.Rotate(p))
}

// ApplyInverse maps a parent-frame point into the local frame.
func (t Transform) ApplyInverse(p mgl64.Vec3) mgl64.Vec3 {
	return t.Basis.Conjugate().Rotate(p.Sub(t.Origin))
}

// Mul composes t with o so that t.Mul(o).Apply(p) == t.Apply(o.Apply(p)).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Origin: t.Apply(o.Origin),
		Basis:  t.Basis.Mul(o.Basis).Normalize(),
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() Transform {
	inv := t.Basis.Conjugate()
	return Transform{Origin: inv.Rotate(t.Origin.Mul(-1)), Basis: inv}
}

// QuatFromEuler matches the yaw (Y), pitch (X), roll (Z) convention used
// for slider frames.
func QuatFromEuler(yaw, pitch, roll float64) mgl64.Quat {
	qy := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})
	qx := mgl64.QuatRotate(pitch, mgl64.Vec3{1, 0, 0})
	qz := mgl64.QuatRotate(roll, mgl64.Vec3{0, 0, 1})
	return qy.Mul(qx).Mul(qz).Normalize()
}

// QuatFromEulerZYX rotates about Z by yaw, then Y by pitch, then X by roll.
func QuatFromEulerZYX(yawZ, pitchY, rollX float64) mgl64.Quat {
	qz := mgl64.QuatRotate(yawZ, mgl64.Vec3{0, 0, 1})
	qy := mgl64.QuatRotate(pitchY, mgl64.Vec3{0, 1, 0})
	qx := mgl64.QuatRotate(rollX, mgl64.Vec3{1, 0, 0})
	return qz.Mul(qy).Mul(qx).Normalize()
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func rotationMatrix(q mgl64.Quat) mgl64.Mat3 {
	return q.Normalize().Mat4().Mat3()
}

// rotationVector returns the axis-angle vector of q, shortest arc.
func rotationVector(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := q.V.Len()
	if s < 1e-12 {
		return q.V.Mul(2)
	}
	angle := 2 * math.Atan2(s, q.W)
	return q.V.Mul(angle / s)
}

// planeSpace returns two unit vectors perpendicular to n and to each other.
func planeSpace(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var p mgl64.Vec3
	if math.Abs(n[2]) > math.Sqrt2/2 {
		a := n[1]*n[1] + n[2]*n[2]
		k := 1 / math.Sqrt(a)
		p = mgl64.Vec3{0, -n[2] * k, n[1] * k}
	} else {
		a := n[0]*n[0] + n[1]*n[1]
		k := 1 / math.Sqrt(a)
		p = mgl64.Vec3{-n[1] * k, n[0] * k, 0}
	}
	return p, n.Cross(p)
}

func safeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return fallback
	}
	return v.Mul(1 / l)
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// aabb is an axis-aligned bounding box in world space.
type aabb struct {
	min, max mgl64.Vec3
}

func (a aabb) overlaps(b aabb) bool {
	for i := 0; i < 3; i++ {
		if a.min[i] > b.max[i] || a.max[i] < b.min[i] {
			return false
		}
	}
	return true
}

func (a aabb) expand(m float64) aabb {
	d := mgl64.Vec3{m, m, m}
	return aabb{min: a.min.Sub(d), max: a.max.Add(d)}
}

func transformBounds(t Transform, lo, hi mgl64.Vec3) aabb {
	center := lo.Add(hi).Mul(0.5)
	half := hi.Sub(lo).Mul(0.5)
	m := rotationMatrix(t.Basis)
	wc := t.Apply(center)
	var ext mgl64.Vec3
	for r := 0; r < 3; r++ {
		ext[r] = math.Abs(m.At(r, 0))*half[0] + math.Abs(m.At(r, 1))*half[1] + math.Abs(m.At(r, 2))*half[2]
	}
	return aabb{min: wc.Sub(ext), max: wc.Add(ext)}
}
