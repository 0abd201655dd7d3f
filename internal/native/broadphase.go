package native

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Broadphase finds body pairs whose bounds overlap.
type Broadphase interface {
	Name() string
	pairs(bodies []*RigidBody) [][2]*RigidBody
}

// DbvtBroadphase tests every pair of bounding boxes. It is selected by
// the name "dynamic".
type DbvtBroadphase struct{}

func NewDbvtBroadphase() *DbvtBroadphase { return &DbvtBroadphase{} }

func (*DbvtBroadphase) Name() string { return "dynamic" }

func (*DbvtBroadphase) pairs(bodies []*RigidBody) [][2]*RigidBody {
	boxes := make([]aabb, len(bodies))
	for i, b := range bodies {
		boxes[i] = b.worldBounds().expand(ContactBreakingThreshold)
	}
	var out [][2]*RigidBody
	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			if boxes[i].overlaps(boxes[j]) {
				out = append(out, [2]*RigidBody{bodies[i], bodies[j]})
			}
		}
	}
	return out
}

// AxisSweep3 sorts bounds along x and sweeps. Bodies whose bounds leave
// the world box are not paired.
type AxisSweep3 struct {
	worldMin, worldMax mgl64.Vec3
}

func NewAxisSweep3(worldMin, worldMax mgl64.Vec3) *AxisSweep3 {
	return &AxisSweep3{worldMin: worldMin, worldMax: worldMax}
}

func (*AxisSweep3) Name() string { return "sweepprune" }

func (s *AxisSweep3) inside(box aabb) bool {
	return box.overlaps(aabb{min: s.worldMin, max: s.worldMax})
}

type sweepEntry struct {
	index int
	box   aabb
}

func (s *AxisSweep3) pairs(bodies []*RigidBody) [][2]*RigidBody {
	entries := make([]sweepEntry, 0, len(bodies))
	for i, b := range bodies {
		box := b.worldBounds().expand(ContactBreakingThreshold)
		if _, plane := b.shape.(*StaticPlaneShape); !plane && !s.inside(box) {
			continue
		}
		entries = append(entries, sweepEntry{index: i, box: box})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].box.min[0] < entries[j].box.min[0] })

	var found [][2]int
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].box.min[0] > entries[i].box.max[0] {
				break
			}
			if entries[i].box.overlaps(entries[j].box) {
				a, b := entries[i].index, entries[j].index
				if a > b {
					a, b = b, a
				}
				found = append(found, [2]int{a, b})
			}
		}
	}
	// Insertion order keeps manifold order stable across broadphases.
	sort.Slice(found, func(i, j int) bool {
		if found[i][0] != found[j][0] {
			return found[i][0] < found[j][0]
		}
		return found[i][1] < found[j][1]
	})
	out := make([][2]*RigidBody, len(found))
	for i, p := range found {
		out[i] = [2]*RigidBody{bodies[p[0]], bodies[p[1]]}
	}
	return out
}
