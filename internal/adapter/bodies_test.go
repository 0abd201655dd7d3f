package adapter

import (
	"testing"

	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddObject_AcknowledgesReady(t *testing.T) {
	h := newHarness(t)
	h.addBox(4, 1, mgl64.Vec3{0, 2, 0})

	msgs := h.drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.ObjectReady{ID: 4}, msgs[0])
	assert.Equal(t, 1, h.adapter.Bodies())
	assert.Equal(t, 1, h.adapter.world.NumBodies())
}

func TestAddObject_SharesPrimitiveShapes(t *testing.T) {
	h := newHarness(t)
	h.addBox(1, 1, mgl64.Vec3{0, 0, 0})
	h.addBox(2, 1, mgl64.Vec3{3, 0, 0})

	b1, _ := h.adapter.bodies.Get(1)
	b2, _ := h.adapter.bodies.Get(2)
	assert.Same(t, b1.shape, b2.shape)
	assert.Equal(t, 1, h.adapter.shapes.Len())
	assert.Equal(t, 0, h.adapter.shapes.Owned())
}

func TestAddObject_MeshesAreNeverShared(t *testing.T) {
	h := newHarness(t)
	points := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for _, id := range []ident.ID{1, 2} {
		h.send(protocol.AddObject{
			ID:       id,
			Shape:    protocol.ShapeDesc{Type: protocol.ShapeConvex, Points: points},
			Mass:     1,
			Rotation: mgl64.QuatIdent(),
		})
	}

	b1, _ := h.adapter.bodies.Get(1)
	b2, _ := h.adapter.bodies.Get(2)
	assert.NotSame(t, b1.shape, b2.shape)
	assert.Equal(t, 2, h.adapter.shapes.Owned())

	h.send(protocol.RemoveObject{ID: 1})
	assert.Equal(t, 1, h.adapter.shapes.Owned())
}

func TestAddObject_ConstructionFailures(t *testing.T) {
	tests := []struct {
		name  string
		shape protocol.ShapeDesc
	}{
		{"empty concave mesh", protocol.ShapeDesc{Type: protocol.ShapeConcave}},
		{"unknown kind", protocol.ShapeDesc{Type: "torus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.send(protocol.AddObject{ID: 1, Shape: tt.shape, Mass: 1, Rotation: mgl64.QuatIdent()})

			assert.Empty(t, h.drain(), "no ready acknowledgement")
			assert.Equal(t, 0, h.adapter.Bodies())
			assert.Equal(t, 0, h.adapter.world.NumBodies())
			assert.Equal(t, 0, h.adapter.shapes.Owned())
		})
	}
}

func TestAddObject_FailingChildAbortsBody(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.AddObject{
		ID:       1,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1},
		Mass:     1,
		Rotation: mgl64.QuatIdent(),
		Children: []protocol.ChildShape{{Shape: protocol.ShapeDesc{Type: protocol.ShapeConcave}, Rotation: mgl64.QuatIdent()}},
	})
	assert.Empty(t, h.drain())
	assert.Equal(t, 0, h.adapter.Bodies())
}

func TestAddObject_Compound(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.AddObject{
		ID:       1,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1},
		Mass:     2,
		Rotation: mgl64.QuatIdent(),
		Children: []protocol.ChildShape{{
			Shape:          protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 0.5},
			PositionOffset: mgl64.Vec3{0, 1, 0},
			Rotation:       mgl64.QuatIdent(),
		}},
	})

	b, ok := h.adapter.bodies.Get(1)
	require.True(t, ok)
	compound, ok := b.shape.(*native.CompoundShape)
	require.True(t, ok)
	require.Equal(t, 2, compound.NumChildShapes())
	assert.Equal(t, native.IdentityTransform(), compound.Child(0).Transform)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, compound.Child(1).Transform.Origin)
	assert.Equal(t, 1, h.adapter.shapes.Owned(), "compound is released with the body")
}

func TestAddObject_CapsuleAndHeightfield(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.AddObject{
		ID:       1,
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeCapsule, Radius: 0.5, Height: 3},
		Mass:     1,
		Rotation: mgl64.QuatIdent(),
	})
	h.send(protocol.AddObject{
		ID: 2,
		Shape: protocol.ShapeDesc{
			Type:         protocol.ShapeHeightfield,
			XPts:         3,
			YPts:         3,
			Heights:      []float64{0, 0, 0, 0, 1, 0, 0, 0, 0},
			AbsMaxHeight: 1,
			XSize:        10,
			YSize:        20,
		},
		Rotation: mgl64.QuatIdent(),
	})

	b1, _ := h.adapter.bodies.Get(1)
	lo, hi := b1.shape.LocalBounds()
	assert.InDelta(t, 3.0, hi[1]-lo[1], 1e-9, "capsule height is tip to tip")

	b2, _ := h.adapter.bodies.Get(2)
	assert.Equal(t, mgl64.Vec3{5, 10, 1}, b2.shape.LocalScaling())
}

func TestAddObject_CollisionFlags(t *testing.T) {
	h := newHarness(t)
	flags := native.CollisionFlagNoContactResponse
	h.send(protocol.AddObject{
		ID:             1,
		Shape:          protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 1},
		Rotation:       mgl64.QuatIdent(),
		CollisionFlags: &flags,
	})
	b, _ := h.adapter.bodies.Get(1)
	assert.True(t, b.rb.IsStaticObject(), "zero mass stays static")
	assert.NotZero(t, b.rb.CollisionFlags()&native.CollisionFlagNoContactResponse)
}

func TestRemoveObject_VanishesFromReports(t *testing.T) {
	h := newHarness(t)
	h.addBox(1, 1, mgl64.Vec3{0, 0, 0})
	h.addBox(2, 1, mgl64.Vec3{5, 0, 0})
	h.drain()

	reports := h.step(protocol.Simulate{TimeStep: 1.0 / 60})
	assert.ElementsMatch(t, []ident.ID{1, 2}, ids(reports[protocol.ReportWorld]))

	h.send(protocol.RemoveObject{ID: 1})
	for i := 0; i < 3; i++ {
		reports = h.step(protocol.Simulate{TimeStep: 1.0 / 60})
		assert.Equal(t, []ident.ID{2}, ids(reports[protocol.ReportWorld]))
	}
	assert.Equal(t, 1, h.adapter.world.NumBodies())
	assert.Len(t, h.adapter.byNative, 1)
}

func TestRemoveObject_Unknown(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.RemoveObject{ID: 42})
	assert.Equal(t, 0, h.adapter.Bodies())
}

func TestUpdateTransform(t *testing.T) {
	h := newHarness(t)
	h.addBox(1, 1, mgl64.Vec3{0, 0, 0})

	pos := mgl64.Vec3{1, 2, 3}
	h.send(protocol.UpdateTransform{ID: 1, Position: &pos})
	b, _ := h.adapter.bodies.Get(1)
	assert.Equal(t, pos, b.rb.WorldTransform().Origin)
	assert.Equal(t, mgl64.QuatIdent(), b.rb.WorldTransform().Basis, "rotation untouched")

	rot := mgl64.QuatRotate(1, mgl64.Vec3{0, 1, 0})
	h.send(protocol.UpdateTransform{ID: 1, Rotation: &rot})
	assert.Equal(t, pos, b.rb.WorldTransform().Origin)
	assert.InDelta(t, rot.W, b.rb.WorldTransform().Basis.W, 1e-12)
}

func TestUpdateMass(t *testing.T) {
	h := newHarness(t)
	h.addBox(1, 0, mgl64.Vec3{0, 10, 0})
	b, _ := h.adapter.bodies.Get(1)
	require.True(t, b.rb.IsStaticObject())

	h.send(protocol.UpdateMass{ID: 1, Mass: 2})
	assert.False(t, b.rb.IsStaticObject())
	assert.InDelta(t, 2.0, b.rb.Mass(), 1e-12)

	h.step(protocol.Simulate{TimeStep: 1.0 / 60})
	assert.Less(t, b.rb.WorldTransform().Origin[1], 10.0, "now falls")
}

func TestVelocityAndImpulseCommands(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.SetGravity{Gravity: mgl64.Vec3{}})
	h.addBox(1, 2, mgl64.Vec3{})

	h.send(protocol.ApplyCentralImpulse{ID: 1, Impulse: mgl64.Vec3{4, 0, 0}})
	b, _ := h.adapter.bodies.Get(1)
	assert.InDelta(t, 2.0, b.rb.LinearVelocity()[0], 1e-9)

	h.send(protocol.SetLinearVelocity{ID: 1, Velocity: mgl64.Vec3{0, 0, 1}})
	h.send(protocol.SetAngularVelocity{ID: 1, Velocity: mgl64.Vec3{0, 1, 0}})
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, b.rb.LinearVelocity())
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, b.rb.AngularVelocity())

	h.send(protocol.SetLinearFactor{ID: 1, Factor: mgl64.Vec3{1, 0, 1}})
	h.send(protocol.SetAngularFactor{ID: 1, Factor: mgl64.Vec3{0, 1, 0}})
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, b.rb.LinearFactor())
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, b.rb.AngularFactor())

	h.send(protocol.SetDamping{ID: 1, Linear: 0.1, Angular: 0.2})
	lin, ang := b.rb.Damping()
	assert.Equal(t, 0.1, lin)
	assert.Equal(t, 0.2, ang)

	h.send(protocol.SetCcdMotionThreshold{ID: 1, Threshold: 0.5})
	h.send(protocol.SetCcdSweptSphereRadius{ID: 1, Radius: 0.2})
	assert.Equal(t, 0.5, b.rb.CcdMotionThreshold())
	assert.Equal(t, 0.2, b.rb.CcdSweptSphereRadius())

	// Stale ids are ignored.
	h.send(protocol.ApplyCentralForce{ID: 99, Force: mgl64.Vec3{1, 0, 0}})
}
