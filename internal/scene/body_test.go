package scene

import (
	"testing"

	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBody_SendsAddObject(t *testing.T) {
	s, out, _ := newScene(t)
	flags := 4
	b := s.AddBody(BodyDesc{
		Shape:          protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 0.5},
		Children:       []protocol.ChildShape{{Shape: protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1}, PositionOffset: mgl64.Vec3{0, 1, 0}}},
		Mass:           2,
		Position:       mgl64.Vec3{1, 2, 3},
		CollisionFlags: &flags,
	})

	cmds := out.take()
	require.Len(t, cmds, 1)
	add := cmds[0].(protocol.AddObject)
	assert.Equal(t, b.ID(), add.ID)
	assert.Equal(t, protocol.ShapeSphere, add.Shape.Type)
	assert.Len(t, add.Children, 1)
	assert.Equal(t, 2.0, add.Mass)
	assert.Equal(t, mgl64.QuatIdent(), add.Rotation)
	assert.Equal(t, &flags, add.CollisionFlags)
	assert.Zero(t, add.MaterialID)

	got, ok := s.Body(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, s.Bodies())
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, b.Position())
	assert.Equal(t, 2.0, b.Mass())
}

func TestMaterials_RefCounted(t *testing.T) {
	s, out, _ := newScene(t)
	m := s.DefaultMaterial()
	assert.Equal(t, 0.8, m.Friction)
	assert.Equal(t, 0.2, m.Restitution)

	desc := BodyDesc{Shape: protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 1}, Mass: 1, Material: &m}
	a := s.AddBody(desc)
	cmds := out.take()
	require.Equal(t, []string{"registerMaterial", "addObject"}, names(cmds))
	assert.Equal(t, m.ID, cmds[0].(protocol.RegisterMaterial).ID)
	assert.Equal(t, m.ID, cmds[1].(protocol.AddObject).MaterialID)

	b := s.AddBody(desc)
	assert.Equal(t, []string{"addObject"}, names(out.take()))

	s.RemoveBody(a.ID())
	assert.Equal(t, []string{"removeObject"}, names(out.take()))

	s.RemoveBody(b.ID())
	cmds = out.take()
	require.Equal(t, []string{"removeObject", "unRegisterMaterial"}, names(cmds))
	assert.Equal(t, m.ID, cmds[1].(protocol.UnregisterMaterial).ID)

	// unknown ids send nothing
	s.RemoveBody(b.ID())
	assert.Empty(t, out.take())

	// reused after reaching zero registers again
	s.AddBody(desc)
	assert.Equal(t, []string{"registerMaterial", "addObject"}, names(out.take()))
}

func TestBody_Mutators(t *testing.T) {
	s, out, _ := newScene(t)
	b := box(s, mgl64.Vec3{})
	out.take()

	v := mgl64.Vec3{1, 2, 3}
	o := mgl64.Vec3{0, 1, 0}
	b.SetMass(5)
	b.ApplyCentralImpulse(v)
	b.ApplyImpulse(v, o)
	b.ApplyCentralForce(v)
	b.ApplyForce(v, o)
	b.SetLinearVelocity(v)
	b.SetAngularVelocity(v)
	b.SetLinearFactor(v)
	b.SetAngularFactor(v)
	b.SetDamping(0.1, 0.2)
	b.SetCcdMotionThreshold(0.3)
	b.SetCcdSweptSphereRadius(0.4)

	cmds := out.take()
	assert.Equal(t, []string{
		"updateMass",
		"applyCentralImpulse",
		"applyImpulse",
		"applyCentralForce",
		"applyForce",
		"setLinearVelocity",
		"setAngularVelocity",
		"setLinearFactor",
		"setAngularFactor",
		"setDamping",
		"setCcdMotionThreshold",
		"setCcdSweptSphereRadius",
	}, names(cmds))
	assert.Equal(t, 5.0, b.Mass())
	assert.Equal(t, protocol.ApplyImpulse{ID: b.ID(), Impulse: v, Offset: o}, cmds[2])
	assert.Equal(t, protocol.SetDamping{ID: b.ID(), Linear: 0.1, Angular: 0.2}, cmds[9])
}

func TestBody_WorldToLocal(t *testing.T) {
	s, _, _ := newScene(t)
	b := s.AddBody(BodyDesc{
		Shape:    protocol.ShapeDesc{Type: protocol.ShapeSphere, Radius: 1},
		Position: mgl64.Vec3{2, 0, 0},
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0}),
	})

	local := b.worldToLocal(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 0, local[0], 1e-9)
	assert.InDelta(t, 0, local[1], 1e-9)
	assert.InDelta(t, -1, local[2], 1e-9)
}

func TestRemoveBody_DropsAttachedJointsAndVehicles(t *testing.T) {
	s, out, _ := newScene(t)
	box := protocol.ShapeDesc{Type: protocol.ShapeBox, Width: 1, Height: 1, Depth: 1}
	a := s.AddBody(BodyDesc{Shape: box, Mass: 1})
	b := s.AddBody(BodyDesc{Shape: box, Mass: 1, Position: mgl64.Vec3{2, 0, 0}})
	c := s.AddBody(BodyDesc{Shape: box, Mass: 1, Position: mgl64.Vec3{4, 0, 0}})

	ab, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintPoint, A: a.ID(), B: b.ID(), Position: mgl64.Vec3{1, 0, 0}})
	require.NoError(t, err)
	bc, err := s.AddConstraint(ConstraintDesc{Type: protocol.ConstraintPoint, A: b.ID(), B: c.ID(), Position: mgl64.Vec3{3, 0, 0}})
	require.NoError(t, err)
	car, err := s.AddVehicle(a.ID(), protocol.VehicleTuning{})
	require.NoError(t, err)
	other, err := s.AddVehicle(c.ID(), protocol.VehicleTuning{})
	require.NoError(t, err)
	out.take()

	s.RemoveBody(a.ID())
	assert.Equal(t, []string{"removeObject"}, names(out.take()))

	_, ok := s.Constraint(ab.ID())
	assert.False(t, ok)
	_, ok = s.Vehicle(car.ID())
	assert.False(t, ok)

	_, ok = s.Constraint(bc.ID())
	assert.True(t, ok)
	_, ok = s.Vehicle(other.ID())
	assert.True(t, ok)

	// The adapter already dropped the vehicle, so no second removal goes out.
	s.RemoveVehicle(car.ID())
	assert.Empty(t, out.take())
}
