package adapter

import (
	"fmt"

	"github.com/OCAP2/physbridge/internal/cache"
	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/native"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

// buildShape returns the native shape for desc. Primitive shapes come
// from the shared cache; the rest are new and owned by one body.
func (a *Adapter) buildShape(desc protocol.ShapeDesc) (shape native.Shape, shared bool, err error) {
	switch desc.Type {
	case protocol.ShapePlane:
		n := desc.Normal
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("plane", n[0], n[1], n[2]), func() (native.Shape, error) {
			return native.NewStaticPlaneShape(n, 0), nil
		})
		return shape, true, err
	case protocol.ShapeBox:
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("box", desc.Width, desc.Height, desc.Depth), func() (native.Shape, error) {
			return native.NewBoxShape(mgl64.Vec3{desc.Width / 2, desc.Height / 2, desc.Depth / 2}), nil
		})
		return shape, true, err
	case protocol.ShapeSphere:
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("sphere", desc.Radius), func() (native.Shape, error) {
			return native.NewSphereShape(desc.Radius), nil
		})
		return shape, true, err
	case protocol.ShapeCylinder:
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("cylinder", desc.Width, desc.Height, desc.Depth), func() (native.Shape, error) {
			return native.NewCylinderShape(mgl64.Vec3{desc.Width / 2, desc.Height / 2, desc.Depth / 2}), nil
		})
		return shape, true, err
	case protocol.ShapeCapsule:
		// Height is tip to tip; the native capsule excludes the caps.
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("capsule", desc.Radius, desc.Height), func() (native.Shape, error) {
			return native.NewCapsuleShape(desc.Radius, desc.Height-2*desc.Radius), nil
		})
		return shape, true, err
	case protocol.ShapeCone:
		shape, err = a.shapes.GetOrCreate(cache.ShapeKey("cone", desc.Radius, desc.Height), func() (native.Shape, error) {
			return native.NewConeShape(desc.Radius, desc.Height), nil
		})
		return shape, true, err

	case protocol.ShapeConcave:
		tris := make([]native.Triangle, len(desc.Triangles))
		for i, t := range desc.Triangles {
			tris[i] = native.Triangle(t)
		}
		mesh, err := native.NewTriangleMeshShape(tris)
		if err != nil {
			return nil, false, err
		}
		return mesh, false, nil
	case protocol.ShapeConvex:
		return native.NewConvexHullShape(desc.Points), false, nil
	case protocol.ShapeHeightfield:
		hf := native.NewHeightfieldShape(desc.XPts, desc.YPts, desc.Heights, desc.AbsMaxHeight)
		hf.SetLocalScaling(mgl64.Vec3{
			desc.XSize / float64(desc.XPts-1),
			desc.YSize / float64(desc.YPts-1),
			1,
		})
		return hf, false, nil
	}
	return nil, false, fmt.Errorf("%w: %q", native.ErrUnknownShape, desc.Type)
}

// bodyShape builds the primary shape and, with children, the compound
// around it. The returned owned shape is nil when everything is shared.
func (a *Adapter) bodyShape(c protocol.AddObject) (shape, owned native.Shape, err error) {
	primary, shared, err := a.buildShape(c.Shape)
	if err != nil {
		return nil, nil, err
	}
	if len(c.Children) == 0 {
		if shared {
			return primary, nil, nil
		}
		return primary, primary, nil
	}

	compound := native.NewCompoundShape()
	compound.AddChild(native.IdentityTransform(), primary)
	for i, child := range c.Children {
		s, _, err := a.buildShape(child.Shape)
		if err != nil {
			return nil, nil, fmt.Errorf("child %d: %w", i, err)
		}
		compound.AddChild(native.NewTransform(child.PositionOffset, child.Rotation), s)
	}
	return compound, compound, nil
}

func (a *Adapter) addObject(c protocol.AddObject, out channel.Sender[protocol.Message]) {
	if _, exists := a.bodies.Get(c.ID); exists {
		a.logger.Debug("body already exists", "id", c.ID)
		return
	}

	shape, owned, err := a.bodyShape(c)
	if err != nil {
		a.logger.Debug("body construction failed", "id", c.ID, "shape", c.Shape.Type, "error", err)
		return
	}

	motion := native.NewMotionState(native.NewTransform(c.Position, c.Rotation))
	rb := native.NewRigidBody(native.RigidBodyInfo{
		Mass:         c.Mass,
		MotionState:  motion,
		Shape:        shape,
		LocalInertia: shape.CalculateLocalInertia(c.Mass),
	})
	if m, ok := a.materials.Get(c.MaterialID); ok {
		rb.SetFriction(m.Friction)
		rb.SetRestitution(m.Restitution)
	}
	if c.CollisionFlags != nil {
		rb.SetCollisionFlags(*c.CollisionFlags | rb.CollisionFlags()&native.CollisionFlagStatic)
	}
	rb.UserIndex = uint64(c.ID)

	a.world.AddRigidBody(rb)
	if owned != nil {
		a.shapes.Track(c.ID, owned)
	}
	a.bodies.Add(c.ID, &body{id: c.ID, rb: rb, motion: motion, shape: shape})
	a.byNative[rb] = c.ID

	out.Send(protocol.ObjectReady{ID: c.ID})
}

func (a *Adapter) removeObject(id ident.ID) {
	b, ok := a.bodies.Delete(id)
	if !ok {
		a.logger.Debug("unknown body", "id", id)
		return
	}
	a.detach(b)
	a.world.RemoveRigidBody(b.rb)
	a.shapes.Release(id)
	delete(a.byNative, b.rb)
}

// detach drops the joints and vehicles that hold on to b.
func (a *Adapter) detach(b *body) {
	var joints, vehicles []ident.ID
	a.constraints.Range(func(id ident.ID, c *constraint) bool {
		if c.a == b || c.b == b {
			joints = append(joints, id)
		}
		return true
	})
	a.vehicles.Range(func(id ident.ID, v *vehicle) bool {
		if v.chassis == b {
			vehicles = append(vehicles, id)
		}
		return true
	})
	for _, id := range joints {
		a.removeConstraint(id)
	}
	for _, id := range vehicles {
		a.removeVehicle(id)
	}
}

func (a *Adapter) updateTransform(c protocol.UpdateTransform) {
	a.withBody(c.ID, func(b *body) {
		t := b.motion.WorldTransform()
		if c.Position != nil {
			t.Origin = *c.Position
		}
		if c.Rotation != nil {
			t.Basis = c.Rotation.Normalize()
		}
		b.rb.SetWorldTransform(t)
		b.rb.Activate()
	})
}

// updateMass re-inserts the body so the world sees its new static or
// dynamic status. Inertia is recomputed from the shape.
func (a *Adapter) updateMass(c protocol.UpdateMass) {
	a.withBody(c.ID, func(b *body) {
		a.world.RemoveRigidBody(b.rb)
		b.rb.SetMassProps(c.Mass, b.shape.CalculateLocalInertia(c.Mass))
		a.world.AddRigidBody(b.rb)
		b.rb.Activate()
	})
}
