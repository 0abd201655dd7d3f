package scene

import (
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

// Material is a friction and restitution pair shared by bodies. The
// adapter learns about it with the first body that uses it.
type Material struct {
	ID          ident.ID
	Friction    float64
	Restitution float64
}

// NewMaterial allocates a material identity.
func (s *Scene) NewMaterial(friction, restitution float64) Material {
	return Material{ID: s.ids.Next(), Friction: friction, Restitution: restitution}
}

// DefaultMaterial uses friction 0.8 and restitution 0.2.
func (s *Scene) DefaultMaterial() Material {
	return s.NewMaterial(0.8, 0.2)
}

// BodyDesc describes a body to create.
type BodyDesc struct {
	Shape          protocol.ShapeDesc
	Children       []protocol.ChildShape
	Mass           float64
	Position       mgl64.Vec3
	Rotation       mgl64.Quat
	Material       *Material
	CollisionFlags *int
}

// Body mirrors one rigid body. Position, rotation and velocities follow
// the world reports.
type Body struct {
	scene    *Scene
	id       ident.ID
	material *Material
	mass     float64

	position        mgl64.Vec3
	rotation        mgl64.Quat
	linearVelocity  mgl64.Vec3
	angularVelocity mgl64.Vec3

	dirtyPosition bool
	dirtyRotation bool
	ready         bool
	touches       []ident.ID
}

// AddBody registers a body and sends it to the adapter.
func (s *Scene) AddBody(desc BodyDesc) *Body {
	rot := desc.Rotation
	if rot == (mgl64.Quat{}) {
		rot = mgl64.QuatIdent()
	}

	s.mu.Lock()
	b := &Body{
		scene:    s,
		id:       s.ids.Next(),
		material: desc.Material,
		mass:     desc.Mass,
		position: desc.Position,
		rotation: rot,
	}
	s.bodies[b.id] = b
	s.order = append(s.order, b.id)

	var cmds []protocol.Command
	var materialID ident.ID
	if m := desc.Material; m != nil {
		materialID = m.ID
		s.materials[m.ID]++
		if s.materials[m.ID] == 1 {
			cmds = append(cmds, protocol.RegisterMaterial{ID: m.ID, Friction: m.Friction, Restitution: m.Restitution})
		}
	}
	s.mu.Unlock()

	cmds = append(cmds, protocol.AddObject{
		ID:             b.id,
		Shape:          desc.Shape,
		Children:       desc.Children,
		Mass:           desc.Mass,
		Position:       desc.Position,
		Rotation:       rot,
		MaterialID:     materialID,
		CollisionFlags: desc.CollisionFlags,
	})
	s.send(cmds...)
	return b
}

// RemoveBody forgets the body, along with the joints and vehicles built
// on it, and tells the adapter to drop it. A material no body uses any
// more is unregistered.
func (s *Scene) RemoveBody(id ident.ID) {
	s.mu.Lock()
	b, ok := s.bodies[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.bodies, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.pending.Take(func(cb readyCallback) bool { return cb.id == id })

	// The adapter drops joints and vehicles attached to the body on its own.
	for cid, c := range s.constraints {
		if c.a == id || c.b == id {
			delete(s.constraints, cid)
		}
	}
	for vid, v := range s.vehicles {
		if v.chassis == id {
			delete(s.vehicles, vid)
		}
	}

	cmds := []protocol.Command{protocol.RemoveObject{ID: id}}
	if m := b.material; m != nil {
		s.materials[m.ID]--
		if s.materials[m.ID] <= 0 {
			delete(s.materials, m.ID)
			cmds = append(cmds, protocol.UnregisterMaterial{ID: m.ID})
		}
	}
	s.mu.Unlock()

	s.send(cmds...)
}

// Body looks up a mirrored body.
func (s *Scene) Body(id ident.ID) (*Body, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bodies[id]
	return b, ok
}

// Bodies returns the number of mirrored bodies.
func (s *Scene) Bodies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (b *Body) ID() ident.ID { return b.id }

func (b *Body) Position() mgl64.Vec3 {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.position
}

func (b *Body) Rotation() mgl64.Quat {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.rotation
}

func (b *Body) LinearVelocity() mgl64.Vec3 {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.linearVelocity
}

func (b *Body) AngularVelocity() mgl64.Vec3 {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.angularVelocity
}

func (b *Body) Mass() float64 {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.mass
}

// Ready reports whether the adapter acknowledged the body.
func (b *Body) Ready() bool {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return b.ready
}

// Touches lists the bodies currently in contact.
func (b *Body) Touches() []ident.ID {
	b.scene.mu.Lock()
	defer b.scene.mu.Unlock()
	return append([]ident.ID(nil), b.touches...)
}

// SetPosition moves the body outside the simulation. The change is sent
// with the next step and survives world reports until then.
func (b *Body) SetPosition(p mgl64.Vec3) {
	b.scene.mu.Lock()
	b.position = p
	b.dirtyPosition = true
	b.scene.mu.Unlock()
}

func (b *Body) SetRotation(q mgl64.Quat) {
	b.scene.mu.Lock()
	b.rotation = q
	b.dirtyRotation = true
	b.scene.mu.Unlock()
}

func (b *Body) SetMass(mass float64) {
	b.scene.mu.Lock()
	b.mass = mass
	b.scene.mu.Unlock()
	b.scene.send(protocol.UpdateMass{ID: b.id, Mass: mass})
}

func (b *Body) ApplyCentralImpulse(impulse mgl64.Vec3) {
	b.scene.send(protocol.ApplyCentralImpulse{ID: b.id, Impulse: impulse})
}

// ApplyImpulse pushes at offset, relative to the center of mass.
func (b *Body) ApplyImpulse(impulse, offset mgl64.Vec3) {
	b.scene.send(protocol.ApplyImpulse{ID: b.id, Impulse: impulse, Offset: offset})
}

func (b *Body) ApplyCentralForce(force mgl64.Vec3) {
	b.scene.send(protocol.ApplyCentralForce{ID: b.id, Force: force})
}

func (b *Body) ApplyForce(force, offset mgl64.Vec3) {
	b.scene.send(protocol.ApplyForce{ID: b.id, Force: force, Offset: offset})
}

func (b *Body) SetLinearVelocity(v mgl64.Vec3) {
	b.scene.send(protocol.SetLinearVelocity{ID: b.id, Velocity: v})
}

func (b *Body) SetAngularVelocity(v mgl64.Vec3) {
	b.scene.send(protocol.SetAngularVelocity{ID: b.id, Velocity: v})
}

func (b *Body) SetLinearFactor(f mgl64.Vec3) {
	b.scene.send(protocol.SetLinearFactor{ID: b.id, Factor: f})
}

func (b *Body) SetAngularFactor(f mgl64.Vec3) {
	b.scene.send(protocol.SetAngularFactor{ID: b.id, Factor: f})
}

func (b *Body) SetDamping(linear, angular float64) {
	b.scene.send(protocol.SetDamping{ID: b.id, Linear: linear, Angular: angular})
}

func (b *Body) SetCcdMotionThreshold(threshold float64) {
	b.scene.send(protocol.SetCcdMotionThreshold{ID: b.id, Threshold: threshold})
}

func (b *Body) SetCcdSweptSphereRadius(radius float64) {
	b.scene.send(protocol.SetCcdSweptSphereRadius{ID: b.id, Radius: radius})
}

// OnReady runs fn after the adapter acknowledged the body.
func (b *Body) OnReady(fn func()) { b.scene.OnReady(b.id, fn) }

// worldToLocal expresses a world point in the body frame.
func (b *Body) worldToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return b.rotation.Inverse().Rotate(p.Sub(b.position))
}
