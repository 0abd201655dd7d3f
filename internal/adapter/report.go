package adapter

import (
	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
)

// buffer takes the adapter's buffer of kind, sized for n records. The
// scene owns a sent buffer until it returns it; meanwhile a fresh one is
// allocated.
func (a *Adapter) buffer(kind protocol.ReportKind, n int) *protocol.Buffer {
	b := a.buffers[kind]
	a.buffers[kind] = nil
	if b == nil {
		b = protocol.NewBuffer(kind, a.reportSize)
	}
	b.Reset(kind)
	b.Grow(n, a.cfg.ReportChunk)
	return b
}

func (a *Adapter) returnBuffer(b *protocol.Buffer) {
	if b == nil {
		return
	}
	if a.buffers[b.Kind()] == nil {
		a.buffers[b.Kind()] = b
	}
}

// publish sends one report of every kind in the fixed order.
func (a *Adapter) publish(out channel.Sender[protocol.Message]) {
	for _, b := range a.returned.GetAndEmpty() {
		a.returnBuffer(b)
	}
	out.Send(protocol.Report{Buffer: a.reportVehicles()})
	out.Send(protocol.Report{Buffer: a.reportCollisions()})
	out.Send(protocol.Report{Buffer: a.reportConstraints()})
	out.Send(protocol.Report{Buffer: a.reportWorld()})
}

func (a *Adapter) reportWorld() *protocol.Buffer {
	buf := a.buffer(protocol.ReportWorld, a.bodies.Len())
	a.bodies.Range(func(id ident.ID, b *body) bool {
		t := b.rb.CenterOfMassTransform()
		p, q := t.Origin, t.Basis
		lv, av := b.rb.LinearVelocity(), b.rb.AngularVelocity()
		buf.Append(
			id.Float(),
			p[0], p[1], p[2],
			q.V[0], q.V[1], q.V[2], q.W,
			lv[0], lv[1], lv[2],
			av[0], av[1], av[2],
		)
		return true
	})
	return buf
}

// reportCollisions records the first contact of every touching manifold.
// A pair may appear once per manifold; the scene collapses repeats.
func (a *Adapter) reportCollisions() *protocol.Buffer {
	d := a.world.Dispatcher()
	buf := a.buffer(protocol.ReportCollision, d.NumManifolds())
	for i := 0; i < d.NumManifolds(); i++ {
		m := d.ManifoldByIndex(i)
		if m.NumContacts() == 0 {
			continue
		}
		idA, okA := a.byNative[m.Body0()]
		idB, okB := a.byNative[m.Body1()]
		if !okA || !okB {
			continue
		}
		n := m.Contact(0).NormalWorldOnB
		buf.Append(idA.Float(), idB.Float(), n[0], n[1], n[2])
	}
	a.contacts.Set(buf.Count())
	return buf
}

func (a *Adapter) reportVehicles() *protocol.Buffer {
	wheels := 0
	a.vehicles.Range(func(_ ident.ID, v *vehicle) bool {
		wheels += v.raycast.NumWheels()
		return true
	})
	buf := a.buffer(protocol.ReportVehicle, wheels)
	a.vehicles.Range(func(id ident.ID, v *vehicle) bool {
		for i := 0; i < v.raycast.NumWheels(); i++ {
			t := v.raycast.WheelTransformWS(i)
			p, q := t.Origin, t.Basis
			buf.Append(
				id.Float(), float64(i),
				p[0], p[1], p[2],
				q.V[0], q.V[1], q.V[2], q.W,
			)
		}
		return true
	})
	return buf
}

// reportConstraints places each joint anchor in world space through the
// current transform of body A.
func (a *Adapter) reportConstraints() *protocol.Buffer {
	buf := a.buffer(protocol.ReportConstraint, a.constraints.Len())
	a.constraints.Range(func(id ident.ID, c *constraint) bool {
		anchor := c.a.rb.WorldTransform().Apply(c.joint.FrameA().Origin)
		buf.Append(
			id.Float(), c.a.id.Float(),
			anchor[0], anchor[1], anchor[2],
			c.joint.AppliedImpulse(),
		)
		return true
	})
	return buf
}
