package scene

import (
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

type collisionEvent struct {
	id, other      ident.ID
	relLin, relAng mgl64.Vec3
	normal         mgl64.Vec3
}

type pair struct{ a, b ident.ID }

func (s *Scene) report(buf *protocol.Buffer) {
	if buf == nil {
		return
	}
	switch buf.Kind() {
	case protocol.ReportWorld:
		s.decodeWorld(buf)
	case protocol.ReportCollision:
		s.decodeCollisions(buf)
	case protocol.ReportVehicle:
		s.decodeVehicles(buf)
	case protocol.ReportConstraint:
		s.decodeConstraints(buf)
	default:
		s.logger.Debug("unknown report", "kind", buf.Kind())
	}
}

func vec3(r []float64) mgl64.Vec3 { return mgl64.Vec3{r[0], r[1], r[2]} }

func quat(r []float64) mgl64.Quat {
	return mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
}

// decodeWorld leaves transforms changed since the last step untouched
// so the pending UpdateTransform wins.
func (s *Scene) decodeWorld(buf *protocol.Buffer) {
	s.mu.Lock()
	for i := 0; i < buf.Count(); i++ {
		r := buf.Record(i)
		b, ok := s.bodies[ident.FromFloat(r[0])]
		if !ok {
			continue
		}
		if !b.dirtyPosition {
			b.position = vec3(r[1:4])
		}
		if !b.dirtyRotation {
			b.rotation = quat(r[4:8])
		}
		b.linearVelocity = vec3(r[8:11])
		b.angularVelocity = vec3(r[11:14])
	}
	s.inFlight = false
	s.mu.Unlock()

	s.sink.Update()
}

// decodeCollisions turns the contact pairs of one step into begin events.
// Each side of a new touch gets its own event; the normal points away
// from the observer.
func (s *Scene) decodeCollisions(buf *protocol.Buffer) {
	partners := make(map[ident.ID][]ident.ID)
	normals := make(map[pair]mgl64.Vec3)
	for i := 0; i < buf.Count(); i++ {
		r := buf.Record(i)
		a, b := ident.FromFloat(r[0]), ident.FromFloat(r[1])
		n := vec3(r[2:5])
		partners[a] = append(partners[a], b)
		partners[b] = append(partners[b], a)
		normals[pair{a, b}] = n
		normals[pair{b, a}] = n.Mul(-1)
	}

	var events []collisionEvent
	s.mu.Lock()
	for _, id := range s.order {
		self := s.bodies[id]
		others, ok := partners[id]
		if !ok {
			self.touches = self.touches[:0]
			continue
		}

		kept := self.touches[:0]
		for _, t := range self.touches {
			if contains(others, t) {
				kept = append(kept, t)
			}
		}
		self.touches = kept

		for _, o := range others {
			other, ok := s.bodies[o]
			if !ok || contains(self.touches, o) {
				continue
			}
			self.touches = append(self.touches, o)
			events = append(events, collisionEvent{
				id:     id,
				other:  o,
				relLin: self.linearVelocity.Sub(other.linearVelocity),
				relAng: self.angularVelocity.Sub(other.angularVelocity),
				normal: normals[pair{id, o}].Mul(-1),
			})
		}
	}
	s.mu.Unlock()

	for _, e := range events {
		s.sink.Collision(e.id, e.other, e.relLin, e.relAng, e.normal)
	}
}

func contains(ids []ident.ID, id ident.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (s *Scene) decodeVehicles(buf *protocol.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < buf.Count(); i++ {
		r := buf.Record(i)
		v, ok := s.vehicles[ident.FromFloat(r[0])]
		if !ok {
			continue
		}
		w := int(r[1])
		if w < 0 || w >= len(v.wheels) {
			continue
		}
		v.wheels[w].Position = vec3(r[2:5])
		v.wheels[w].Rotation = quat(r[5:9])
	}
}

func (s *Scene) decodeConstraints(buf *protocol.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < buf.Count(); i++ {
		r := buf.Record(i)
		c, ok := s.constraints[ident.FromFloat(r[0])]
		if !ok {
			continue
		}
		c.positionA = vec3(r[2:5])
		c.appliedImpulse = r[5]
	}
}
