// Package scenario loads YAML scene descriptions and builds them into a
// scene.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/OCAP2/physbridge/internal/bridge"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid scenario")

// Scenario is the root of a scenario file.
type Scenario struct {
	Name          string              `yaml:"name"`
	Tag           string              `yaml:"tag"`
	Gravity       *[3]float64         `yaml:"gravity"`
	FixedTimeStep float64             `yaml:"fixedTimeStep"`
	Broadphase    string              `yaml:"broadphase"`
	Steps         int                 `yaml:"steps"`
	Materials     map[string]Material `yaml:"materials"`
	Bodies        []Body              `yaml:"bodies"`
	Constraints   []Constraint        `yaml:"constraints"`
	Vehicles      []Vehicle           `yaml:"vehicles"`
}

type Material struct {
	Friction    float64 `yaml:"friction"`
	Restitution float64 `yaml:"restitution"`
}

// Shape lists the parameters of every shape type; only those of Type are
// read.
type Shape struct {
	Type      string          `yaml:"type"`
	Normal    [3]float64      `yaml:"normal"`
	Width     float64         `yaml:"width"`
	Height    float64         `yaml:"height"`
	Depth     float64         `yaml:"depth"`
	Radius    float64         `yaml:"radius"`
	Points    [][3]float64    `yaml:"points"`
	Triangles [][3][3]float64 `yaml:"triangles"`

	XPts         int       `yaml:"xpts"`
	YPts         int       `yaml:"ypts"`
	Heights      []float64 `yaml:"heights"`
	AbsMaxHeight float64   `yaml:"absMaxHeight"`
	XSize        float64   `yaml:"xsize"`
	YSize        float64   `yaml:"ysize"`
}

type Child struct {
	Shape    Shape      `yaml:"shape"`
	Offset   [3]float64 `yaml:"offset"`
	Rotation [4]float64 `yaml:"rotation"`
}

// Body rotations are x, y, z, w quaternions. A missing rotation is the
// identity.
type Body struct {
	Name           string     `yaml:"name"`
	Shape          Shape      `yaml:"shape"`
	Children       []Child    `yaml:"children"`
	Mass           float64    `yaml:"mass"`
	Position       [3]float64 `yaml:"position"`
	Rotation       [4]float64 `yaml:"rotation"`
	Material       string     `yaml:"material"`
	CollisionFlags *int       `yaml:"collisionFlags"`
}

// Constraint anchors are in world space. An empty B pins A to the world.
type Constraint struct {
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`
	A        string     `yaml:"a"`
	B        string     `yaml:"b"`
	Position [3]float64 `yaml:"position"`
	Axis     [3]float64 `yaml:"axis"`
}

type Wheel struct {
	ConnectionPoint      [3]float64 `yaml:"connectionPoint"`
	Direction            [3]float64 `yaml:"direction"`
	Axle                 [3]float64 `yaml:"axle"`
	SuspensionRestLength float64    `yaml:"suspensionRestLength"`
	Radius               float64    `yaml:"radius"`
	Front                bool       `yaml:"front"`
}

type Vehicle struct {
	Name        string  `yaml:"name"`
	Chassis     string  `yaml:"chassis"`
	Wheels      []Wheel `yaml:"wheels"`
	EngineForce float64 `yaml:"engineForce"`
	Steering    float64 `yaml:"steering"`
	Brake       float64 `yaml:"brake"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document. Unknown keys are
// rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var shapeTypes = map[string]protocol.ShapeType{
	"plane":       protocol.ShapePlane,
	"box":         protocol.ShapeBox,
	"sphere":      protocol.ShapeSphere,
	"cylinder":    protocol.ShapeCylinder,
	"capsule":     protocol.ShapeCapsule,
	"cone":        protocol.ShapeCone,
	"concave":     protocol.ShapeConcave,
	"convex":      protocol.ShapeConvex,
	"heightfield": protocol.ShapeHeightfield,
}

var constraintTypes = map[string]protocol.ConstraintType{
	"point":     protocol.ConstraintPoint,
	"hinge":     protocol.ConstraintHinge,
	"slider":    protocol.ConstraintSlider,
	"conetwist": protocol.ConstraintConeTwist,
	"dof":       protocol.ConstraintDof,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks names, references and shape types.
func (s *Scenario) Validate() error {
	if s.FixedTimeStep < 0 {
		return invalid("negative fixedTimeStep")
	}
	if s.Steps < 0 {
		return invalid("negative steps")
	}

	bodies := make(map[string]bool, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.Name == "" {
			return invalid("body %d has no name", i)
		}
		if bodies[b.Name] {
			return invalid("duplicate body %q", b.Name)
		}
		bodies[b.Name] = true
		if err := b.Shape.validate(); err != nil {
			return invalid("body %q: %v", b.Name, err)
		}
		for j, c := range b.Children {
			if err := c.Shape.validate(); err != nil {
				return invalid("body %q child %d: %v", b.Name, j, err)
			}
		}
		if b.Material != "" {
			if _, ok := s.Materials[b.Material]; !ok {
				return invalid("body %q: unknown material %q", b.Name, b.Material)
			}
		}
	}

	for i, c := range s.Constraints {
		if _, ok := constraintTypes[c.Type]; !ok {
			return invalid("constraint %d: unknown type %q", i, c.Type)
		}
		if !bodies[c.A] {
			return invalid("constraint %d: unknown body %q", i, c.A)
		}
		if c.B != "" && !bodies[c.B] {
			return invalid("constraint %d: unknown body %q", i, c.B)
		}
	}

	for i, v := range s.Vehicles {
		if !bodies[v.Chassis] {
			return invalid("vehicle %d: unknown chassis %q", i, v.Chassis)
		}
	}
	return nil
}

func (sh Shape) validate() error {
	if _, ok := shapeTypes[sh.Type]; !ok {
		return fmt.Errorf("unknown shape type %q", sh.Type)
	}
	return nil
}

func vec(v [3]float64) mgl64.Vec3 { return mgl64.Vec3(v) }

func quat(q [4]float64) mgl64.Quat {
	if q == ([4]float64{}) {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

// Desc converts the shape to its wire description.
func (sh Shape) Desc() protocol.ShapeDesc {
	d := protocol.ShapeDesc{
		Type:         shapeTypes[sh.Type],
		Normal:       vec(sh.Normal),
		Width:        sh.Width,
		Height:       sh.Height,
		Depth:        sh.Depth,
		Radius:       sh.Radius,
		XPts:         sh.XPts,
		YPts:         sh.YPts,
		Heights:      sh.Heights,
		AbsMaxHeight: sh.AbsMaxHeight,
		XSize:        sh.XSize,
		YSize:        sh.YSize,
	}
	for _, p := range sh.Points {
		d.Points = append(d.Points, vec(p))
	}
	for _, t := range sh.Triangles {
		d.Triangles = append(d.Triangles, [3]mgl64.Vec3{vec(t[0]), vec(t[1]), vec(t[2])})
	}
	return d
}

// Configure copies the session settings of the scenario into cfg. Unset
// values keep the defaults of cfg.
func (s *Scenario) Configure(cfg *bridge.Config) {
	if s.Name != "" {
		cfg.Name = s.Name
	}
	if s.Tag != "" {
		cfg.Tag = s.Tag
	}
	if s.Gravity != nil {
		cfg.Gravity = vec(*s.Gravity)
	}
	if s.FixedTimeStep > 0 {
		cfg.Scene.FixedTimeStep = s.FixedTimeStep
		cfg.Adapter.FixedTimeStep = s.FixedTimeStep
	}
	if s.Broadphase != "" {
		cfg.Scene.Broadphase = s.Broadphase
		cfg.Adapter.Broadphase = s.Broadphase
	}
}

// Built maps scenario names to the entities created for them.
type Built struct {
	Bodies      map[string]*scene.Body
	Constraints []*scene.Constraint
	Vehicles    map[string]*scene.Vehicle
}

// Build creates every material, body, constraint and vehicle in sc.
func (s *Scenario) Build(sc *scene.Scene) (*Built, error) {
	materials := make(map[string]*scene.Material, len(s.Materials))
	for name, m := range s.Materials {
		mat := sc.NewMaterial(m.Friction, m.Restitution)
		materials[name] = &mat
	}

	out := &Built{
		Bodies:   make(map[string]*scene.Body, len(s.Bodies)),
		Vehicles: make(map[string]*scene.Vehicle, len(s.Vehicles)),
	}
	for _, b := range s.Bodies {
		desc := scene.BodyDesc{
			Shape:          b.Shape.Desc(),
			Mass:           b.Mass,
			Position:       vec(b.Position),
			Rotation:       quat(b.Rotation),
			Material:       materials[b.Material],
			CollisionFlags: b.CollisionFlags,
		}
		for _, c := range b.Children {
			desc.Children = append(desc.Children, protocol.ChildShape{
				Shape:          c.Shape.Desc(),
				PositionOffset: vec(c.Offset),
				Rotation:       quat(c.Rotation),
			})
		}
		out.Bodies[b.Name] = sc.AddBody(desc)
	}

	id := func(name string) ident.ID {
		if b, ok := out.Bodies[name]; ok {
			return b.ID()
		}
		return ident.None
	}
	for i, c := range s.Constraints {
		con, err := sc.AddConstraint(scene.ConstraintDesc{
			Type:     constraintTypes[c.Type],
			A:        id(c.A),
			B:        id(c.B),
			Position: vec(c.Position),
			Axis:     vec(c.Axis),
		})
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		out.Constraints = append(out.Constraints, con)
	}

	for i, v := range s.Vehicles {
		veh, err := sc.AddVehicle(id(v.Chassis), protocol.DefaultVehicleTuning())
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
		for _, w := range v.Wheels {
			veh.AddWheel(scene.WheelDesc{
				ConnectionPoint:      vec(w.ConnectionPoint),
				Direction:            vec(w.Direction),
				Axle:                 vec(w.Axle),
				SuspensionRestLength: w.SuspensionRestLength,
				Radius:               w.Radius,
				Front:                w.Front,
			})
		}
		if v.EngineForce != 0 {
			veh.ApplyEngineForce(v.EngineForce)
		}
		if v.Steering != 0 {
			veh.SetSteering(v.Steering)
		}
		if v.Brake != 0 {
			veh.SetBrake(v.Brake)
		}
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("vehicle%d", i)
		}
		out.Vehicles[name] = veh
	}
	return out, nil
}
