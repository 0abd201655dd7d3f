package scenario

import (
	"path/filepath"
	"testing"

	"github.com/OCAP2/physbridge/internal/bridge"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	cmds []protocol.Command
}

func (r *recorder) Send(c protocol.Command) { r.cmds = append(r.cmds, c) }

func (r *recorder) count(name string) int {
	n := 0
	for _, c := range r.cmds {
		if c.Name() == name {
			n++
		}
	}
	return n
}

func TestLoad(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "car.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "car", s.Name)
	assert.Equal(t, 10, s.Steps)
	require.NotNil(t, s.Gravity)
	assert.Equal(t, [3]float64{0, -9.81, 0}, *s.Gravity)
	assert.Len(t, s.Bodies, 3)
	assert.Len(t, s.Vehicles[0].Wheels, 4)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "bodies: []\nwheels: 4\n"},
		{"unnamed body", "bodies:\n  - shape: {type: box}\n"},
		{"duplicate body", "bodies:\n  - {name: a, shape: {type: box}}\n  - {name: a, shape: {type: box}}\n"},
		{"unknown shape", "bodies:\n  - {name: a, shape: {type: torus}}\n"},
		{"unknown child shape", "bodies:\n  - {name: a, shape: {type: box}, children: [{shape: {type: torus}}]}\n"},
		{"unknown material", "bodies:\n  - {name: a, shape: {type: box}, material: ice}\n"},
		{"unknown constraint type", "bodies:\n  - {name: a, shape: {type: box}}\nconstraints:\n  - {type: weld, a: a}\n"},
		{"unknown constraint body", "bodies:\n  - {name: a, shape: {type: box}}\nconstraints:\n  - {type: point, a: a, b: b}\n"},
		{"unknown chassis", "vehicles:\n  - {chassis: truck}\n"},
		{"negative step", "fixedTimeStep: -1\n"},
		{"negative steps", "steps: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestShapeDesc(t *testing.T) {
	sh := Shape{
		Type:      "concave",
		Triangles: [][3][3]float64{{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}},
	}
	d := sh.Desc()
	assert.Equal(t, protocol.ShapeConcave, d.Type)
	require.Len(t, d.Triangles, 1)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, d.Triangles[0][1])

	hull := Shape{Type: "convex", Points: [][3]float64{{1, 2, 3}}}.Desc()
	assert.Equal(t, []mgl64.Vec3{{1, 2, 3}}, hull.Points)
}

func TestQuat_DefaultsToIdentity(t *testing.T) {
	assert.Equal(t, mgl64.QuatIdent(), quat([4]float64{}))
	q := quat([4]float64{0, 1, 0, 0})
	assert.Equal(t, 0.0, q.W)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, q.V)
}

func TestConfigure(t *testing.T) {
	s := &Scenario{Name: "x", FixedTimeStep: 0.02, Broadphase: "sweepprune", Gravity: &[3]float64{0, -1, 0}}
	cfg := bridge.DefaultConfig()
	s.Configure(&cfg)

	assert.Equal(t, "x", cfg.Name)
	assert.Equal(t, 0.02, cfg.Scene.FixedTimeStep)
	assert.Equal(t, 0.02, cfg.Adapter.FixedTimeStep)
	assert.Equal(t, "sweepprune", cfg.Scene.Broadphase)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, cfg.Gravity)

	empty := bridge.DefaultConfig()
	(&Scenario{}).Configure(&empty)
	assert.Equal(t, bridge.DefaultConfig(), empty)
}

func TestBuild(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "car.yaml"))
	require.NoError(t, err)

	out := &recorder{}
	sc := scene.New(out, nil, scene.DefaultConfig(), nil)
	built, err := s.Build(sc)
	require.NoError(t, err)

	assert.Len(t, built.Bodies, 3)
	assert.Len(t, built.Constraints, 1)
	require.Contains(t, built.Vehicles, "car")
	assert.Len(t, built.Vehicles["car"].Wheels(), 4)
	assert.Equal(t, built.Bodies["chassis"].ID(), built.Vehicles["car"].Chassis())

	assert.Equal(t, 3, out.count("addObject"))
	assert.Equal(t, 1, out.count("registerMaterial"))
	assert.Equal(t, 1, out.count("addConstraint"))
	assert.Equal(t, 1, out.count("addVehicle"))
	assert.Equal(t, 4, out.count("addWheel"))
	assert.Equal(t, 1, out.count("applyEngineForce"))
	assert.Zero(t, out.count("setSteering"))

	for _, c := range out.cmds {
		if obj, ok := c.(protocol.AddObject); ok && obj.ID == built.Bodies["chassis"].ID() {
			assert.Len(t, obj.Children, 1)
		}
	}
}
