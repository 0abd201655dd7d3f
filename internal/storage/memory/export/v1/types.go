// Package v1 contains the v1 export format for recorded sessions.
package v1

// Export is the root JSON structure for v1 format.
type Export struct {
	Version       int          `json:"version"`
	SessionName   string       `json:"sessionName"`
	SessionUUID   string       `json:"sessionUuid"`
	Tags          string       `json:"tags"`
	StartTime     string       `json:"startTime"`
	FixedTimeStep float64      `json:"fixedTimeStep"`
	Broadphase    string       `json:"broadphase"`
	Gravity       []float64    `json:"gravity"`
	EndStep       int          `json:"endStep"`
	Bodies        []Entity     `json:"bodies"`
	Constraints   []Constraint `json:"constraints"`
	Vehicles      []Vehicle    `json:"vehicles"`
	Events        [][]any      `json:"events"`
	Steps         [][]any      `json:"steps"`
}

// Entity is one rigid body and its sampled states.
// Frames: [step, [px,py,pz], [qx,qy,qz,qw], [lvx,lvy,lvz], [avx,avy,avz]]
type Entity struct {
	ID           uint64  `json:"id"`
	Shape        string  `json:"shape"`
	Children     int     `json:"children,omitempty"`
	Mass         float64 `json:"mass"`
	Material     uint64  `json:"material,omitempty"`
	StartStepNum int     `json:"startStepNum"`
	EndStepNum   int     `json:"endStepNum,omitempty"`
	Frames       [][]any `json:"frames"`
}

// Constraint is one joint and its sampled anchors.
// Frames: [step, [ax,ay,az], impulse]
type Constraint struct {
	ID           uint64  `json:"id"`
	Type         string  `json:"type"`
	BodyA        uint64  `json:"bodyA"`
	BodyB        uint64  `json:"bodyB,omitempty"`
	StartStepNum int     `json:"startStepNum"`
	EndStepNum   int     `json:"endStepNum,omitempty"`
	Frames       [][]any `json:"frames"`
}

// Vehicle is one raycast vehicle.
// Frames: [step, wheel, [px,py,pz], [qx,qy,qz,qw]]
type Vehicle struct {
	ID           uint64  `json:"id"`
	Chassis      uint64  `json:"chassis"`
	StartStepNum int     `json:"startStepNum"`
	EndStepNum   int     `json:"endStepNum,omitempty"`
	Frames       [][]any `json:"frames"`
}
