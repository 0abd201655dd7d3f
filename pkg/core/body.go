package core

import "time"

// Body is recorded when a rigid body is added to the scene.
type Body struct {
	EntityID       uint64    `json:"entityId"`
	Time           time.Time `json:"time"`
	Step           int       `json:"step"`
	Shape          string    `json:"shape"`
	Children       int       `json:"children"`
	Mass           float64   `json:"mass"`
	Position       Vec3      `json:"position"`
	Rotation       Quat      `json:"rotation"`
	MaterialID     uint64    `json:"materialId"`
	CollisionFlags int       `json:"collisionFlags"`
}

// Removal kinds.
const (
	RemovedBody       = "body"
	RemovedConstraint = "constraint"
	RemovedVehicle    = "vehicle"
)

// Removal records an entity leaving the scene.
type Removal struct {
	EntityID uint64    `json:"entityId"`
	Kind     string    `json:"kind"`
	Time     time.Time `json:"time"`
	Step     int       `json:"step"`
}

// Constraint is recorded when a joint is added.
type Constraint struct {
	EntityID  uint64    `json:"entityId"`
	Type      string    `json:"type"`
	BodyA     uint64    `json:"bodyA"`
	BodyB     uint64    `json:"bodyB"` // 0 for a joint pinned to the world
	PositionA Vec3      `json:"positionA"`
	PositionB Vec3      `json:"positionB"`
	Time      time.Time `json:"time"`
	Step      int       `json:"step"`
}

// Vehicle is recorded when a raycast vehicle is created on a chassis.
type Vehicle struct {
	EntityID uint64    `json:"entityId"`
	Chassis  uint64    `json:"chassis"`
	Time     time.Time `json:"time"`
	Step     int       `json:"step"`
}
