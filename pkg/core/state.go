package core

import "time"

// BodyState is one world report record.
type BodyState struct {
	EntityID        uint64    `json:"entityId"`
	Step            int       `json:"step"`
	Time            time.Time `json:"time"`
	Position        Vec3      `json:"position"`
	Rotation        Quat      `json:"rotation"`
	LinearVelocity  Vec3      `json:"linearVelocity"`
	AngularVelocity Vec3      `json:"angularVelocity"`
}

// ConstraintState is one constraint report record. Anchor is in world space.
type ConstraintState struct {
	EntityID       uint64    `json:"entityId"`
	BodyA          uint64    `json:"bodyA"`
	Step           int       `json:"step"`
	Time           time.Time `json:"time"`
	Anchor         Vec3      `json:"anchor"`
	AppliedImpulse float64   `json:"appliedImpulse"`
}

// WheelState is one vehicle report record.
type WheelState struct {
	VehicleID uint64    `json:"vehicleId"`
	Wheel     int       `json:"wheel"`
	Step      int       `json:"step"`
	Time      time.Time `json:"time"`
	Position  Vec3      `json:"position"`
	Rotation  Quat      `json:"rotation"`
}

// StepMetric describes how long one simulate request took.
type StepMetric struct {
	Step        int           `json:"step"`
	Time        time.Time     `json:"time"`
	Duration    time.Duration `json:"duration"`
	SubSteps    int           `json:"subSteps"`
	Bodies      int           `json:"bodies"`
	Contacts    int           `json:"contacts"`
	Constraints int           `json:"constraints"`
}
