// Package model holds the gorm tables the database recorders write.
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is every table, in migration order.
var DatabaseModels = []any{
	&Session{},
	&Body{},
	&Constraint{},
	&Vehicle{},
	&Removal{},
	&BodyState{},
	&ConstraintState{},
	&WheelState{},
	&Collision{},
	&CommandLog{},
	&StepMetric{},
}

// Vec3 and Quat are stored as plain columns through embedded prefixes.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w" gorm:"default:1"`
}

// Session is one bridge run.
type Session struct {
	gorm.Model
	UUID          string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Name          string         `json:"name" gorm:"size:200"`
	Tag           string         `json:"tag" gorm:"size:127"`
	StartTime     time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime       *time.Time     `json:"endTime" gorm:"type:timestamptz;default:NULL"`
	FixedTimeStep float64        `json:"fixedTimeStep"`
	Broadphase    string         `json:"broadphase" gorm:"size:16"`
	Gravity       Vec3           `json:"gravity" gorm:"embedded;embeddedPrefix:gravity_"`
	ReportSize    int            `json:"reportSize"`
	Settings      datatypes.JSON `json:"settings" gorm:"type:jsonb;default:'{}'"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Body uses the composite primary key (SessionID, EntityID); entity ids
// restart with every session.
type Body struct {
	SessionID      uint      `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	EntityID       uint64    `json:"entityId" gorm:"primaryKey;autoIncrement:false"`
	Session        Session   `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time           time.Time `json:"time" gorm:"type:timestamptz"`
	Step           int       `json:"step"`
	Shape          string    `json:"shape" gorm:"size:32"`
	Children       int       `json:"children" gorm:"default:0"`
	Mass           float64   `json:"mass"`
	Position       Vec3      `json:"position" gorm:"embedded;embeddedPrefix:pos_"`
	Rotation       Quat      `json:"rotation" gorm:"embedded;embeddedPrefix:rot_"`
	MaterialID     uint64    `json:"materialId"`
	CollisionFlags int       `json:"collisionFlags" gorm:"default:0"`
}

func (*Body) TableName() string {
	return "bodies"
}

type Constraint struct {
	SessionID uint      `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	EntityID  uint64    `json:"entityId" gorm:"primaryKey;autoIncrement:false"`
	Session   Session   `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	Type      string    `json:"type" gorm:"size:16"`
	BodyA     uint64    `json:"bodyA"`
	BodyB     uint64    `json:"bodyB" gorm:"default:0"`
	PositionA Vec3      `json:"positionA" gorm:"embedded;embeddedPrefix:pos_a_"`
	PositionB Vec3      `json:"positionB" gorm:"embedded;embeddedPrefix:pos_b_"`
}

func (*Constraint) TableName() string {
	return "constraints"
}

type Vehicle struct {
	SessionID uint      `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	EntityID  uint64    `json:"entityId" gorm:"primaryKey;autoIncrement:false"`
	Session   Session   `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	Chassis   uint64    `json:"chassis"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// Removal marks when a body, joint or vehicle left the scene.
type Removal struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_removal_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	EntityID  uint64    `json:"entityId"`
	Kind      string    `json:"kind" gorm:"size:16"`
}

func (*Removal) TableName() string {
	return "removals"
}

// BodyState is one world report record.
type BodyState struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID       uint      `json:"sessionId" gorm:"index:idx_bodystate_session_id"`
	Session         Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time            time.Time `json:"time" gorm:"type:timestamptz"`
	Step            int       `json:"step" gorm:"index:idx_bodystate_step"`
	EntityID        uint64    `json:"entityId" gorm:"index:idx_bodystate_entity_id"`
	Position        Vec3      `json:"position" gorm:"embedded;embeddedPrefix:pos_"`
	Rotation        Quat      `json:"rotation" gorm:"embedded;embeddedPrefix:rot_"`
	LinearVelocity  Vec3      `json:"linearVelocity" gorm:"embedded;embeddedPrefix:lin_vel_"`
	AngularVelocity Vec3      `json:"angularVelocity" gorm:"embedded;embeddedPrefix:ang_vel_"`
}

func (*BodyState) TableName() string {
	return "body_states"
}

type ConstraintState struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID      uint      `json:"sessionId" gorm:"index:idx_constraintstate_session_id"`
	Session        Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time           time.Time `json:"time" gorm:"type:timestamptz"`
	Step           int       `json:"step"`
	EntityID       uint64    `json:"entityId"`
	BodyA          uint64    `json:"bodyA"`
	Anchor         Vec3      `json:"anchor" gorm:"embedded;embeddedPrefix:anchor_"`
	AppliedImpulse float64   `json:"appliedImpulse"`
}

func (*ConstraintState) TableName() string {
	return "constraint_states"
}

type WheelState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_wheelstate_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	VehicleID uint64    `json:"vehicleId"`
	Wheel     int       `json:"wheel"`
	Position  Vec3      `json:"position" gorm:"embedded;embeddedPrefix:pos_"`
	Rotation  Quat      `json:"rotation" gorm:"embedded;embeddedPrefix:rot_"`
}

func (*WheelState) TableName() string {
	return "wheel_states"
}

// Collision is one contact pair. Normal points from B towards A.
type Collision struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_collision_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	BodyA     uint64    `json:"bodyA"`
	BodyB     uint64    `json:"bodyB"`
	Normal    Vec3      `json:"normal" gorm:"embedded;embeddedPrefix:normal_"`
}

func (*Collision) TableName() string {
	return "collisions"
}

// CommandLog keeps the encoded command so a session can be replayed.
type CommandLog struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_commandlog_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Step      int       `json:"step"`
	Name      string    `json:"name" gorm:"size:48"`
	Payload   []byte    `json:"payload"`
}

func (*CommandLog) TableName() string {
	return "command_logs"
}

type StepMetric struct {
	Time        time.Time `json:"time" gorm:"type:timestamptz;index:idx_time"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_stepmetric_session_id"`
	Session     Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Step        int       `json:"step"`
	DurationMs  float64   `json:"durationMs"`
	SubSteps    int       `json:"subSteps"`
	Bodies      int       `json:"bodies"`
	Contacts    int       `json:"contacts"`
	Constraints int       `json:"constraints"`
}

func (*StepMetric) TableName() string {
	return "step_metrics"
}
