package core

import "time"

// Collision is one contact pair from a collision report. Normal points
// from B towards A.
type Collision struct {
	BodyA  uint64    `json:"bodyA"`
	BodyB  uint64    `json:"bodyB"`
	Step   int       `json:"step"`
	Time   time.Time `json:"time"`
	Normal Vec3      `json:"normal"`
}

// CommandLog is a command the scene sent, encoded with the protocol codec.
type CommandLog struct {
	Step    int       `json:"step"`
	Time    time.Time `json:"time"`
	Name    string    `json:"name"`
	Payload []byte    `json:"payload"`
}
