// Package streaming defines the JSON envelopes a live viewer receives
// over the websocket recorder.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/physbridge/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession    = "start_session"
	TypeEndSession      = "end_session"
	TypeAddBody         = "add_body"
	TypeAddConstraint   = "add_constraint"
	TypeAddVehicle      = "add_vehicle"
	TypeRemoval         = "removal"
	TypeBodyState       = "body_state"
	TypeConstraintState = "constraint_state"
	TypeWheelState      = "wheel_state"
	TypeCollision       = "collision"
	TypeCommand         = "command"
	TypeStepMetric      = "step_metric"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload opens a stream.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// CommandPayload carries a recorded command without its binary payload,
// which viewers have no use for.
type CommandPayload struct {
	Step int    `json:"step"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// NewCommandPayload strips the encoded body from c.
func NewCommandPayload(c *core.CommandLog) CommandPayload {
	return CommandPayload{Step: c.Step, Name: c.Name, Size: len(c.Payload)}
}
