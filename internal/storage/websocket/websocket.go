// Package websocket streams a session live to a viewer as JSON envelopes.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/OCAP2/physbridge/pkg/streaming"
)

// Backend implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
}

func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

func (b *Backend) Close() error {
	return b.conn.close()
}

// Connected reports whether a socket is currently up.
func (b *Backend) Connected() bool { return b.conn.connected() }

// Dropped counts messages lost to a full queue or a failed write.
func (b *Backend) Dropped() int64 { return b.conn.dropped.Load() }

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope is fire-and-forget.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session header and waits for the server ack. The
// header is kept for replay after a reconnect.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.conn.setHeader(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	b.conn.setHeader(nil)
	return err
}

func (b *Backend) AddBody(body *core.Body) error {
	return b.sendEnvelope(streaming.TypeAddBody, body)
}

func (b *Backend) AddConstraint(c *core.Constraint) error {
	return b.sendEnvelope(streaming.TypeAddConstraint, c)
}

func (b *Backend) AddVehicle(v *core.Vehicle) error {
	return b.sendEnvelope(streaming.TypeAddVehicle, v)
}

func (b *Backend) RecordRemoval(r *core.Removal) error {
	return b.sendEnvelope(streaming.TypeRemoval, r)
}

func (b *Backend) RecordBodyState(s *core.BodyState) error {
	return b.sendEnvelope(streaming.TypeBodyState, s)
}

func (b *Backend) RecordConstraintState(s *core.ConstraintState) error {
	return b.sendEnvelope(streaming.TypeConstraintState, s)
}

func (b *Backend) RecordWheelState(s *core.WheelState) error {
	return b.sendEnvelope(streaming.TypeWheelState, s)
}

func (b *Backend) RecordCollision(c *core.Collision) error {
	return b.sendEnvelope(streaming.TypeCollision, c)
}

// RecordCommand streams the command name only.
func (b *Backend) RecordCommand(c *core.CommandLog) error {
	return b.sendEnvelope(streaming.TypeCommand, streaming.NewCommandPayload(c))
}

func (b *Backend) RecordStepMetric(m *core.StepMetric) error {
	return b.sendEnvelope(streaming.TypeStepMetric, m)
}
