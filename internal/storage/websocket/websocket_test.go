package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/OCAP2/physbridge/pkg/streaming"
)

// testServer upgrades to WebSocket, records received messages and acks
// start_session/end_session. dropFirst closes the first connection right
// after its first message.
func testServer(t *testing.T, dropFirst bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.secret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		n := conns.Add(1)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
			if dropFirst && n == 1 {
				return
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secrets  []string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) secret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets = append(m.secrets, s)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()
	assert.True(t, b.Connected())

	require.NoError(t, b.StartSession(&core.Session{UUID: "s-1", Name: "drop"}))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "s-1", start.Session.UUID)
	assert.Equal(t, []string{"test"}, ml.secrets)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{UUID: "s"}))
	require.NoError(t, b.AddBody(&core.Body{EntityID: 1}))
	require.NoError(t, b.AddConstraint(&core.Constraint{EntityID: 2}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{EntityID: 3}))
	require.NoError(t, b.RecordBodyState(&core.BodyState{EntityID: 1, Step: 1}))
	require.NoError(t, b.RecordConstraintState(&core.ConstraintState{EntityID: 2}))
	require.NoError(t, b.RecordWheelState(&core.WheelState{VehicleID: 3}))
	require.NoError(t, b.RecordCollision(&core.Collision{BodyA: 1, BodyB: 4}))
	require.NoError(t, b.RecordCommand(&core.CommandLog{Name: "simulate", Payload: []byte{1, 2}}))
	require.NoError(t, b.RecordStepMetric(&core.StepMetric{Step: 1}))
	require.NoError(t, b.RecordRemoval(&core.Removal{EntityID: 3, Kind: core.RemovedVehicle}))
	require.NoError(t, b.EndSession())

	// end_session is acked after everything queued before it was read
	for _, typ := range []string{
		streaming.TypeAddBody,
		streaming.TypeAddConstraint,
		streaming.TypeAddVehicle,
		streaming.TypeBodyState,
		streaming.TypeConstraintState,
		streaming.TypeWheelState,
		streaming.TypeCollision,
		streaming.TypeCommand,
		streaming.TypeStepMetric,
		streaming.TypeRemoval,
	} {
		assert.Equal(t, 1, ml.count(typ), typ)
	}

	for _, env := range ml.all() {
		if env.Type == streaming.TypeCommand {
			var p streaming.CommandPayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			assert.Equal(t, "simulate", p.Name)
			assert.Equal(t, 2, p.Size)
		}
	}
	assert.Zero(t, b.Dropped())
}

func TestReconnectReplaysStartSession(t *testing.T) {
	srv, ml := testServer(t, true)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	b.conn.backoff = 10 * time.Millisecond
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{UUID: "replayed"}))

	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeStartSession) == 2 && b.Connected()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.EndSession())
}

func TestInit_DialFailure(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1/ws"}, nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
	assert.NoError(t, b.Close())
}

func TestInit_BadURL(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "://nope"}, nil)
	assert.ErrorContains(t, b.Init(), "invalid websocket URL")
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeRemoval, core.Removal{EntityID: 7, Kind: core.RemovedBody})
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "removal", env.Type)
	assert.JSONEq(t, `{"entityId":7,"kind":"body","time":"0001-01-01T00:00:00Z","step":0}`, string(env.Payload))
}
