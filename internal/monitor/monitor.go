package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/physbridge/internal/influx"
	"github.com/OCAP2/physbridge/internal/session"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StatusFileName is written into the status directory on every tick.
const StatusFileName = "status.txt"

// WorldStats is implemented by the adapter.
type WorldStats interface {
	Bodies() int
	Constraints() int
	Vehicles() int
	Steps() int
	Contacts() int
	LastStepDuration() time.Duration
}

// RecorderStats is implemented by the worker manager.
type RecorderStats interface {
	LastWriteDuration() time.Duration
	QueueLengths() map[string]int
	Unassociated() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	State     *session.Context
	World     WorldStats
	Recorder  RecorderStats
	Influx    *influx.Manager
	StatusDir string
	Interval  time.Duration
	Logger    *slog.Logger
}

// Status is one snapshot of the running bridge.
type Status struct {
	Time          time.Time      `json:"time"`
	SessionName   string         `json:"sessionName"`
	SessionUUID   string         `json:"sessionUuid"`
	Step          int            `json:"step"`
	Bodies        int            `json:"bodies"`
	Constraints   int            `json:"constraints"`
	Vehicles      int            `json:"vehicles"`
	Contacts      int            `json:"contacts"`
	LastStepMs    float64        `json:"lastStepMs"`
	LastWriteMs   float64        `json:"lastWriteMs"`
	Unassociated  int            `json:"unassociated"`
	WriteQueues   map[string]int `json:"writeQueues,omitempty"`
	AdapterSteps  int            `json:"adapterSteps"`
	StepsInFlight int            `json:"stepsInFlight"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.State == nil {
		deps.State = session.NewContext()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Snapshot collects the current status.
func (s *Service) Snapshot() Status {
	sess := s.deps.State.Session()
	st := Status{
		Time:        time.Now(),
		SessionName: sess.Name,
		SessionUUID: sess.UUID,
		Step:        s.deps.State.Step(),
	}
	if w := s.deps.World; w != nil {
		st.Bodies = w.Bodies()
		st.Constraints = w.Constraints()
		st.Vehicles = w.Vehicles()
		st.Contacts = w.Contacts()
		st.LastStepMs = ms(w.LastStepDuration())
		st.AdapterSteps = w.Steps()
		st.StepsInFlight = st.Step - st.AdapterSteps
	}
	if r := s.deps.Recorder; r != nil {
		st.LastWriteMs = ms(r.LastWriteDuration())
		st.WriteQueues = r.QueueLengths()
		st.Unassociated = r.Unassociated()
	}
	return st
}

// GetProgramStatus renders a snapshot as the lines written to the status
// file.
func (s *Service) GetProgramStatus() (output []string, st Status) {
	st = s.Snapshot()
	output = append(output, fmt.Sprintf("session: %s (%s)", st.SessionName, st.SessionUUID))
	output = append(output, fmt.Sprintf("step: %d (adapter %d)", st.Step, st.AdapterSteps))

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(raw))
	return output, st
}

// Point turns a snapshot into a "status" measurement.
func Point(st Status) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("status").
		AddTag("session", st.SessionUUID).
		AddField("step", st.Step).
		AddField("bodies", st.Bodies).
		AddField("constraints", st.Constraints).
		AddField("vehicles", st.Vehicles).
		AddField("contacts", st.Contacts).
		AddField("last_step_ms", st.LastStepMs).
		AddField("last_write_ms", st.LastWriteMs).
		SetTime(st.Time)
	for table, n := range st.WriteQueues {
		p.AddField("queue_"+table, n)
	}
	return p
}

// Tick writes one status report.
func (s *Service) Tick(statusFile *os.File) {
	lines, st := s.GetProgramStatus()

	if statusFile != nil {
		if err := statusFile.Truncate(0); err == nil {
			_, _ = statusFile.Seek(0, 0)
			for _, line := range lines {
				_, _ = statusFile.WriteString(line + "\n")
			}
		}
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(influx.BucketStatus, Point(st)); err != nil {
			s.deps.Logger.Debug("Error writing status point", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			f, err := os.Create(filepath.Join(s.deps.StatusDir, StatusFileName))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				statusFile = f
				defer f.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Tick(statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
