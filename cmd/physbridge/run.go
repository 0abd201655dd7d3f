package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/OCAP2/physbridge/internal/api"
	"github.com/OCAP2/physbridge/internal/bridge"
	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/internal/dispatcher"
	"github.com/OCAP2/physbridge/internal/ident"
	"github.com/OCAP2/physbridge/internal/influx"
	"github.com/OCAP2/physbridge/internal/logging"
	"github.com/OCAP2/physbridge/internal/monitor"
	intOtel "github.com/OCAP2/physbridge/internal/otel"
	"github.com/OCAP2/physbridge/internal/protocol"
	"github.com/OCAP2/physbridge/internal/scenario"
	"github.com/OCAP2/physbridge/internal/scene"
	"github.com/OCAP2/physbridge/internal/session"
	"github.com/OCAP2/physbridge/internal/storage"
	"github.com/OCAP2/physbridge/internal/worker"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
)

// eventSink logs scene events and counts collision begins.
type eventSink struct {
	scene.NopSink
	logger     *slog.Logger
	collisions atomic.Int64
}

func (s *eventSink) WorldReady() {
	s.logger.Info("world ready")
}

func (s *eventSink) Ready(id ident.ID) {
	s.logger.Debug("body ready", "id", id)
}

func (s *eventSink) Collision(id, other ident.ID, relLin, relAng, normal mgl64.Vec3) {
	s.collisions.Add(1)
	s.logger.Debug("collision",
		"id", id,
		"other", other,
		"relativeVelocity", relLin.Len(),
		"normal", normal)
}

// sessionAttrs reads the current session lazily so the logger can be set
// up before the session exists.
func sessionAttrs(state *session.Context) logging.ContextProvider {
	return func() []slog.Attr {
		s := state.Session()
		if s == nil {
			return nil
		}
		return logging.SessionAttrs(s.UUID, state.Step)()
	}
}

// bridgeConfig combines the physics section of the config file with the
// scenario's own settings.
func bridgeConfig(pc config.PhysicsConfig, sc *scenario.Scenario) bridge.Config {
	cfg := bridge.DefaultConfig()
	if pc.FixedTimeStep > 0 {
		cfg.Scene.FixedTimeStep = pc.FixedTimeStep
		cfg.Adapter.FixedTimeStep = pc.FixedTimeStep
	}
	if pc.ReportSize > 0 {
		cfg.Scene.ReportSize = pc.ReportSize
		cfg.Adapter.ReportSize = pc.ReportSize
	}
	if pc.ReportChunk > 0 {
		cfg.Adapter.ReportChunk = pc.ReportChunk
	}
	if pc.Broadphase != "" {
		cfg.Scene.Broadphase = pc.Broadphase
		cfg.Adapter.Broadphase = pc.Broadphase
	}
	cfg.Scene.AabbMin = pc.AabbMin
	cfg.Scene.AabbMax = pc.AabbMax
	cfg.Scene.RateLimit = pc.RateLimit
	cfg.Adapter.RateLimit = pc.RateLimit
	cfg.Gravity = pc.Gravity
	cfg.Adapter.Gravity = pc.Gravity
	if pc.QueueSize > 0 {
		cfg.BufferSize = pc.QueueSize
	}
	sc.Configure(&cfg)
	return cfg
}

func runScenario(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	state := session.NewContext()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{Level: "info"})
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, AppName, start), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	var otelWriter io.Writer
	if config.GetOTelConfig().Enabled {
		f, err := os.Create(logging.LogFilePath(logsDir, AppName+".otel", start))
		if err != nil {
			return fmt.Errorf("failed to open otel log file: %w", err)
		}
		defer f.Close()
		otelWriter = f
	}
	provider, err := intOtel.New(intOtel.FromConfig(config.GetOTelConfig(), otelWriter, ""))
	if err != nil {
		return fmt.Errorf("failed to set up otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	slogManager.Setup(logging.Options{
		File:        logFile,
		Level:       config.GetString("logLevel"),
		Provider:    provider.LoggerProvider(),
		ServiceName: config.GetOTelConfig().ServiceName,
		Context:     sessionAttrs(state),
	})
	logger = slogManager.Logger()

	sc, err := scenario.Load(scenarioPth)
	if err != nil {
		return err
	}
	n := sc.Steps
	if steps > 0 {
		n = steps
	}

	zl := logging.NewZerolog(logFile, config.GetString("logLevel"), "dispatcher")
	disp, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	backend, err := storage.NewBackend(config.GetStorageConfig(), logger.With("component", "storage"))
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer backend.Close()

	recorder := worker.NewManager(worker.Dependencies{
		Backend: backend,
		State:   state,
		Logger:  logger.With("component", "recorder"),
	})
	recorder.RegisterHandlers(disp)

	influxManager := influx.NewManager(config.GetInfluxConfig(), logging.NewZerolog(logFile, config.GetString("logLevel"), "influx"))
	if err := influxManager.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			logger.Warn("InfluxDB unavailable", "error", err)
		}
		influxManager = nil
	} else {
		influxManager.RegisterHandlers(disp, state)
		defer influxManager.Close()
	}

	if commandLog != "" {
		f, err := os.Create(commandLog)
		if err != nil {
			return fmt.Errorf("failed to create command log: %w", err)
		}
		defer f.Close()
		lw := protocol.NewLogWriter(f)
		disp.Register(bridge.TopicCommand, func(e dispatcher.Event) error {
			c, ok := e.Payload.(protocol.Command)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Topic)
			}
			return lw.Write(c)
		}, dispatcher.Buffered(10000))
		defer func() { logger.Info("command log written", "path", commandLog, "commands", lw.Count()) }()
	}

	sink := &eventSink{logger: logger}
	sess, err := bridge.New(bridgeConfig(config.GetPhysicsConfig(), sc), sink, disp, state, logger)
	if err != nil {
		return err
	}
	if err := recorder.StartSession(sess.Info()); err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}

	mc := config.GetMonitorConfig()
	var mon *monitor.Service
	if mc.Enabled {
		mon = monitor.NewService(monitor.Dependencies{
			State:     state,
			World:     sess.Adapter(),
			Recorder:  recorder,
			Influx:    influxManager,
			StatusDir: mc.StatusDir,
			Interval:  mc.Interval,
			Logger:    logger.With("component", "monitor"),
		})
		if err := mon.Start(); err != nil {
			logger.Warn("Failed to start monitor", "error", err)
		}
	}

	runErr := simulate(ctx, sess, sc, n, logger)

	if mon != nil {
		mon.Stop()
	}
	if err := sess.Close(); err != nil && runErr == nil {
		runErr = err
	}
	disp.Close()
	if err := recorder.EndSession(); err != nil {
		logger.Error("Failed to end session", "error", err)
	}

	logger.Info("session finished",
		"steps", state.Step(),
		"collisions", sink.collisions.Load(),
		"elapsed", time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, %d collision events\n", sess.Info().Name, state.Step(), sink.collisions.Load())

	if upload {
		if err := uploadExport(ctx, backend); err != nil {
			logger.Error("Upload failed", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}

func simulate(ctx context.Context, sess *bridge.Session, sc *scenario.Scenario, n int, logger *slog.Logger) error {
	built, err := sc.Build(sess.Scene())
	if err != nil {
		return err
	}
	logger.Info("scenario built",
		"bodies", len(built.Bodies),
		"constraints", len(built.Constraints),
		"vehicles", len(built.Vehicles),
		"steps", n)

	for i := 0; i < n; i++ {
		if err := sess.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("interrupted", "step", i)
				return nil
			}
			return err
		}
	}
	return nil
}

func uploadExport(ctx context.Context, backend storage.Backend) error {
	u, ok := backend.(storage.Uploadable)
	if !ok {
		return fmt.Errorf("storage backend %T produces no export", backend)
	}
	ac := config.GetAPIConfig()
	return api.New(ac.ServerURL, ac.APIKey).UploadExport(ctx, u)
}
