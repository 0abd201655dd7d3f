package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/physbridge/internal/adapter"

type metrics struct {
	steps        metric.Int64Counter
	subSteps     metric.Int64Counter
	stepDuration metric.Float64Histogram
	processed    metric.Int64Counter
	bodies       metric.Int64ObservableGauge
}

// newMetrics uses the global meter provider, a no-op unless telemetry
// was set up.
func newMetrics(a *Adapter) (*metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}

	var err error
	m.steps, err = meter.Int64Counter(
		"adapter.steps",
		metric.WithDescription("Simulate commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	m.subSteps, err = meter.Int64Counter(
		"adapter.substeps",
		metric.WithDescription("Fixed sub-steps taken by the world"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating substeps counter: %w", err)
	}

	m.stepDuration, err = meter.Float64Histogram(
		"adapter.step.duration",
		metric.WithDescription("Wall time of one simulate including reports"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step duration histogram: %w", err)
	}

	m.processed, err = meter.Int64Counter(
		"adapter.commands.processed",
		metric.WithDescription("Commands handled by the adapter"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	m.bodies, err = meter.Int64ObservableGauge(
		"adapter.bodies",
		metric.WithDescription("Bodies registered in the world"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bodies gauge: %w", err)
	}
	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.bodies, int64(a.bodies.Len()))
			return nil
		},
		m.bodies,
	)
	if err != nil {
		return nil, fmt.Errorf("registering bodies callback: %w", err)
	}

	return m, nil
}

func (m *metrics) command(name string) {
	m.processed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", name)))
}

func (m *metrics) step(d time.Duration, subSteps int) {
	ctx := context.Background()
	m.steps.Add(ctx, 1)
	m.subSteps.Add(ctx, int64(subSteps))
	m.stepDuration.Record(ctx, float64(d.Microseconds())/1000)
}
