package sim

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/railsim/formation/internal/sim"

type metrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	flushes      metric.Int64Counter
	flushTime    metric.Float64Histogram
}

// newMetrics creates the simulation instruments on the global meter provider
// (no-op if not configured).
func newMetrics(s *Simulation) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Total simulation ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.tickDuration, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Time spent advancing all formations one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}

	out.flushes, err = m.Int64Counter(
		"sim.flushes",
		metric.WithDescription("Total flushes to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flush counter: %w", err)
	}

	out.flushTime, err = m.Float64Histogram(
		"sim.flush.duration",
		metric.WithDescription("Time spent writing state to storage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flush histogram: %w", err)
	}

	formations, err := m.Int64ObservableGauge(
		"sim.formations",
		metric.WithDescription("Live formations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating formations gauge: %w", err)
	}
	cars, err := m.Int64ObservableGauge(
		"sim.cars",
		metric.WithDescription("Live cars"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cars gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(formations, int64(s.FormationCount()))
			o.ObserveInt64(cars, int64(s.cars.Len()))
			return nil
		},
		formations, cars,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return out, nil
}

func (m *metrics) recordTick(d time.Duration) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	m.tickDuration.Record(ctx, float64(d.Microseconds())/1000)
}

func (m *metrics) recordFlush(d time.Duration, err error) {
	ctx := context.Background()
	m.flushes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
	m.flushTime.Record(ctx, float64(d.Microseconds())/1000)
}
