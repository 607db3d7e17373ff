package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/railsim/formation/internal/dispatcher"

// instruments are the dispatcher's OTel metrics, all keyed by command.
type instruments struct {
	queued    metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

func newInstruments(m metric.Meter, depths func(observe func(command string, depth int))) (*instruments, error) {
	var (
		in  instruments
		err error
	)
	if in.queued, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler's queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(command string, depth int) {
			o.ObserveInt64(in.queued, int64(depth), commandAttr(command))
		})
		return nil
	}, in.queued); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	if in.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events whose handler ran")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Events whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events rejected by a full non-blocking queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return &in, nil
}

func commandAttr(command string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("command", command))
}

func globalMeter() metric.Meter {
	return otel.Meter(meterName)
}
