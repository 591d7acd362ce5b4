package otelx

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ronbb/donut/events"
)

// MetricsHandler translates scheduler events into OpenTelemetry metrics,
// grounded on petalflow's otel.MetricsHandler.
type MetricsHandler struct {
	nodeSteps     metric.Int64Counter
	cursorFailed  metric.Int64Counter
	fanOutCount   metric.Int64Histogram
	cursorElapsed metric.Float64Histogram
	runElapsed    metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler bound to meter's instruments.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	nodeSteps, err := meter.Int64Counter("donut.node.steps",
		metric.WithDescription("Number of node scripts entered"))
	if err != nil {
		return nil, err
	}
	cursorFailed, err := meter.Int64Counter("donut.cursor.failures",
		metric.WithDescription("Number of cursors that exited on an unrecovered script error"))
	if err != nil {
		return nil, err
	}
	fanOutCount, err := meter.Int64Histogram("donut.parallel.fan_out_size",
		metric.WithDescription("Number of children spawned per Parallel directive"))
	if err != nil {
		return nil, err
	}
	cursorElapsed, err := meter.Float64Histogram("donut.cursor.duration",
		metric.WithDescription("Duration of a cursor's lifetime in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	runElapsed, err := meter.Float64Histogram("donut.run.duration",
		metric.WithDescription("Duration of a procedure run in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		nodeSteps:     nodeSteps,
		cursorFailed:  cursorFailed,
		fanOutCount:   fanOutCount,
		cursorElapsed: cursorElapsed,
		runElapsed:    runElapsed,
	}, nil
}

// Handle records the metric, if any, implied by e.
func (h *MetricsHandler) Handle(e events.Event) {
	switch e.Kind {
	case events.KindNodeEntered:
		h.nodeSteps.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("procedure", e.Procedure),
			attribute.String("executable", e.Executable),
		))
	case events.KindParallelFanOut:
		count, _ := e.Payload["count"].(int)
		h.fanOutCount.Record(context.Background(), int64(count), metric.WithAttributes(
			attribute.String("procedure", e.Procedure),
		))
	case events.KindCursorFailed:
		h.cursorFailed.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("procedure", e.Procedure),
		))
	case events.KindCursorCompleted, events.KindCursorBubbled:
		h.cursorElapsed.Record(context.Background(), e.Elapsed.Seconds(), metric.WithAttributes(
			attribute.String("procedure", e.Procedure),
		))
	case events.KindProcedureFinished:
		h.runElapsed.Record(context.Background(), e.Elapsed.Seconds(), metric.WithAttributes(
			attribute.String("procedure", e.Procedure),
		))
	}
}
