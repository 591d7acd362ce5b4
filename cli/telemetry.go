package cli

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ronbb/donut/bus"
	"github.com/ronbb/donut/otelx"
)

// telemetry bundles the OpenTelemetry providers a run wires its otelx
// handlers against, plus a shutdown func that flushes and tears them down.
type telemetry struct {
	tracer   trace.Tracer
	meter    metric.Meter
	shutdown func(context.Context) error
}

// setupTelemetry builds an OTLP/HTTP trace pipeline and an in-process
// metric pipeline, the way the teacher's daemon wires its own otel
// exporters at startup. The metric side uses a ManualReader rather than an
// OTLP metric exporter: this engine's go.mod carries the trace exporter
// only (no otlpmetric dependency). The reader is not kept past this
// function, so recorded metrics stay in process and are not exported.
func setupTelemetry(ctx context.Context, endpoint string) (*telemetry, error) {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("donut: starting otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return &telemetry{
		tracer: tp.Tracer("github.com/ronbb/donut/scheduler"),
		meter:  mp.Meter("github.com/ronbb/donut/scheduler"),
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		},
	}, nil
}

// wireTelemetry subscribes an otelx tracing handler and metrics handler to
// b, so every scheduler event also becomes a span and/or a metric record.
func wireTelemetry(t *telemetry, b bus.EventBus) (func(), error) {
	tracing := otelx.NewTracingHandler(t.tracer)
	metrics, err := otelx.NewMetricsHandler(t.meter)
	if err != nil {
		return nil, fmt.Errorf("donut: constructing metrics handler: %w", err)
	}

	sub := b.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub.Events() {
			tracing.Handle(e)
			metrics.Handle(e)
		}
	}()

	return func() {
		_ = sub.Close()
		<-done
	}, nil
}
