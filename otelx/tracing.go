// Package otelx translates scheduler events into OpenTelemetry spans and
// metrics, grounded on petalflow's otel.TracingHandler/MetricsHandler but
// adapted to this engine's run/cursor/node span hierarchy: a fan-out
// introduces one span per child cursor, and a Select race is recorded as a
// span event on the parent rather than a child span of its own.
package otelx

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ronbb/donut/events"
)

// TracingHandler translates scheduler events into OpenTelemetry spans. It
// keeps one span per run (keyed by RunID) and one span per cursor (keyed
// by RunID:CursorID), ending each when its owning run/cursor terminates.
type TracingHandler struct {
	tracer trace.Tracer

	mu         sync.RWMutex
	runSpans   map[string]trace.Span
	runCtxs    map[string]context.Context
	cursorSpan map[string]trace.Span
	cursorCtx  map[string]context.Context
}

// NewTracingHandler creates a TracingHandler that starts spans on tracer.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:     tracer,
		runSpans:   make(map[string]trace.Span),
		runCtxs:    make(map[string]context.Context),
		cursorSpan: make(map[string]trace.Span),
		cursorCtx:  make(map[string]context.Context),
	}
}

// Handle processes one scheduler event, creating or ending spans as
// appropriate. It is suitable as a bus.EventBus subscriber callback.
func (h *TracingHandler) Handle(e events.Event) {
	switch e.Kind {
	case events.KindProcedureStarted:
		h.handleProcedureStarted(e)
	case events.KindNodeEntered:
		h.handleCursorStep(e)
	case events.KindParallelFanOut:
		h.handleFanOut(e)
	case events.KindParallelJoined:
		h.handleSpanEvent(e)
	case events.KindSelectWon:
		h.handleSpanEvent(e)
	case events.KindWaitScheduled:
		h.handleSpanEvent(e)
	case events.KindCursorCompleted:
		h.handleCursorEnd(e, codes.Ok, "")
	case events.KindCursorBubbled:
		h.handleSpanEvent(e)
		h.handleCursorEnd(e, codes.Ok, "")
	case events.KindCursorFailed:
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		h.handleCursorEnd(e, codes.Error, msg)
	case events.KindProcedureFinished:
		h.handleProcedureFinished(e)
	}
}

func (h *TracingHandler) handleProcedureStarted(e events.Event) {
	ctx, span := h.tracer.Start(context.Background(), "run:"+e.Procedure,
		trace.WithAttributes(
			attribute.String("donut.run_id", e.RunID),
			attribute.String("donut.procedure", e.Procedure),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()

	h.startCursorSpan(e, e.CursorID)
}

// handleFanOut starts a span per child cursor; children are named in
// e.Payload["children"] as a []string of cursor IDs.
func (h *TracingHandler) handleFanOut(e events.Event) {
	h.handleSpanEvent(e)

	children, _ := e.Payload["children"].([]string)
	for _, childID := range children {
		h.startCursorSpan(e, childID)
	}
}

func (h *TracingHandler) startCursorSpan(e events.Event, cursorID string) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()
	if !ok {
		parentCtx = context.Background()
	}

	ctx, span := h.tracer.Start(parentCtx, "cursor:"+cursorID,
		trace.WithAttributes(
			attribute.String("donut.run_id", e.RunID),
			attribute.String("donut.cursor_id", cursorID),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + cursorID
	h.mu.Lock()
	h.cursorSpan[key] = span
	h.cursorCtx[key] = ctx
	h.mu.Unlock()
}

// handleCursorStep adds a span event for every node entered by a cursor,
// rather than opening a new span per node (a cursor's span spans its
// whole traversal, the way a petalflow node span spans one node only —
// this engine's cursors can visit many nodes per fan branch).
func (h *TracingHandler) handleCursorStep(e events.Event) {
	key := e.RunID + ":" + e.CursorID
	h.mu.RLock()
	span, ok := h.cursorSpan[key]
	h.mu.RUnlock()
	if !ok {
		return
	}
	span.AddEvent("node:"+e.Executable, trace.WithTimestamp(e.Time),
		trace.WithAttributes(attribute.String("donut.executable", e.Executable)))
}

func (h *TracingHandler) handleSpanEvent(e events.Event) {
	key := e.RunID + ":" + e.CursorID
	h.mu.RLock()
	span, ok := h.cursorSpan[key]
	h.mu.RUnlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("donut.event_kind", e.Kind.String())}
	if e.Executable != "" {
		attrs = append(attrs, attribute.String("donut.executable", e.Executable))
	}
	span.AddEvent(e.Kind.String(), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

func (h *TracingHandler) handleCursorEnd(e events.Event, status codes.Code, msg string) {
	key := e.RunID + ":" + e.CursorID
	h.mu.Lock()
	span, ok := h.cursorSpan[key]
	if ok {
		delete(h.cursorSpan, key)
		delete(h.cursorCtx, key)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("donut.elapsed", e.Elapsed.String()))
	if status == codes.Error {
		span.SetStatus(codes.Error, msg)
		span.RecordError(spanError(msg), trace.WithTimestamp(e.Time))
	} else {
		span.SetStatus(status, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) handleProcedureFinished(e events.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("donut.elapsed", e.Elapsed.String()))
	if e.Err != nil {
		span.SetStatus(codes.Error, e.Err.Error())
		span.RecordError(e.Err, trace.WithTimestamp(e.Time))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// ActiveRunSpanContext returns the SpanContext of the active run span for
// runID, or an empty SpanContext if none is active.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()
	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveCursorSpanContext returns the SpanContext of the active cursor
// span for runID:cursorID, or an empty SpanContext if none is active.
func (h *TracingHandler) ActiveCursorSpanContext(runID, cursorID string) trace.SpanContext {
	key := runID + ":" + cursorID
	h.mu.RLock()
	span, ok := h.cursorSpan[key]
	h.mu.RUnlock()
	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

type spanError string

func (e spanError) Error() string { return string(e) }
