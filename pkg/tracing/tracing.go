// Package tracing provides a lightweight span-based tracing capability for
// pipeline stages. The Tracer is injected explicitly into each component;
// there is no global state, and the no-op implementation makes it safe to
// disable tracing with zero behavior change.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Tracer records task spans, metrics, and errors. Implementations must be
// safe for concurrent use from all pool workers and must never fail the
// caller.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64)
	RecordError(stage string, err error)
}

// Span represents a timed operation within a trace.
type Span interface {
	SetAttr(key string, value any)
	End()
}

// ---------- slog-backed tracer ----------

// LogTracer logs spans as structured slog records, linking children to
// their parent span through the context.
type LogTracer struct {
	traceID string
	logger  *slog.Logger
}

// NewLogTracer creates a LogTracer scoped to one trace (pipeline run).
func NewLogTracer(traceID string) *LogTracer {
	return &LogTracer{
		traceID: traceID,
		logger:  slog.Default().With("component", "tracer", "trace_id", traceID),
	}
}

func (t *LogTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	parentName := ""
	if parent, ok := ctx.Value(spanKey).(*logSpan); ok {
		parentName = parent.name
	}
	span := &logSpan{
		name:   name,
		parent: parentName,
		start:  time.Now(),
		attrs:  make(map[string]any),
		tracer: t,
	}
	return context.WithValue(ctx, spanKey, span), span
}

func (t *LogTracer) RecordMetric(name string, value float64) {
	t.logger.Info("metric", "name", name, "value", value)
}

func (t *LogTracer) RecordError(stage string, err error) {
	if err == nil {
		return
	}
	t.logger.Warn("stage error recorded", "stage", stage, "error", err)
}

type logSpan struct {
	name   string
	parent string
	start  time.Time
	mu     sync.Mutex
	attrs  map[string]any
	tracer *LogTracer
}

func (s *logSpan) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *logSpan) End() {
	duration := time.Since(s.start)
	attrs := []any{
		"span", s.name,
		"duration_ms", duration.Milliseconds(),
	}
	if s.parent != "" {
		attrs = append(attrs, "parent", s.parent)
	}
	s.mu.Lock()
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	s.mu.Unlock()
	s.tracer.logger.Info("span", attrs...)
}

// ---------- no-op tracer ----------

type noopTracer struct{}

type noopSpan struct{}

// NewNoop returns a Tracer that records nothing.
func NewNoop() Tracer { return noopTracer{} }

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) RecordMetric(string, float64) {}

func (noopTracer) RecordError(string, error) {}

func (noopSpan) SetAttr(string, any) {}

func (noopSpan) End() {}
