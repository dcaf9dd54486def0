// Package telemetry implements the Trace & Telemetry Bus (C1): trace/span
// identifier assignment, a non-blocking append-only event bus, and the
// per-request Timer used to build request_trace summaries.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Level is an event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// TraceContext identifies one request's lifetime. Stable for the request;
// every emitted event during that request carries it.
type TraceContext struct {
	TraceID      string
	ParentSpanID string
}

// NewTrace creates a fresh TraceContext with no parent.
func NewTrace() TraceContext {
	return TraceContext{TraceID: uuid.NewString()}
}

// NewSpan derives a child span id under the given trace.
func NewSpan(parent TraceContext) (TraceContext, string) {
	spanID := uuid.NewString()
	return TraceContext{TraceID: parent.TraceID, ParentSpanID: spanID}, spanID
}

// Event is one append-only telemetry record. Never mutated after emission.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Name      string         `json:"event_name"`
	TraceID   string         `json:"trace_id"`
	SpanID    string         `json:"span_id,omitempty"`
	Level     Level          `json:"level"`
	Fields    map[string]any `json:"fields,omitempty"`
}
