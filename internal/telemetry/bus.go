package telemetry

import (
	"log/slog"
	"time"
)

// Bus fans out emitted events to the local JSONL sink and an optional
// search-index EventSink. Emit never blocks the caller nor raises
// user-visible errors; sink failures are logged locally and dropped.
type Bus struct {
	local  *JSONLSink
	remote EventSink
	logger *slog.Logger
}

// NewBus constructs a Bus. remote may be nil if no search-index
// collaborator is configured; the bus then degrades to local-file-only.
func NewBus(local *JSONLSink, remote EventSink, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default().With("component", "telemetry-bus")
	}
	return &Bus{local: local, remote: remote, logger: logger}
}

// Emit publishes one event. The local sink write happens synchronously
// (it is itself non-blocking/fsync-bounded); the remote sink is attempted
// best-effort in a detached goroutine so a slow or down search index never
// adds latency to the request path.
func (b *Bus) Emit(trace TraceContext, spanID, name string, level Level, fields map[string]any) {
	e := Event{
		Timestamp: time.Now(),
		Name:      name,
		TraceID:   trace.TraceID,
		SpanID:    spanID,
		Level:     level,
		Fields:    fields,
	}
	if b.local != nil {
		b.local.Write(e)
	}
	if b.remote != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("telemetry: remote sink panicked", "recover", r)
				}
			}()
			if err := b.remote.Emit(e); err != nil {
				b.logger.Warn("telemetry: remote sink failed, buffering locally", "error", err)
			}
		}()
	}
}

// Info is a convenience for Emit at LevelInfo.
func (b *Bus) Info(trace TraceContext, name string, fields map[string]any) {
	b.Emit(trace, "", name, LevelInfo, fields)
}

// Warn is a convenience for Emit at LevelWarn.
func (b *Bus) Warn(trace TraceContext, name string, fields map[string]any) {
	b.Emit(trace, "", name, LevelWarn, fields)
}

// Error is a convenience for Emit at LevelError.
func (b *Bus) Error(trace TraceContext, name string, fields map[string]any) {
	b.Emit(trace, "", name, LevelError, fields)
}
