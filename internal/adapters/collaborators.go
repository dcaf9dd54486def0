package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexuscore/agentd/internal/telemetry"
)

// GraphAdapter is the narrow interface to the knowledge-graph store (the
// second-brain consolidation pipeline). It is a collaborator per spec.md §1:
// no implementation ships with this module, so callers that need one must
// supply their own. Read-through, write-deferred: StoreConversation is
// expected to batch into the consolidation job rather than write inline.
type GraphAdapter interface {
	StoreConversation(ctx context.Context, sessionID string, messages []GraphMessage) error
	QueryMemory(ctx context.Context, sessionID, query string, limit int) ([]Snippet, error)
}

// GraphMessage is one turn handed to a GraphAdapter for consolidation.
type GraphMessage struct {
	Role    string
	Content string
}

// Snippet is one memory fragment returned by GraphAdapter.QueryMemory.
type Snippet struct {
	SessionID string
	Text      string
	Score     float64
}

// SearchIndexSink bulk-appends telemetry events to an external search index
// (e.g. Elasticsearch), grounded on the teacher's
// internal/observability.EventStore — adapted from an in-process event
// timeline to a batch sink with idempotent document IDs, per spec.md §6.
type SearchIndexSink interface {
	IndexEvents(ctx context.Context, events []telemetry.Event) error
}

// TraceDocumentID returns the deterministic id spec.md §6 assigns a
// request's own trace record.
func TraceDocumentID(traceID string) string {
	return fmt.Sprintf("trace_%s", traceID)
}

// TraceStepDocumentID returns the deterministic id spec.md §6 assigns one
// step (sequence number) within a trace, enabling idempotent replay.
func TraceStepDocumentID(traceID string, sequence int) string {
	return fmt.Sprintf("trace_%s_step_%d", traceID, sequence)
}

// BufferedSearchIndexSink wraps a SearchIndexSink and buffers events in
// memory whenever IndexEvents fails (the sink's backend is unreachable),
// per spec.md §6's "on disconnect, events buffer locally; a backfill task
// indexes on reconnection". Backfill is driven by calling Flush, e.g. from
// a scheduler job or the next successful IndexEvents call.
type BufferedSearchIndexSink struct {
	next SearchIndexSink

	mu      sync.Mutex
	pending []telemetry.Event
}

// NewBufferedSearchIndexSink wraps next with local buffering on failure.
func NewBufferedSearchIndexSink(next SearchIndexSink) *BufferedSearchIndexSink {
	return &BufferedSearchIndexSink{next: next}
}

// IndexEvents flushes any buffered backlog ahead of the new batch, then
// tries to send; on failure the whole batch (backlog + new) is retained.
func (s *BufferedSearchIndexSink) IndexEvents(ctx context.Context, events []telemetry.Event) error {
	s.mu.Lock()
	batch := append(s.pending, events...)
	s.mu.Unlock()

	if err := s.next.IndexEvents(ctx, batch); err != nil {
		s.mu.Lock()
		s.pending = batch
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// Pending reports how many events are currently buffered awaiting backfill.
func (s *BufferedSearchIndexSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
