package telemetry

import (
	"strings"
	"sync"
	"time"
)

// Phase is the fixed classification a span name maps to for aggregation.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseContext    Phase = "context"
	PhaseRouting    Phase = "routing"
	PhaseLLM        Phase = "llm_inference"
	PhaseTool       Phase = "tool_execution"
	PhaseSynthesis  Phase = "synthesis"
	PhasePersist    Phase = "persistence"
	PhaseOther      Phase = "other"
)

var phasePrefixes = []struct {
	prefix string
	phase  Phase
}{
	{"setup", PhaseSetup},
	{"context", PhaseContext},
	{"routing", PhaseRouting},
	{"llm_call", PhaseLLM},
	{"llm", PhaseLLM},
	{"tool_execution", PhaseTool},
	{"tool", PhaseTool},
	{"synthesis", PhaseSynthesis},
	{"persistence", PhasePersist},
	{"persist", PhasePersist},
}

// ClassifyPhase maps a span name to a fixed phase via its prefix before the
// first ':'. An unknown prefix maps to "other".
func ClassifyPhase(spanName string) Phase {
	prefix := spanName
	if i := strings.IndexByte(spanName, ':'); i >= 0 {
		prefix = spanName[:i]
	}
	for _, p := range phasePrefixes {
		if prefix == p.prefix {
			return p.phase
		}
	}
	return PhaseOther
}

// Span is one finalised timing record.
type Span struct {
	Name       string
	Sequence   uint64
	Phase      Phase
	OffsetMS   int64
	DurationMS int64
	Metadata   map[string]any
}

// PhaseTotal aggregates span durations within one phase.
type PhaseTotal struct {
	DurationMS int64
	Steps      int
}

// Summary is the Timer's final rollup.
type Summary struct {
	TotalMS    int64
	TotalSteps int
	Phases     map[Phase]PhaseTotal
}

// Timer tracks per-request span timings. Sequence is monotone within one
// Timer. end() of an unknown span is a no-op returning 0.
type Timer struct {
	mu       sync.Mutex
	start    time.Time
	seq      uint64
	pending  map[string]pendingSpan
	finished []Span
}

type pendingSpan struct {
	started time.Time
	seq     uint64
}

// NewTimer starts a Timer whose offsets are measured from now.
func NewTimer() *Timer {
	return &Timer{start: time.Now(), pending: make(map[string]pendingSpan)}
}

// Start begins timing a named span. Starting an already-open span
// overwrites its start time (last start wins).
func (t *Timer) Start(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.pending[name] = pendingSpan{started: time.Now(), seq: t.seq}
}

// End finalises a span and returns its duration in milliseconds. Ending an
// unknown span is a no-op returning 0.
func (t *Timer) End(name string, metadata map[string]any) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[name]
	if !ok {
		return 0
	}
	delete(t.pending, name)
	now := time.Now()
	dur := now.Sub(p.started).Milliseconds()
	t.finished = append(t.finished, Span{
		Name:       name,
		Sequence:   p.seq,
		Phase:      ClassifyPhase(name),
		OffsetMS:   p.started.Sub(t.start).Milliseconds(),
		DurationMS: dur,
		Metadata:   metadata,
	})
	return dur
}

// ToBreakdown returns a copy of all finished spans, sequence-ordered.
func (t *Timer) ToBreakdown() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Span, len(t.finished))
	copy(out, t.finished)
	return out
}

// ToSummary aggregates finished spans by phase. The sum of phase durations
// equals the sum of span durations by construction.
func (t *Timer) ToSummary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{Phases: make(map[Phase]PhaseTotal)}
	for _, span := range t.finished {
		s.TotalMS += span.DurationMS
		s.TotalSteps++
		pt := s.Phases[span.Phase]
		pt.DurationMS += span.DurationMS
		pt.Steps++
		s.Phases[span.Phase] = pt
	}
	return s
}
