package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLLMRequestUpdatesCountersAndTokens(t *testing.T) {
	m := NewMetrics()
	m.RecordLLMRequest("STANDARD", "local-llama", "success", 0.42, 120, 340)

	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("STANDARD", "local-llama", "success")); got != 1 {
		t.Fatalf("expected counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("STANDARD", "prompt")); got != 120 {
		t.Fatalf("expected 120 prompt tokens, got %v", got)
	}
}

func TestSetModeZeroesOthers(t *testing.T) {
	m := NewMetrics()
	all := []string{"NORMAL", "ALERT", "DEGRADED"}
	m.SetMode("ALERT", all)

	if got := testutil.ToFloat64(m.CurrentMode.WithLabelValues("ALERT")); got != 1 {
		t.Fatalf("expected ALERT gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.CurrentMode.WithLabelValues("NORMAL")); got != 0 {
		t.Fatalf("expected NORMAL gauge 0, got %v", got)
	}
}

func TestRecordSchedulerJob(t *testing.T) {
	m := NewMetrics()
	m.RecordSchedulerJob("archive", "completed", 1.5)
	if got := testutil.ToFloat64(m.SchedulerJobCounter.WithLabelValues("archive", "completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
}
