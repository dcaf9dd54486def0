package mode

import (
	"testing"
	"time"
)

func TestTransitionRejectedOutsideAllowed(t *testing.T) {
	defs := DefaultDefinitions()
	var rejected bool
	m := NewManager(defs, func(name string, fields map[string]any) {
		if name == "mode_transition_rejected" {
			rejected = true
		}
	})
	if m.TransitionTo(Lockdown, "skip-ahead", nil) {
		t.Fatal("expected NORMAL->LOCKDOWN to be rejected")
	}
	if !rejected {
		t.Fatal("expected mode_transition_rejected event")
	}
	if m.Current() != Normal {
		t.Fatalf("mode must be unchanged, got %s", m.Current())
	}
}

func TestSustainedCPUOverloadEscalates(t *testing.T) {
	defs := DefaultDefinitions()
	defs[Normal] = Definition{
		Mode:               Normal,
		Thresholds:         Thresholds{CPUPercent: 85},
		SustainedSeconds:   60,
		AllowedTransitions: map[Mode]bool{Alert: true},
	}
	var transitions []string
	m := NewManager(defs, func(name string, fields map[string]any) {
		if name == "mode_transition" {
			transitions = append(transitions, fields["reason"].(string))
		}
	})

	base := time.Now()
	m.EvaluateFromMetrics(Sample{Timestamp: base, CPUPercent: 95})
	if m.Current() != Normal {
		t.Fatal("single violation must not escalate immediately")
	}
	m.EvaluateFromMetrics(Sample{Timestamp: base.Add(90 * time.Second), CPUPercent: 95})
	if m.Current() != Alert {
		t.Fatalf("expected escalation to ALERT, got %s", m.Current())
	}
	if len(transitions) != 1 || transitions[0] != "cpu_overload" {
		t.Fatalf("expected exactly one cpu_overload transition, got %v", transitions)
	}
}

func TestRecoveryStepsThroughRecoveryMode(t *testing.T) {
	defs := DefaultDefinitions()
	m := NewManager(defs, func(string, map[string]any) {})
	m.TransitionTo(Alert, "forced", nil)

	base := time.Now()
	// thresholds clear for 2x sustained -> RECOVERY
	m.EvaluateFromMetrics(Sample{Timestamp: base, CPUPercent: 10})
	m.EvaluateFromMetrics(Sample{Timestamp: base.Add(130 * time.Second), CPUPercent: 10})
	if m.Current() != Recovery {
		t.Fatalf("expected RECOVERY, got %s", m.Current())
	}
	// clear for sustained again -> NORMAL
	m.EvaluateFromMetrics(Sample{Timestamp: base.Add(200 * time.Second), CPUPercent: 10})
	m.EvaluateFromMetrics(Sample{Timestamp: base.Add(270 * time.Second), CPUPercent: 10})
	if m.Current() != Normal {
		t.Fatalf("expected NORMAL after recovery window, got %s", m.Current())
	}
}
