package monitor

import (
	"testing"
	"time"

	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/sensor"
)

func TestStartStopProducesSummaryWithoutDaemon(t *testing.T) {
	m := Start("trace-1", nil, nil)
	time.Sleep(time.Millisecond)
	summary := m.Stop()
	if summary.TraceID != "trace-1" {
		t.Fatalf("expected trace id to be preserved, got %q", summary.TraceID)
	}
	if summary.Ended.Before(summary.Started) {
		t.Fatal("expected Ended >= Started")
	}
}

func TestStopReportsModeAtStartAndEnd(t *testing.T) {
	mgr := mode.NewManager(mode.DefaultDefinitions(), nil)
	m := Start("trace-2", nil, mgr)
	summary := m.Stop()
	if summary.ModeAtStart != mode.Normal {
		t.Fatalf("expected start mode NORMAL, got %s", summary.ModeAtStart)
	}
	if summary.ModeAtEnd != mode.Normal {
		t.Fatalf("expected end mode NORMAL, got %s", summary.ModeAtEnd)
	}
}

func TestStopAggregatesDaemonWindow(t *testing.T) {
	daemon := sensor.New(sensor.Config{})
	mgr := mode.NewManager(mode.DefaultDefinitions(), nil)
	m := Start("trace-3", daemon, mgr)
	summary := m.Stop()
	if summary.SampleCount != 0 {
		t.Fatalf("expected zero samples from an unstarted daemon, got %d", summary.SampleCount)
	}
}
