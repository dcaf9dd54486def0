package sensor

import (
	"context"
	"testing"
	"time"
)

func TestDaemonStartStopIdempotent(t *testing.T) {
	d := New(Config{PollInterval: 10 * time.Millisecond, BufferSize: 4})
	ctx := context.Background()
	d.Start(ctx)
	d.Start(ctx) // no-op, must not panic or double-start

	time.Sleep(50 * time.Millisecond)
	d.Stop()
	d.Stop() // no-op

	if _, ok := d.Latest(); !ok {
		t.Fatal("expected at least one sample after running")
	}
}

func TestRingBufferDropsOldestAtCapacity(t *testing.T) {
	d := New(Config{BufferSize: 3})
	for i := 0; i < 5; i++ {
		d.push(Snapshot{Timestamp: time.Now(), CPUPercent: float64(i)})
	}
	win := d.Window(time.Hour)
	if len(win) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(win))
	}
	// Oldest two (0, 1) must have been evicted; window is oldest-first.
	if win[0].CPUPercent != 2 {
		t.Fatalf("expected oldest retained sample to be 2, got %v", win[0].CPUPercent)
	}
}

func TestWindowFiltersByDuration(t *testing.T) {
	d := New(Config{BufferSize: 10})
	d.push(Snapshot{Timestamp: time.Now().Add(-time.Hour)})
	d.push(Snapshot{Timestamp: time.Now()})
	win := d.Window(time.Minute)
	if len(win) != 1 {
		t.Fatalf("expected 1 sample within window, got %d", len(win))
	}
}
