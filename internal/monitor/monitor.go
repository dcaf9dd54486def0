// Package monitor implements the Request Monitor (C9): a thin per-request
// aggregator bound to a trace_id, sampling the Sensor Daemon's ring buffer
// over the request's lifetime and summarising it on Stop.
package monitor

import (
	"sync"
	"time"

	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/sensor"
)

// ThresholdViolation records one sample that crossed a mode threshold
// while a request was in flight.
type ThresholdViolation struct {
	At       time.Time
	Resource string
	Value    float64
	Limit    float64
}

// Summary is attached to a TaskResult once the monitor stops.
type Summary struct {
	TraceID            string
	Started            time.Time
	Ended              time.Time
	SampleCount        int
	PeakCPUPercent     float64
	PeakMemPercent     float64
	PeakDiskPercent    float64
	ThresholdViolations []ThresholdViolation
	ModeAtStart        mode.Mode
	ModeAtEnd          mode.Mode
}

// Monitor tracks one in-flight request.
type Monitor struct {
	traceID string
	daemon  *sensor.Daemon
	modeMgr *mode.Manager

	mu        sync.Mutex
	started   time.Time
	startMode mode.Mode
}

// Start begins tracking a request identified by traceID.
func Start(traceID string, daemon *sensor.Daemon, modeMgr *mode.Manager) *Monitor {
	m := &Monitor{traceID: traceID, daemon: daemon, modeMgr: modeMgr, started: time.Now()}
	if modeMgr != nil {
		m.startMode = modeMgr.Current()
	}
	return m
}

// Stop finalizes the monitor, computing a Summary from samples the Sensor
// Daemon recorded during the request's window.
func (m *Monitor) Stop() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	ended := time.Now()
	summary := Summary{
		TraceID:     m.traceID,
		Started:     m.started,
		Ended:       ended,
		ModeAtStart: m.startMode,
	}
	if m.modeMgr != nil {
		summary.ModeAtEnd = m.modeMgr.Current()
	}
	if m.daemon == nil {
		return summary
	}

	window := m.daemon.Window(ended.Sub(m.started))
	summary.SampleCount = len(window)

	var thresholds mode.Thresholds
	if m.modeMgr != nil {
		if def, ok := mode.DefaultDefinitions()[summary.ModeAtEnd]; ok {
			thresholds = def.Thresholds
		}
	}

	for _, s := range window {
		if s.CPUPercent > summary.PeakCPUPercent {
			summary.PeakCPUPercent = s.CPUPercent
		}
		if s.MemPercent > summary.PeakMemPercent {
			summary.PeakMemPercent = s.MemPercent
		}
		if s.DiskPercent > summary.PeakDiskPercent {
			summary.PeakDiskPercent = s.DiskPercent
		}
		if thresholds.CPUPercent > 0 && s.CPUPercent > thresholds.CPUPercent {
			summary.ThresholdViolations = append(summary.ThresholdViolations, ThresholdViolation{At: s.Timestamp, Resource: "cpu", Value: s.CPUPercent, Limit: thresholds.CPUPercent})
		}
		if thresholds.MemoryPercent > 0 && s.MemPercent > thresholds.MemoryPercent {
			summary.ThresholdViolations = append(summary.ThresholdViolations, ThresholdViolation{At: s.Timestamp, Resource: "memory", Value: s.MemPercent, Limit: thresholds.MemoryPercent})
		}
		if thresholds.DiskPercent > 0 && s.DiskPercent > thresholds.DiskPercent {
			summary.ThresholdViolations = append(summary.ThresholdViolations, ThresholdViolation{At: s.Timestamp, Resource: "disk", Value: s.DiskPercent, Limit: thresholds.DiskPercent})
		}
	}

	return summary
}
