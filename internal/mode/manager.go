// Package mode implements the process-wide operational-mode state machine
// driven by Sensor Daemon evidence.
package mode

import (
	"fmt"
	"sync"
	"time"
)

// Mode is one of the five operational modes.
type Mode string

const (
	Normal    Mode = "NORMAL"
	Alert     Mode = "ALERT"
	Degraded  Mode = "DEGRADED"
	Lockdown  Mode = "LOCKDOWN"
	Recovery  Mode = "RECOVERY"
)

var escalationOrder = []Mode{Normal, Alert, Degraded, Lockdown}

// Thresholds are the resource limits that, sustained, trigger an escalation
// out of a given mode.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// Definition is one mode's configuration, loaded once at startup.
type Definition struct {
	Mode              Mode
	Thresholds        Thresholds
	SustainedSeconds  int
	AllowedTransitions map[Mode]bool
}

// Sample is the subset of a sensor snapshot the Mode Manager evaluates.
type Sample struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// Transition records an accepted mode change.
type Transition struct {
	From      Mode
	To        Mode
	Reason    string
	Evidence  map[string]any
	Timestamp time.Time
}

// EventFunc receives mode_transition / mode_transition_rejected events.
type EventFunc func(name string, fields map[string]any)

const maxHistory = 100

// Manager is the single process-wide mode state machine. All mutation is
// serialised by mu; transition evaluation is deterministic for a given
// sample sequence.
type Manager struct {
	mu          sync.Mutex
	defs        map[Mode]Definition
	current     Mode
	history     []Transition
	onEvent     EventFunc
	breachSince map[Mode]time.Time // first time thresholds for `current` were violated, for sustain tracking
	clearSince  *time.Time         // first time all thresholds cleared, for recovery tracking
}

// NewManager constructs a Manager starting in NORMAL mode.
func NewManager(defs map[Mode]Definition, onEvent EventFunc) *Manager {
	if onEvent == nil {
		onEvent = func(string, map[string]any) {}
	}
	return &Manager{
		defs:        defs,
		current:     Normal,
		onEvent:     onEvent,
		breachSince: make(map[Mode]time.Time),
	}
}

// Current returns the current mode.
func (m *Manager) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns a copy of the most recent accepted transitions, oldest first.
func (m *Manager) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// TransitionTo attempts an explicit transition. Returns false and emits
// mode_transition_rejected if `to` is not in the current mode's
// AllowedTransitions.
func (m *Manager) TransitionTo(to Mode, reason string, evidence map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to, reason, evidence)
}

func (m *Manager) transitionLocked(to Mode, reason string, evidence map[string]any) bool {
	from := m.current
	def, ok := m.defs[from]
	if ok && def.AllowedTransitions != nil && !def.AllowedTransitions[to] {
		m.onEvent("mode_transition_rejected", map[string]any{
			"from": string(from), "to": string(to), "reason": reason,
		})
		return false
	}
	m.current = to
	t := Transition{From: from, To: to, Reason: reason, Evidence: evidence, Timestamp: time.Now()}
	m.history = append(m.history, t)
	if over := len(m.history) - maxHistory; over > 0 {
		m.history = m.history[over:]
	}
	m.onEvent("mode_transition", map[string]any{
		"from": string(from), "to": string(to), "reason": reason, "evidence": evidence,
	})
	// Reset sustain trackers; the new mode starts with a clean slate.
	m.breachSince = make(map[Mode]time.Time)
	m.clearSince = nil
	return true
}

// EvaluateFromMetrics is called by the Scheduler or Sensor Daemon on every
// poll. It proposes an escalation when the current mode's thresholds are
// violated for SustainedSeconds, and a stepped recovery when all thresholds
// clear for 2x SustainedSeconds.
func (m *Manager) EvaluateFromMetrics(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.defs[m.current]
	if !ok {
		return
	}

	violated, reason := violatesThreshold(def.Thresholds, s)
	if violated {
		m.clearSince = nil
		if m.breachSince[m.current].IsZero() {
			m.breachSince[m.current] = s.Timestamp
		}
		sustained := s.Timestamp.Sub(m.breachSince[m.current])
		if sustained >= time.Duration(def.SustainedSeconds)*time.Second {
			if next, ok := nextEscalation(m.current); ok {
				m.transitionLocked(next, reason, map[string]any{
					"cpu_percent": s.CPUPercent, "memory_percent": s.MemoryPercent, "disk_percent": s.DiskPercent,
				})
			}
		}
		return
	}

	// Thresholds clear; track recovery.
	delete(m.breachSince, m.current)
	if m.current == Normal {
		return
	}
	if m.clearSince == nil {
		now := s.Timestamp
		m.clearSince = &now
	}
	sustainedClear := s.Timestamp.Sub(*m.clearSince)
	switch m.current {
	case Recovery:
		if sustainedClear >= time.Duration(def.SustainedSeconds)*time.Second {
			m.transitionLocked(Normal, "recovered", nil)
		}
	default:
		if sustainedClear >= 2*time.Duration(def.SustainedSeconds)*time.Second {
			m.transitionLocked(Recovery, "thresholds_cleared", nil)
		}
	}
}

func violatesThreshold(th Thresholds, s Sample) (bool, string) {
	switch {
	case th.CPUPercent > 0 && s.CPUPercent >= th.CPUPercent:
		return true, "cpu_overload"
	case th.MemoryPercent > 0 && s.MemoryPercent >= th.MemoryPercent:
		return true, "memory_overload"
	case th.DiskPercent > 0 && s.DiskPercent >= th.DiskPercent:
		return true, "disk_overload"
	default:
		return false, ""
	}
}

func nextEscalation(current Mode) (Mode, bool) {
	for i, m := range escalationOrder {
		if m == current && i+1 < len(escalationOrder) {
			return escalationOrder[i+1], true
		}
	}
	return "", false
}

// DefaultDefinitions returns a standard escalation ladder, usable as a
// starting point before config-file overrides are applied.
func DefaultDefinitions() map[Mode]Definition {
	allow := func(modes ...Mode) map[Mode]bool {
		out := make(map[Mode]bool, len(modes))
		for _, m := range modes {
			out[m] = true
		}
		return out
	}
	return map[Mode]Definition{
		Normal: {
			Mode:              Normal,
			Thresholds:        Thresholds{CPUPercent: 85, MemoryPercent: 85, DiskPercent: 90},
			SustainedSeconds:  60,
			AllowedTransitions: allow(Alert),
		},
		Alert: {
			Mode:              Alert,
			Thresholds:        Thresholds{CPUPercent: 92, MemoryPercent: 92, DiskPercent: 95},
			SustainedSeconds:  60,
			AllowedTransitions: allow(Degraded, Recovery),
		},
		Degraded: {
			Mode:              Degraded,
			Thresholds:        Thresholds{CPUPercent: 97, MemoryPercent: 97, DiskPercent: 98},
			SustainedSeconds:  60,
			AllowedTransitions: allow(Lockdown, Recovery),
		},
		Lockdown: {
			Mode:              Lockdown,
			Thresholds:        Thresholds{CPUPercent: 100, MemoryPercent: 100, DiskPercent: 100},
			SustainedSeconds:  60,
			AllowedTransitions: allow(Recovery),
		},
		Recovery: {
			Mode:              Recovery,
			SustainedSeconds:  60,
			AllowedTransitions: allow(Normal, Alert),
		},
	}
}

// ErrUnknownMode is returned by lookups against an unregistered Mode.
func ErrUnknownMode(m Mode) error { return fmt.Errorf("mode: unknown mode %q", m) }
