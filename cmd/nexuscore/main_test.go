package main

import (
	"testing"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/mode"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "chat", "session", "telemetry"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildModeDefsOverridesThresholdsKeepsTransitions(t *testing.T) {
	cfg := config.ModeConfig{
		Thresholds: map[string]config.ModeThresholds{
			"ALERT": {CPUPercent: 95, MemoryPercent: 95, DiskPercent: 95, SustainedSeconds: 30},
		},
	}
	defs := buildModeDefs(cfg)

	alert, ok := defs[mode.Alert]
	if !ok {
		t.Fatalf("expected ALERT definition to be present")
	}
	if alert.Thresholds.CPUPercent != 95 {
		t.Fatalf("expected overridden CPU threshold 95, got %v", alert.Thresholds.CPUPercent)
	}
	if len(alert.AllowedTransitions) == 0 {
		t.Fatalf("expected default AllowedTransitions to survive the override")
	}
}
