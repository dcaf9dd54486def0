package config

import "time"

// SchedulerConfig parameterizes the four fixed lifecycle jobs wired by
// cmd/nexuscore: disk-usage check, archive, purge, and sensor-driven
// consolidation (C8).
type SchedulerConfig struct {
	TelemetryRoot string  `yaml:"telemetry_root"`
	ArchiveRoot   string  `yaml:"archive_root"`
	DiskAlertPct  float64 `yaml:"disk_alert_percent"`

	HotExpiry  time.Duration `yaml:"hot_expiry"`
	ColdExpiry time.Duration `yaml:"cold_expiry"`

	Consolidation ConsolidationConfig `yaml:"consolidation"`
}

// ConsolidationConfig gates when the sensor-driven consolidation job is
// allowed to fire.
type ConsolidationConfig struct {
	CPUThreshold    float64       `yaml:"cpu_threshold"`
	MemoryThreshold float64       `yaml:"memory_threshold"`
	IdleThreshold   time.Duration `yaml:"idle_threshold"`
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.TelemetryRoot == "" {
		cfg.TelemetryRoot = "./data/telemetry"
	}
	if cfg.ArchiveRoot == "" {
		cfg.ArchiveRoot = "./data/archive"
	}
	if cfg.DiskAlertPct == 0 {
		cfg.DiskAlertPct = 85
	}
	if cfg.HotExpiry == 0 {
		cfg.HotExpiry = 7 * 24 * time.Hour
	}
	if cfg.ColdExpiry == 0 {
		cfg.ColdExpiry = 90 * 24 * time.Hour
	}
	if cfg.Consolidation.CPUThreshold == 0 {
		cfg.Consolidation.CPUThreshold = 40
	}
	if cfg.Consolidation.MemoryThreshold == 0 {
		cfg.Consolidation.MemoryThreshold = 60
	}
	if cfg.Consolidation.IdleThreshold == 0 {
		cfg.Consolidation.IdleThreshold = 10 * time.Minute
	}
}
