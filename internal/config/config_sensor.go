package config

import "time"

// SensorConfig configures the Sensor Daemon (C3).
type SensorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	DiskPath     string        `yaml:"disk_path"`
	BufferSize   int           `yaml:"buffer_size"`
	EmitEvery    int           `yaml:"emit_every"`
}

func applySensorDefaults(cfg *SensorConfig) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 720
	}
	if cfg.EmitEvery == 0 {
		cfg.EmitEvery = 12
	}
}
