package config

// ModeConfig configures the Mode Manager's (C4) threshold definitions per
// mode. Empty entries fall back to mode.DefaultDefinitions().
type ModeConfig struct {
	Thresholds map[string]ModeThresholds `yaml:"thresholds"`
}

// ModeThresholds mirrors mode.Thresholds for YAML decoding.
type ModeThresholds struct {
	CPUPercent       float64 `yaml:"cpu_percent"`
	MemoryPercent    float64 `yaml:"memory_percent"`
	DiskPercent      float64 `yaml:"disk_percent"`
	SustainedSeconds int     `yaml:"sustained_seconds"`
}

func applyModeDefaults(cfg *ModeConfig) {
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string]ModeThresholds{}
	}
}
