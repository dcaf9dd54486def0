package config

import "time"

// ToolsConfig configures the Tool Registry & Executor (C5): execution
// limits and the on-disk policy file the Governance Store (C2) loads at
// startup. Trimmed from the teacher's config, which also covered sandboxing,
// browser automation, and other tools out of this spec's scope.
type ToolsConfig struct {
	PolicyFile string               `yaml:"policy_file"`
	Execution  ToolExecutionConfig  `yaml:"execution"`
}

// ToolExecutionConfig controls runtime tool execution behavior.
type ToolExecutionConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	DefaultRetries int           `yaml:"default_retries"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Execution.MaxConcurrency == 0 {
		cfg.Execution.MaxConcurrency = 4
	}
	if cfg.Execution.DefaultTimeout == 0 {
		cfg.Execution.DefaultTimeout = 30 * time.Second
	}
	if cfg.Execution.DefaultRetries == 0 {
		cfg.Execution.DefaultRetries = 2
	}
}

// GovernanceConfig configures the Governance Store's (C2) rate limiting
// and per-mode model constraints.
type GovernanceConfig struct {
	DefaultRateLimitPerMinute int `yaml:"default_rate_limit_per_minute"`
}

func applyGovernanceDefaults(cfg *GovernanceConfig) {
	if cfg.DefaultRateLimitPerMinute == 0 {
		cfg.DefaultRateLimitPerMinute = 60
	}
}
