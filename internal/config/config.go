// Package config loads nexuscore's YAML/JSON5 configuration file into a
// strictly-validated Config tree, grounded on the teacher's layered
// load -> default -> env-override -> validate pipeline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nexuscore/agentd/internal/mcp"
)

// Config is the root configuration structure for nexuscore.
type Config struct {
	// Version pins the config file to a schema revision so an old file
	// loaded against a newer build fails with a clear upgrade message
	// instead of silently dropping fields. Omitted in a file, it defaults
	// to CurrentVersion during Load rather than being treated as an error.
	Version    int              `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	LLM        LLMConfig        `yaml:"llm"`
	Tools      ToolsConfig      `yaml:"tools"`
	Governance GovernanceConfig `yaml:"governance"`
	Mode       ModeConfig       `yaml:"mode"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`

	// MCP configures the dynamic tool-discovery gateway (subprocess stdio
	// RPC); each discovered tool is registered into the Tool Registry (C5)
	// at startup. Disabled by default: absent or failing gateways degrade
	// gracefully to built-in tools only.
	MCP mcp.Config `yaml:"mcp"`
}

// Load reads, merges ($include-resolved), and decodes the config file at
// path, applies defaults and environment overrides, then validates the
// result. Unknown fields are rejected by decodeRawConfig.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	cfg := &Config{}
	if err := decodeRawConfig(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// A config file written before versioning existed, or one that simply
	// omits the field, is treated as current rather than rejected.
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applySessionDefaults(&cfg.Session)
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyGovernanceDefaults(&cfg.Governance)
	applyModeDefaults(&cfg.Mode)
	applySensorDefaults(&cfg.Sensor)
	applySchedulerDefaults(&cfg.Scheduler)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// applyEnvOverrides lets deployment secrets (API keys) come from the
// environment instead of the config file, matching the teacher's pattern of
// never requiring secrets in plaintext YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEXUSCORE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	for name, provider := range cfg.LLM.Providers {
		envKey := "NEXUSCORE_LLM_" + strings.ToUpper(name) + "_API_KEY"
		if v := os.Getenv(envKey); v != "" {
			provider.APIKey = v
			cfg.LLM.Providers[name] = provider
		}
	}
}

// ConfigValidationError reports one or more structural problems found
// during validateConfig, collected rather than returned on first failure.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config: %d validation issue(s): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.LLM.DefaultProvider == "" {
		issues = append(issues, "llm.default_provider is required")
	} else if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		issues = append(issues, fmt.Sprintf("llm.default_provider %q has no matching entry under llm.providers", cfg.LLM.DefaultProvider))
	}

	if !validResetMode(cfg.Session.Reset.Mode) {
		issues = append(issues, fmt.Sprintf("session.reset.mode %q is invalid", cfg.Session.Reset.Mode))
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, fmt.Sprintf("server.http_port %d is out of range", cfg.Server.HTTPPort))
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validResetMode(mode string) bool {
	switch mode {
	case "", "never", "daily", "idle", "daily+idle":
		return true
	default:
		return false
	}
}
