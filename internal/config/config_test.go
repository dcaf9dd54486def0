package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nexuscore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: openai
  providers:
    openai: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Fatalf("expected default http_port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Session.MaxMessages != 500 {
		t.Fatalf("expected default max_messages 500, got %d", cfg.Session.MaxMessages)
	}
	if cfg.Sensor.PollInterval.String() != "5s" {
		t.Fatalf("expected default poll_interval 5s, got %v", cfg.Sensor.PollInterval)
	}
}

func TestLoadRejectsMissingDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected error mentioning default_provider, got %v", err)
	}
}

func TestLoadRejectsUnknownDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: missing
  providers:
    openai: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected error mentioning the unknown provider, got %v", err)
	}
}
