package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nexuscore/agentd/internal/mode"
)

func TestLoadPoliciesParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	content := `
policies:
  - name: exec
    category: shell
    risk_level: high
    allowed_in_modes: [NORMAL]
    requires_approval: true
    timeout_seconds: 30
    rate_limit:
      n: 5
      window: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policies, err := LoadPolicies(path)
	if err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}
	p := policies[0]
	if p.Name != "exec" || p.RiskLevel != RiskHigh {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if !p.AllowedInModes[mode.Normal] {
		t.Fatalf("expected NORMAL allowed")
	}
	if p.RateLimit == nil || p.RateLimit.N != 5 {
		t.Fatalf("expected rate limit n=5, got %+v", p.RateLimit)
	}
}

func TestLoadPoliciesMissingFileReturnsEmpty(t *testing.T) {
	policies, err := LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if policies != nil {
		t.Fatalf("expected nil policies, got %v", policies)
	}
}

func TestLoadPoliciesEmptyPathReturnsEmpty(t *testing.T) {
	policies, err := LoadPolicies("")
	if err != nil || policies != nil {
		t.Fatalf("expected nil, nil got %v, %v", policies, err)
	}
}
