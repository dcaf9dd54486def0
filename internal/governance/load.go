package governance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/agentd/internal/mode"
)

// rawPolicyFile is the on-disk shape of the Governance Store's policy file
// (tools.policy_file in config), grounded on config.Load's use of yaml.v3.
type rawPolicyFile struct {
	Policies []rawToolPolicy `yaml:"policies"`
}

type rawToolPolicy struct {
	Name             string   `yaml:"name"`
	Category         string   `yaml:"category"`
	RiskLevel        string   `yaml:"risk_level"`
	AllowedInModes   []string `yaml:"allowed_in_modes"`
	RequiresApproval bool     `yaml:"requires_approval"`
	ForbiddenPaths   []string `yaml:"forbidden_paths"`
	AllowedPaths     []string `yaml:"allowed_paths"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	RateLimit        *struct {
		N      int           `yaml:"n"`
		Window time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
	PathArgKey string `yaml:"path_arg_key"`
}

// LoadPolicies reads and compiles the tool policy file. A missing path is
// not an error: the Tool Registry & Executor runs with an empty policy set
// (every tool call denied by default, per ToolPolicy's zero-value AllowedInModes).
func LoadPolicies(path string) ([]*ToolPolicy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("governance: read policy file: %w", err)
	}

	var raw rawPolicyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("governance: parse policy file: %w", err)
	}

	policies := make([]*ToolPolicy, 0, len(raw.Policies))
	for _, rp := range raw.Policies {
		allowed := make(map[mode.Mode]bool, len(rp.AllowedInModes))
		for _, m := range rp.AllowedInModes {
			allowed[mode.Mode(m)] = true
		}
		policy := ToolPolicy{
			Name:             rp.Name,
			Category:         rp.Category,
			RiskLevel:        RiskLevel(rp.RiskLevel),
			AllowedInModes:   allowed,
			RequiresApproval: rp.RequiresApproval,
			ForbiddenPaths:   rp.ForbiddenPaths,
			AllowedPaths:     rp.AllowedPaths,
			TimeoutSeconds:   rp.TimeoutSeconds,
			PathArgKey:       rp.PathArgKey,
		}
		if rp.RateLimit != nil {
			policy.RateLimit = &RateLimitSpec{N: rp.RateLimit.N, Window: rp.RateLimit.Window}
		}
		compiled, err := NewToolPolicy(policy)
		if err != nil {
			return nil, fmt.Errorf("governance: compile policy %q: %w", rp.Name, err)
		}
		policies = append(policies, compiled)
	}
	return policies, nil
}
