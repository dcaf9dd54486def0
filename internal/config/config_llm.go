package config

import "time"

// LLMConfig configures the model providers the External Adapters (C10)
// LLMAdapter dials out to, and the Model Router's (C6) confirmation call.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// FallbackChain specifies provider IDs to try if the default provider
	// fails, tried in order until one succeeds.
	FallbackChain []string `yaml:"fallback_chain"`

	Routing LLMRoutingConfig `yaml:"routing"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`

	// Models maps a router.ModelRole name (ROUTER/STANDARD/REASONING/CODING)
	// to the concrete model to request for that role. A role absent here
	// falls back to DefaultModel.
	Models map[string]string `yaml:"models"`
}

// LLMRoutingConfig configures the Model Router's heuristic/confirmation split.
type LLMRoutingConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	ReasoningEnabled    bool          `yaml:"reasoning_enabled"`
	RouterEnabled       bool          `yaml:"router_enabled"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Routing.ConfidenceThreshold == 0 {
		cfg.Routing.ConfidenceThreshold = 0.6
	}
	if cfg.Routing.ConfirmTimeout == 0 {
		cfg.Routing.ConfirmTimeout = 3 * time.Second
	}
}
