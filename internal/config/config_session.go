package config

// SessionConfig controls session lifecycle and context-window behavior,
// trimmed from the teacher's multi-channel-bot session config down to what
// a single-operator collaborator session needs.
type SessionConfig struct {
	// MaxMessages bounds retained session history (chatmodel.MaxSessionMessages
	// is the hard ceiling; this may tighten it per deployment).
	MaxMessages int `yaml:"max_messages"`

	// Reset controls automatic session expiry.
	Reset ResetConfig `yaml:"reset"`

	ContextWindow ContextWindowConfig `yaml:"context_window"`
}

// ResetConfig controls when sessions are automatically reset.
type ResetConfig struct {
	// Mode is the reset mode: "daily", "idle", "daily+idle", or "never" (default).
	Mode string `yaml:"mode"`

	// AtHour is the hour (0-23) to reset sessions when mode includes "daily".
	AtHour int `yaml:"at_hour"`

	// IdleMinutes is the number of minutes of inactivity before reset when mode includes "idle".
	IdleMinutes int `yaml:"idle_minutes"`
}

// ContextWindowConfig mirrors orchestrator.Config's truncation knobs so they
// can be tuned from the config file rather than only from code defaults.
type ContextWindowConfig struct {
	KeepFirst  int `yaml:"keep_first"`
	KeepRecent int `yaml:"keep_recent"`

	// MaxTokens, when positive, hard-trims the windowed history further to
	// fit a token budget via compaction.PruneHistoryForContextShare,
	// covering models whose KeepFirst/KeepRecent slice is still too large
	// for their context window.
	MaxTokens int `yaml:"max_tokens"`
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = 500
	}
	if cfg.Reset.Mode == "" {
		cfg.Reset.Mode = "never"
	}
	if cfg.ContextWindow.KeepFirst == 0 {
		cfg.ContextWindow.KeepFirst = 2
	}
	if cfg.ContextWindow.KeepRecent == 0 {
		cfg.ContextWindow.KeepRecent = 40
	}
}
