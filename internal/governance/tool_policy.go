package governance

import (
	"os"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/nexuscore/agentd/internal/mode"
)

// RiskLevel classifies how dangerous a tool invocation is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RateLimitSpec bounds calls to n per window, tracked per (tool, caller).
type RateLimitSpec struct {
	N      int
	Window time.Duration
}

// ToolPolicy is the governance record for one tool.
type ToolPolicy struct {
	Name             string
	Category         string
	RiskLevel        RiskLevel
	AllowedInModes   map[mode.Mode]bool
	RequiresApproval bool
	// ForbiddenPaths/AllowedPaths are glob patterns, expanded ($HOME etc.)
	// once at load time via NewToolPolicy.
	ForbiddenPaths []string
	AllowedPaths   []string
	TimeoutSeconds int
	RateLimit      *RateLimitSpec
	// PathArgKey names the JSON argument field holding a filesystem path,
	// when set the executor validates it via ValidatePath before invoking
	// the tool. Empty for tools with no path argument.
	PathArgKey string

	forbidden []glob.Glob
	allowed   []glob.Glob
}

// NewToolPolicy compiles ForbiddenPaths/AllowedPaths into globs, expanding
// environment variables (e.g. $HOME) once so later ValidatePath calls never
// touch the environment.
func NewToolPolicy(p ToolPolicy) (*ToolPolicy, error) {
	compiled := p
	compiled.forbidden = make([]glob.Glob, 0, len(p.ForbiddenPaths))
	for _, pattern := range p.ForbiddenPaths {
		g, err := glob.Compile(os.ExpandEnv(pattern), '/')
		if err != nil {
			return nil, err
		}
		compiled.forbidden = append(compiled.forbidden, g)
	}
	compiled.allowed = make([]glob.Glob, 0, len(p.AllowedPaths))
	for _, pattern := range p.AllowedPaths {
		g, err := glob.Compile(os.ExpandEnv(pattern), '/')
		if err != nil {
			return nil, err
		}
		compiled.allowed = append(compiled.allowed, g)
	}
	return &compiled, nil
}

// Decision is the outcome of a governance check.
type Decision struct {
	Allowed          bool
	RequiresApproval bool
	Reason           string
	RateLimited      bool
}

// PathDecision is the outcome of a path validation check.
type PathDecision struct {
	Allowed bool
	Reason  string
}

// ValidatePath glob-matches path against the policy's forbidden list first
// (deny wins unconditionally), then against the allowed list (if non-empty,
// the path must match one entry).
func ValidatePath(path string, policy *ToolPolicy) PathDecision {
	if policy == nil {
		return PathDecision{Allowed: true}
	}
	for _, g := range policy.forbidden {
		if g.Match(path) {
			return PathDecision{Allowed: false, Reason: "path denied"}
		}
	}
	if len(policy.allowed) == 0 {
		return PathDecision{Allowed: true}
	}
	for _, g := range policy.allowed {
		if g.Match(path) {
			return PathDecision{Allowed: true}
		}
	}
	return PathDecision{Allowed: false, Reason: "path not in allowed_paths"}
}

// ModelConstraints narrows which model roles a degraded system may route to.
type ModelConstraints struct {
	AllowedRoles []string
	MaxTokens    int
}

// Store is the Governance Store (C2): tool-allow decisions, path validation,
// per-mode model constraints and thresholds, and sliding-window rate limits.
type Store struct {
	mu       sync.RWMutex
	policies map[string]*ToolPolicy

	modeThresholds   map[mode.Mode]mode.Thresholds
	modelConstraints map[mode.Mode]ModelConstraints

	limiter *slidingWindowLimiter
	mcp     *autoDiscoveryState
}

// NewStore constructs a Governance Store with the given tool policies.
func NewStore(policies []*ToolPolicy) *Store {
	s := &Store{
		policies:         make(map[string]*ToolPolicy, len(policies)),
		modeThresholds:   make(map[mode.Mode]mode.Thresholds),
		modelConstraints: make(map[mode.Mode]ModelConstraints),
		limiter:          newSlidingWindowLimiter(),
	}
	for _, p := range policies {
		s.policies[p.Name] = p
	}
	return s
}

// SetModeThresholds registers the sensor thresholds governance reports for
// a mode (mirrors the Mode Manager's own ladder for external inspection).
func (s *Store) SetModeThresholds(m mode.Mode, t mode.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeThresholds[m] = t
}

// ModeThresholds returns the sensor thresholds associated with a mode.
func (s *Store) ModeThresholds(m mode.Mode) mode.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modeThresholds[m]
}

// SetModelConstraints registers which model roles are reachable in a mode.
func (s *Store) SetModelConstraints(m mode.Mode, c ModelConstraints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelConstraints[m] = c
}

// GetModelConstraints returns the model routing constraints for a mode.
func (s *Store) GetModelConstraints(m mode.Mode) ModelConstraints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelConstraints[m]
}

// CheckToolAllowed decides whether tool_name may run under current_mode,
// folding in the per-(tool,caller) sliding-window rate limit.
func (s *Store) CheckToolAllowed(toolName string, currentMode mode.Mode, caller string) Decision {
	s.mu.RLock()
	policy, ok := s.policies[toolName]
	s.mu.RUnlock()
	if !ok {
		return Decision{Allowed: false, Reason: "unknown tool"}
	}
	if len(policy.AllowedInModes) > 0 && !policy.AllowedInModes[currentMode] {
		return Decision{Allowed: false, Reason: "tool not allowed in mode " + string(currentMode)}
	}
	if policy.RateLimit != nil && !s.limiter.allow(toolName, caller, *policy.RateLimit) {
		return Decision{Allowed: false, RateLimited: true, Reason: "rate limit exceeded"}
	}
	return Decision{Allowed: true, RequiresApproval: policy.RequiresApproval}
}

// Policy returns the compiled policy for a tool, if registered.
func (s *Store) Policy(toolName string) (*ToolPolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[toolName]
	return p, ok
}
