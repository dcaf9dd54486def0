// Package router implements the Model Router (C6): classifying a request
// into a model role (ROUTER/STANDARD/REASONING/CODING) via fast heuristics,
// falling back to a minimal confirming LLM call when heuristic confidence
// is low. Re-targeted from the teacher's provider-selection Router
// (internal/agent/routing) to role classification.
package router

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// ModelRole is the target model class a request is routed to.
type ModelRole string

const (
	RoleRouter    ModelRole = "ROUTER"
	RoleStandard  ModelRole = "STANDARD"
	RoleReasoning ModelRole = "REASONING"
	RoleCoding    ModelRole = "CODING"
)

// Decision is HANDLE (router answers directly, role==ROUTER with low stakes)
// or DELEGATE (a downstream model role should handle the request).
type Decision string

const (
	DecisionHandle   Decision = "HANDLE"
	DecisionDelegate Decision = "DELEGATE"
)

// RoutingResult records one routing decision for ExecutionContext.routing_history.
type RoutingResult struct {
	Decision    Decision
	TargetModel ModelRole
	Confidence  float64
	Reason      string
}

// Confirm performs the minimal confirming LLM call: user message only, no
// memory, no tools, with a strict JSON schema response. Implementations
// must return an error (never a silently-defaulted role) when target_model
// is missing or unparseable.
type Confirm func(ctx context.Context, userMessage string) (target ModelRole, confidence float64, reason string, err error)

// Config configures the Router.
type Config struct {
	ConfidenceThreshold float64
	ReasoningEnabled    bool
	RouterEnabled       bool
	ConfirmTimeout      time.Duration
	Confirm             Confirm
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 5 * time.Second
	}
	return c
}

// Router classifies requests into a ModelRole.
type Router struct {
	cfg Config
}

// New constructs a Router.
func New(cfg Config) *Router {
	return &Router{cfg: cfg.withDefaults()}
}

// Route classifies a request. Channel overrides take precedence over the
// heuristic/LLM-confirm pipeline: CODE_TASK always forces CODING;
// SYSTEM_HEALTH always forces STANDARD.
func (r *Router) Route(ctx context.Context, channel chatmodel.Channel, userMessage string) RoutingResult {
	switch channel {
	case chatmodel.ChannelCodeTask:
		return RoutingResult{Decision: DecisionDelegate, TargetModel: RoleCoding, Confidence: 1, Reason: "channel override: CODE_TASK"}
	case chatmodel.ChannelSystemHealth:
		return RoutingResult{Decision: DecisionDelegate, TargetModel: RoleStandard, Confidence: 1, Reason: "channel override: SYSTEM_HEALTH"}
	}

	role, confidence, reason := classify(userMessage)
	role = r.resolveRole(role)

	if confidence < r.cfg.ConfidenceThreshold && r.cfg.Confirm != nil {
		confirmed, ok := r.confirm(ctx, userMessage)
		if ok {
			confirmed.TargetModel = r.resolveRole(confirmed.TargetModel)
			return confirmed
		}
		// Timeout or parse failure: fall back to the heuristic result.
	}

	return RoutingResult{Decision: DecisionDelegate, TargetModel: role, Confidence: confidence, Reason: reason}
}

func (r *Router) resolveRole(role ModelRole) ModelRole {
	if role == RoleReasoning && !r.cfg.ReasoningEnabled {
		return RoleStandard
	}
	if role == RoleRouter && !r.cfg.RouterEnabled {
		return RoleStandard
	}
	return role
}

func (r *Router) confirm(ctx context.Context, userMessage string) (RoutingResult, bool) {
	confirmCtx, cancel := context.WithTimeout(ctx, r.cfg.ConfirmTimeout)
	defer cancel()

	target, confidence, reason, err := r.cfg.Confirm(confirmCtx, userMessage)
	if err != nil || target == "" {
		return RoutingResult{}, false
	}
	if target != RoleStandard && target != RoleReasoning && target != RoleCoding {
		return RoutingResult{}, false
	}
	return RoutingResult{Decision: DecisionDelegate, TargetModel: target, Confidence: confidence, Reason: reason}, true
}

var (
	codeRegex   = regexp.MustCompile(`(?i)\b(def|class|import|func|stack trace|traceback|debug|refactor|implement|fix bug)\b`)
	fenceRegex  = regexp.MustCompile("```")
	reasonRegex = regexp.MustCompile(`(?i)\b(prove|derive|rigorously|think|analyze deeply|research synthesis)\b`)
	toolRegex   = regexp.MustCompile(`(?i)\b(search web|look up|list files|read file|check disk)\b`)
)

// classify implements the heuristic table of spec.md §4.6.
func classify(userMessage string) (ModelRole, float64, string) {
	content := strings.TrimSpace(userMessage)
	if content == "" {
		return RoleStandard, 0, "empty message"
	}
	if fenceRegex.MatchString(content) || codeRegex.MatchString(content) {
		return RoleCoding, 0.9, "code markers detected"
	}
	if reasonRegex.MatchString(content) {
		return RoleReasoning, 0.85, "deep-thought markers detected"
	}
	if toolRegex.MatchString(content) {
		return RoleStandard, 0.8, "explicit tool intent detected"
	}
	return RoleStandard, 0.5, "no strong signal, defaulting to standard"
}
