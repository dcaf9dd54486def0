package governance

import (
	"strings"
	"sync"

	"github.com/nexuscore/agentd/internal/mode"
)

// riskKeywords classifies a tool/action name by the verbs it contains, per
// spec.md's MCP auto-discovery contract: HIGH verbs mutate or transmit
// state, LOW verbs only read it, anything else defaults to MEDIUM.
var (
	highRiskVerbs = []string{"write", "delete", "execute", "send", "create", "modify", "update", "remove"}
	lowRiskVerbs  = []string{"read", "get", "list", "search", "query", "view", "show", "fetch"}
)

// InferRiskLevel classifies an MCP tool name by keyword, matching the first
// HIGH verb it contains, then the first LOW verb, defaulting to MEDIUM.
func InferRiskLevel(toolName string) RiskLevel {
	lower := strings.ToLower(toolName)
	for _, v := range highRiskVerbs {
		if strings.Contains(lower, v) {
			return RiskHigh
		}
	}
	for _, v := range lowRiskVerbs {
		if strings.Contains(lower, v) {
			return RiskLow
		}
	}
	return RiskMedium
}

// allowedModesForRisk is the template §C2's auto-discovery describes:
// progressively narrower mode sets as inferred risk rises. LOCKDOWN never
// admits an auto-discovered tool; only hand-authored policy entries can.
func allowedModesForRisk(risk RiskLevel) map[mode.Mode]bool {
	switch risk {
	case RiskHigh:
		return map[mode.Mode]bool{mode.Normal: true}
	case RiskMedium:
		return map[mode.Mode]bool{mode.Normal: true, mode.Alert: true, mode.Recovery: true}
	default:
		return map[mode.Mode]bool{mode.Normal: true, mode.Alert: true, mode.Degraded: true, mode.Recovery: true}
	}
}

// autoDiscovered tracks tool names the Store generated a policy for itself,
// as opposed to ones loaded from the policy file, so RegisterMCPServer can
// report which servers are running on generated-vs-authored policy.
type autoDiscoveryState struct {
	mu          sync.Mutex
	serverTools map[string][]string
}

// EnsureToolConfigured implements spec.md's MCP auto-discovery API: it is
// idempotent (a pre-existing, possibly hand-customised, policy is left
// untouched) and otherwise appends a generated entry under category "mcp"
// with allowed modes and approval requirement derived from inferredRisk.
// schema is accepted to match the documented signature but is not retained;
// the Tool Registry, not the Governance Store, is schema's owner.
func (s *Store) EnsureToolConfigured(toolName string, schema []byte, inferredRisk RiskLevel) *ToolPolicy {
	s.mu.Lock()
	if existing, ok := s.policies[toolName]; ok {
		s.mu.Unlock()
		return existing
	}
	s.mu.Unlock()

	policy, err := NewToolPolicy(ToolPolicy{
		Name:             toolName,
		Category:         "mcp",
		RiskLevel:        inferredRisk,
		AllowedInModes:   allowedModesForRisk(inferredRisk),
		RequiresApproval: inferredRisk == RiskHigh,
	})
	if err != nil {
		// ForbiddenPaths/AllowedPaths are empty for a generated entry, so
		// glob compilation cannot fail; this branch exists only to satisfy
		// NewToolPolicy's signature.
		policy = &ToolPolicy{Name: toolName, Category: "mcp", RiskLevel: inferredRisk}
	}

	s.mu.Lock()
	if existing, ok := s.policies[toolName]; ok {
		s.mu.Unlock()
		return existing
	}
	s.policies[toolName] = policy
	if s.mcp == nil {
		s.mcp = &autoDiscoveryState{serverTools: make(map[string][]string)}
	}
	s.mu.Unlock()
	return policy
}

// RegisterAlias implements mcp.ToolPolicyRegistrar: it auto-configures the
// registry-facing alias name, inferring risk from the MCP-canonical name
// (server.tool) so risk classification survives whatever name-mangling the
// bridge applied to avoid collisions.
func (s *Store) RegisterAlias(alias string, canonical string) {
	s.EnsureToolConfigured(alias, nil, InferRiskLevel(canonical))
}

// RegisterMCPServer implements mcp.ToolPolicyRegistrar, recording which
// tool names came from which MCP server so MCPServerTools can report it
// (e.g. from a future `telemetry` or status CLI command).
func (s *Store) RegisterMCPServer(serverID string, toolNames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mcp == nil {
		s.mcp = &autoDiscoveryState{serverTools: make(map[string][]string)}
	}
	s.mcp.mu.Lock()
	s.mcp.serverTools[serverID] = append([]string(nil), toolNames...)
	s.mcp.mu.Unlock()
}

// MCPServerTools reports the tool names RegisterMCPServer recorded for
// serverID, for status reporting.
func (s *Store) MCPServerTools(serverID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mcp == nil {
		return nil
	}
	s.mcp.mu.Lock()
	defer s.mcp.mu.Unlock()
	return append([]string(nil), s.mcp.serverTools[serverID]...)
}
