// Package models exposes the Model Router's model catalog as a callable
// tool, so an agent can discover which models it may be routed to and why,
// grounded on the teacher's internal/tools/models.Tool (list/providers
// actions; "refresh" dropped, this module has no Bedrock-style discovery
// service to refresh from).
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentd/internal/models"
	"github.com/nexuscore/agentd/internal/tools"
)

// Tool exposes model catalog discovery to the Task Executor (C7) and, via
// the chat CLI, directly to the operator.
type Tool struct {
	catalog *models.Catalog
}

// NewTool creates a models catalog tool. A nil catalog is accepted so
// wiring can register the tool unconditionally; Invoke reports an error.
func NewTool(catalog *models.Catalog) *Tool {
	return &Tool{catalog: catalog}
}

func (t *Tool) Definition() tools.Definition {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "list or providers",
			},
			"provider": map[string]any{
				"type":        "string",
				"description": "Filter by provider (list).",
			},
			"capability": map[string]any{
				"type":        "string",
				"description": "Filter by capability (list), e.g. vision, tools, reasoning.",
			},
			"tier": map[string]any{
				"type":        "string",
				"description": "Filter by tier (list): flagship, standard, fast, mini.",
			},
			"include_deprecated": map[string]any{
				"type":        "boolean",
				"description": "Include deprecated models in list results.",
			},
		},
		"required": []string{"action"},
	})
	return tools.Definition{
		Name:        "models",
		Description: "List models the Model Router may target and their capabilities.",
		Schema:      schema,
	}
}

func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	if t.catalog == nil {
		return "", fmt.Errorf("models: catalog unavailable")
	}
	var input struct {
		Action            string `json:"action"`
		Provider          string `json:"provider"`
		Capability        string `json:"capability"`
		Tier              string `json:"tier"`
		IncludeDeprecated bool   `json:"include_deprecated"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return "", fmt.Errorf("models: invalid arguments: %w", err)
		}
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))

	switch action {
	case "", "list":
		filter := models.Filter{IncludeDeprecated: input.IncludeDeprecated}
		if p := strings.TrimSpace(input.Provider); p != "" {
			filter.Providers = []models.Provider{models.Provider(strings.ToLower(p))}
		}
		if c := strings.TrimSpace(input.Capability); c != "" {
			filter.RequiredCapabilities = []models.Capability{models.Capability(strings.ToLower(c))}
		}
		if tr := strings.TrimSpace(input.Tier); tr != "" {
			filter.Tiers = []models.Tier{models.Tier(strings.ToLower(tr))}
		}
		return jsonResult(map[string]any{"models": t.catalog.List(&filter)})
	case "providers":
		seen := map[models.Provider]bool{}
		var providers []models.Provider
		for _, m := range t.catalog.List(nil) {
			if !seen[m.Provider] {
				seen[m.Provider] = true
				providers = append(providers, m.Provider)
			}
		}
		return jsonResult(map[string]any{"providers": providers})
	default:
		return "", fmt.Errorf("models: unsupported action %q", action)
	}
}

func jsonResult(payload any) (string, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("models: encode result: %w", err)
	}
	return string(encoded), nil
}
