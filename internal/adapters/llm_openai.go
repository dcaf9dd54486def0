// Package adapters implements the External Adapters boundary (C10): the
// narrow interfaces the orchestrator drives (LLMAdapter), plus the concrete
// collaborators wired to real third-party services at startup.
//
// Grounded on the teacher's internal/agent/providers.OpenAIProvider,
// re-targeted from a streaming chunk channel to the synchronous
// orchestrator.LLMAdapter.Complete contract: one request, one response, no
// partial-token delivery.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// OpenAIAdapter implements orchestrator.LLMAdapter against OpenAI's chat
// completions API, resolving router.ModelRole to a configured model name
// per provider profile.
type OpenAIAdapter struct {
	client     *openai.Client
	roleModels map[router.ModelRole]string
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIAdapter builds an adapter from the LLM section of Config.
// roleModels maps ModelRole to the model name to request; STANDARD must be
// present as the fallback for any role without a specific entry.
func NewOpenAIAdapter(cfg config.LLMProviderConfig, roleModels map[router.ModelRole]string) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("adapters: openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientCfg),
		roleModels: roleModels,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

func (a *OpenAIAdapter) modelFor(role router.ModelRole) string {
	if m, ok := a.roleModels[role]; ok && m != "" {
		return m
	}
	return a.roleModels[router.RoleStandard]
}

// Complete implements orchestrator.LLMAdapter.
func (a *OpenAIAdapter) Complete(ctx context.Context, role router.ModelRole, messages []chatmodel.Message, toolDefs []orchestrator.ToolDefinitionJSON) (orchestrator.LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.modelFor(role),
		Messages: toOpenAIMessages(messages),
	}
	if len(toolDefs) > 0 {
		req.Tools = toOpenAITools(toolDefs)
	}

	var resp openai.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return orchestrator.LLMResponse{}, ctx.Err()
			case <-time.After(a.retryDelay * time.Duration(attempt)):
			}
		}
		resp, lastErr = a.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if !isRetryable(lastErr) {
			return orchestrator.LLMResponse{}, fmt.Errorf("adapters: openai completion: %w", lastErr)
		}
	}
	if lastErr != nil {
		return orchestrator.LLMResponse{}, fmt.Errorf("adapters: openai completion exhausted retries: %w", lastErr)
	}
	if len(resp.Choices) == 0 {
		return orchestrator.LLMResponse{}, fmt.Errorf("adapters: openai completion returned no choices")
	}

	choice := resp.Choices[0]
	out := orchestrator.LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chatmodel.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []chatmodel.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, oaiMsg)
	}
	return out
}

func toOpenAITools(defs []orchestrator.ToolDefinitionJSON) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if err := json.Unmarshal(d.Schema, &schema); err != nil || schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	return false
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}
