package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAdapterCompleteReturnsContent(t *testing.T) {
	srv := newTestServer(t, `{
		"id": "resp1", "object": "chat.completion", "created": 1,
		"model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello there"}}]
	}`)

	adapter, err := NewOpenAIAdapter(config.LLMProviderConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, map[router.ModelRole]string{
		router.RoleStandard: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter() error = %v", err)
	}

	resp, err := adapter.Complete(context.Background(), router.RoleStandard, []chatmodel.Message{
		{Role: chatmodel.RoleUser, Content: "hi"},
	}, nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("expected content %q, got %q", "hello there", resp.Content)
	}
}

func TestOpenAIAdapterCompleteReturnsToolCalls(t *testing.T) {
	srv := newTestServer(t, `{
		"id": "resp1", "object": "chat.completion", "created": 1,
		"model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant",
			"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "echo", "arguments": "{\"x\":1}"}}]
		}}]
	}`)

	adapter, err := NewOpenAIAdapter(config.LLMProviderConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, map[router.ModelRole]string{
		router.RoleStandard: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter() error = %v", err)
	}

	resp, err := adapter.Complete(context.Background(), router.RoleStandard, []chatmodel.Message{
		{Role: chatmodel.RoleUser, Content: "run echo"},
	}, []orchestrator.ToolDefinitionJSON{
		{Name: "echo", Description: "echoes", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "echo" {
		t.Fatalf("expected one echo tool call, got %+v", resp.ToolCalls)
	}
}

func TestNewOpenAIAdapterRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIAdapter(config.LLMProviderConfig{}, nil); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
