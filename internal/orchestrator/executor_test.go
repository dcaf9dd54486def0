package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nexuscore/agentd/internal/governance"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

type scriptedLLM struct {
	responses []LLMResponse
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, role router.ModelRole, messages []chatmodel.Message, toolDefs []ToolDefinitionJSON) (LLMResponse, error) {
	if s.calls >= len(s.responses) {
		return LLMResponse{Content: "done"}, nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

type echoTool struct{}

func (echoTool) Definition() tools.Definition {
	return tools.Definition{Name: "echo", Description: "echoes input"}
}

func (echoTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func newTestExecutor(t *testing.T, llm LLMAdapter) (*Executor, sessions.Store, string) {
	t.Helper()
	store := sessions.NewMemoryStore()
	session, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, string(mode.Normal))
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	reg := tools.NewRegistry()
	reg.Register(echoTool{})

	gov := governance.NewStore([]*governance.ToolPolicy{
		{Name: "echo", RiskLevel: governance.RiskLow, AllowedInModes: map[mode.Mode]bool{mode.Normal: true}},
	})
	toolExec := tools.NewExecutor(reg, gov, tools.DefaultExecutorConfig())
	rt := router.New(router.Config{})

	exec := New(store, rt, toolExec, reg, gov, nil, nil, nil, llm, Config{})
	return exec, store, session.ID
}

func TestExecuteSimpleReplyReachesCompleted(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Content: "hello there"}}}
	exec, store, sessionID := newTestExecutor(t, llm)

	result := exec.Execute(context.Background(), sessionID, "Hello", chatmodel.ChannelChat, telemetry.NewTrace())
	if result.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s (err=%v)", result.State, result.Err)
	}
	if result.Reply != "hello there" {
		t.Fatalf("expected reply %q, got %q", "hello there", result.Reply)
	}

	session, err := store.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(session.Messages))
	}
}

func TestExecuteRunsToolThenSynthesizes(t *testing.T) {
	toolCallArgs, _ := json.Marshal(map[string]string{"x": "1"})
	llm := &scriptedLLM{responses: []LLMResponse{
		{ToolCalls: []chatmodel.ToolCall{{ID: "c1", Name: "echo", Arguments: toolCallArgs}}},
		{Content: "final answer"},
	}}
	exec, _, sessionID := newTestExecutor(t, llm)

	result := exec.Execute(context.Background(), sessionID, "run echo", chatmodel.ChannelChat, telemetry.NewTrace())
	if result.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s (err=%v)", result.State, result.Err)
	}
	if result.Reply != "final answer" {
		t.Fatalf("expected reply %q, got %q", "final answer", result.Reply)
	}
	if result.ToolIterations != 1 {
		t.Fatalf("expected 1 tool iteration, got %d", result.ToolIterations)
	}
}

func TestExecuteShortCircuitsOnRepeatedToolCall(t *testing.T) {
	toolCallArgs, _ := json.Marshal(map[string]string{"x": "1"})
	call := chatmodel.ToolCall{ID: "c1", Name: "echo", Arguments: toolCallArgs}
	var responses []LLMResponse
	for i := 0; i < 6; i++ {
		responses = append(responses, LLMResponse{ToolCalls: []chatmodel.ToolCall{call}})
	}
	llm := &scriptedLLM{responses: responses}
	exec, _, sessionID := newTestExecutor(t, llm)
	exec.cfg.MaxRepeatedToolCalls = 2

	result := exec.Execute(context.Background(), sessionID, "loop", chatmodel.ChannelChat, telemetry.NewTrace())
	if result.State != StateCompleted {
		t.Fatalf("expected COMPLETED (short-circuited), got %s (err=%v)", result.State, result.Err)
	}
	if result.Reply == "" {
		t.Fatalf("expected a short-circuit notice, got empty reply")
	}
}

func TestExecuteFailsOnUnknownSession(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Content: "hello"}}}
	exec, _, _ := newTestExecutor(t, llm)

	result := exec.Execute(context.Background(), "missing-session", "hi", chatmodel.ChannelChat, telemetry.NewTrace())
	if result.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", result.State)
	}
	if result.Err == nil || result.Err.Kind != KindUserInput {
		t.Fatalf("expected KindUserInput, got %+v", result.Err)
	}
}
