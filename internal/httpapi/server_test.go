package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexuscore/agentd/internal/governance"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

type stubLLM struct{ reply string }

func (s stubLLM) Complete(ctx context.Context, role router.ModelRole, messages []chatmodel.Message, toolDefs []orchestrator.ToolDefinitionJSON) (orchestrator.LLMResponse, error) {
	return orchestrator.LLMResponse{Content: s.reply}, nil
}

func newTestServer(t *testing.T) (*Server, sessions.Store) {
	t.Helper()
	store := sessions.NewMemoryStore()
	reg := tools.NewRegistry()
	gov := governance.NewStore(nil)
	toolExec := tools.NewExecutor(reg, gov, tools.DefaultExecutorConfig())
	rt := router.New(router.Config{})
	exec := orchestrator.New(store, rt, toolExec, reg, gov, nil, nil, nil, stubLLM{reply: "hi there"}, orchestrator.Config{})
	return New(Config{}, exec, store, nil, nil), store
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
}

func TestHandleCreateAndGetSession(t *testing.T) {
	srv, _ := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"channel":"CHAT"}`))
	createRec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}

	var session chatmodel.Session
	if err := json.Unmarshal(createRec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ID == "" {
		t.Fatalf("expected session id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID, nil)
	getRec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
}

func TestHandleChat(t *testing.T) {
	srv, store := newTestServer(t)
	session, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, string(mode.Normal))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	body := `{"session_id":"` + session.ID + `","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "hi there" {
		t.Fatalf("expected reply %q, got %q", "hi there", resp.Reply)
	}
}

func TestHandleChatRequiresSessionIDAndMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
