// Package httpapi exposes the orchestrator over HTTP: POST /sessions,
// POST /chat, GET /sessions/{id}, GET /health. Grounded on the teacher's
// internal/gateway.Server.startHTTPServer, re-targeted from the teacher's
// webhook/websocket/web-UI surface to the spec's narrow REST contract, with
// the same net/http.ServeMux and Prometheus /metrics handler.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/observability"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// Server wires the Task Executor, session store, and mode manager behind an
// HTTP surface.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger

	executor *orchestrator.Executor
	sessions sessions.Store
	modeMgr  *mode.Manager
	started  time.Time
}

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// New builds a Server; call ListenAndServe to start it.
func New(cfg Config, executor *orchestrator.Executor, store sessions.Store, modeMgr *mode.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	s := &Server{
		log:      log,
		executor: executor,
		sessions: store,
		modeMgr:  modeMgr,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionByID)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/config/schema", s.handleConfigSchema)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// WithMetrics wraps the server's handler to record HTTPRequestDuration and
// HTTPRequestCounter on every request. Call once after New, before
// ListenAndServe.
func (s *Server) WithMetrics(m *observability.Metrics) *Server {
	if m == nil {
		return s
	}
	next := s.httpServer.Handler
	s.httpServer.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
	})
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ListenAndServe blocks until the server stops or ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http server shutdown error", "error", err)
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":     "ok",
		"uptime_sec": int(time.Since(s.started).Seconds()),
	}
	if s.modeMgr != nil {
		payload["mode"] = string(s.modeMgr.Current())
	}
	writeJSON(w, http.StatusOK, payload)
}

type createSessionRequest struct {
	Channel string `json:"channel"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	channel := chatmodel.Channel(req.Channel)
	if channel == "" {
		channel = chatmodel.ChannelChat
	}
	currentMode := ""
	if s.modeMgr != nil {
		currentMode = string(s.modeMgr.Current())
	}

	session, err := s.sessions.CreateSession(r.Context(), channel, currentMode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len("/sessions/"):]
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	session, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		if err == sessions.ErrNotFound {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

type chatResponse struct {
	SessionID      string                 `json:"session_id"`
	Reply          string                 `json:"reply"`
	State          string                 `json:"state"`
	ToolIterations int                    `json:"tool_iterations"`
	RoutingHistory []router.RoutingResult `json:"routing_history,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.SessionID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("session_id and message are required"))
		return
	}
	channel := chatmodel.Channel(req.Channel)
	if channel == "" {
		channel = chatmodel.ChannelChat
	}

	trace := telemetry.NewTrace()
	result := s.executor.Execute(r.Context(), req.SessionID, req.Message, channel, trace)

	resp := chatResponse{
		SessionID:      result.SessionID,
		Reply:          result.Reply,
		State:          string(result.State),
		ToolIterations: result.ToolIterations,
		RoutingHistory: result.RoutingHistory,
	}
	status := http.StatusOK
	if result.Err != nil {
		resp.Error = result.Err.Error()
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// handleConfigSchema serves the JSON Schema for the config file, letting
// operators validate a nexuscore.yaml before restarting the daemon with it.
func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	schema, err := config.JSONSchema()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
