// Package orchestrator implements the Task Executor (C7): the deterministic
// state machine that turns one user message into a TaskResult by driving
// routing, tool execution, and synthesis to completion.
//
// The state machine:
//
//	INIT -> LLM_CALL
//	LLM_CALL -> TOOL_EXECUTION   (assistant message carries tool calls)
//	LLM_CALL -> LLM_CALL         (router DELEGATE; re-enter with selected role)
//	LLM_CALL -> SYNTHESIS        (model produced final content)
//	TOOL_EXECUTION -> LLM_CALL   (append tool results, loop)
//	SYNTHESIS -> COMPLETED
//	any -> FAILED                (fatal error)
//
// Grounded on the teacher's AgenticLoop (internal/agent/loop.go), re-targeted
// from a streaming chunk pipeline to the spec's synchronous FSM contract.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscore/agentd/internal/compaction"
	"github.com/nexuscore/agentd/internal/governance"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/monitor"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/sensor"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// Config tunes the executor's behavior; zero values fall back to defaults.
type Config struct {
	SystemPrompt string

	// ContextWindowKeepFirst/KeepRecent bound how many of the session's
	// existing messages are sent to the model: the first N (establishing
	// context) plus the most recent M, with ContextWindowMarker inserted
	// between them when messages were dropped.
	ContextWindowKeepFirst  int
	ContextWindowKeepRecent int

	// MaxContextTokens, when positive, is a hard token budget enforced on
	// top of ContextWindowKeepFirst/KeepRecent: if the windowed history
	// still estimates over budget (a long first-N or recent-M slice),
	// compaction.PruneHistoryForContextShare drops further recent messages
	// from the front until the budget is met.
	MaxContextTokens int

	MaxToolIterations    int
	MaxRepeatedToolCalls int
}

func (c Config) withDefaults() Config {
	if c.ContextWindowKeepFirst <= 0 {
		c.ContextWindowKeepFirst = 2
	}
	if c.ContextWindowKeepRecent <= 0 {
		c.ContextWindowKeepRecent = 40
	}
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = MaxToolIterations
	}
	if c.MaxRepeatedToolCalls <= 0 {
		c.MaxRepeatedToolCalls = MaxRepeatedToolCalls
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = "You are a local AI collaborator. Use tools when they help; otherwise answer directly."
	}
	return c
}

// Executor drives the Task Executor state machine. One Executor is shared
// across requests; Execute is safe for concurrent callers (each request owns
// its own ExecutionContext).
type Executor struct {
	cfg Config

	sessions   sessions.Store
	router     *router.Router
	toolExec   *tools.Executor
	registry   *tools.Registry
	governance *governance.Store
	modeMgr    *mode.Manager
	daemon     *sensor.Daemon
	bus        *telemetry.Bus
	llm        LLMAdapter
	compactor  *Compactor
}

// SetCompactor wires an optional Compactor that replaces the static
// ContextWindowMarker with a generated summary of the dropped messages. When
// unset, applyContextWindow falls back to the static marker.
func (e *Executor) SetCompactor(c *Compactor) {
	e.compactor = c
}

// New constructs a Task Executor.
func New(
	sessionStore sessions.Store,
	rt *router.Router,
	toolExec *tools.Executor,
	registry *tools.Registry,
	gov *governance.Store,
	modeMgr *mode.Manager,
	daemon *sensor.Daemon,
	bus *telemetry.Bus,
	llm LLMAdapter,
	cfg Config,
) *Executor {
	return &Executor{
		cfg:        cfg.withDefaults(),
		sessions:   sessionStore,
		router:     rt,
		toolExec:   toolExec,
		registry:   registry,
		governance: gov,
		modeMgr:    modeMgr,
		daemon:     daemon,
		bus:        bus,
		llm:        llm,
	}
}

// Execute is the single entry point: Execute(session_id, user_message,
// channel, trace_ctx) -> TaskResult.
func (e *Executor) Execute(ctx context.Context, sessionID, userMessage string, channel chatmodel.Channel, trace telemetry.TraceContext) TaskResult {
	timer := telemetry.NewTimer()
	ec := &ExecutionContext{
		TraceCtx:         trace,
		Channel:          channel,
		State:            StateInit,
		CallFingerprints: map[string]int{},
		startedAt:        time.Now(),
	}

	reqMon := monitor.Start(trace.TraceID, e.daemon, e.modeMgr)

	result := e.run(ctx, ec, sessionID, userMessage, timer)
	result.Duration = time.Since(ec.startedAt)

	summary := reqMon.Stop()
	e.emitCompletion(trace, ec, result, summary, timer)
	return result
}

func (e *Executor) run(ctx context.Context, ec *ExecutionContext, sessionID, userMessage string, timer *telemetry.Timer) TaskResult {
	if err := e.doInit(ctx, ec, sessionID, userMessage, timer); err != nil {
		return e.fail(ec, err)
	}
	if !e.transition(ec, StateLLMCall) {
		return e.fail(ec, NewTaskError(KindInternal, ec.State, "init did not reach llm_call", nil))
	}

	for {
		select {
		case <-ctx.Done():
			return e.fail(ec, NewTaskError(KindCancelled, ec.State, "request cancelled", ctx.Err()))
		default:
		}

		switch ec.State {
		case StateLLMCall:
			next, err := e.stepLLMCall(ctx, ec, timer)
			if err != nil {
				return e.fail(ec, err)
			}
			if !e.transition(ec, next) {
				return e.fail(ec, NewTaskError(KindInternal, ec.State, fmt.Sprintf("illegal transition to %s", next), nil))
			}
		case StateToolExecution:
			next, err := e.stepToolExecution(ctx, ec, timer)
			if err != nil {
				return e.fail(ec, err)
			}
			if !e.transition(ec, next) {
				return e.fail(ec, NewTaskError(KindInternal, ec.State, fmt.Sprintf("illegal transition to %s", next), nil))
			}
		case StateSynthesis:
			reply, err := e.stepSynthesis(ctx, ec, timer)
			if err != nil {
				return e.fail(ec, err)
			}
			e.transition(ec, StateCompleted)
			return TaskResult{
				SessionID:      sessionID,
				Reply:          reply,
				State:          StateCompleted,
				ToolIterations: ec.ToolIterations,
				RoutingHistory: ec.RoutingHistory,
				ToolCalls:      ec.ToolCalls,
			}
		default:
			return e.fail(ec, NewTaskError(KindInternal, ec.State, "unreachable state", nil))
		}
	}
}

func (e *Executor) transition(ec *ExecutionContext, to State) bool {
	if !canTransition(ec.State, to) {
		return false
	}
	ec.State = to
	return true
}

func (e *Executor) fail(ec *ExecutionContext, err error) TaskResult {
	ec.State = StateFailed
	taskErr, ok := err.(*TaskError)
	if !ok {
		taskErr = NewTaskError("", ec.State, "task failed", err)
	}
	return TaskResult{
		State:          StateFailed,
		Err:            taskErr,
		ToolIterations: ec.ToolIterations,
		RoutingHistory: ec.RoutingHistory,
		ToolCalls:      ec.ToolCalls,
	}
}

// doInit loads the session, applies the context window, appends the user's
// message, and starts the Request Monitor (done by the caller).
func (e *Executor) doInit(ctx context.Context, ec *ExecutionContext, sessionID, userMessage string, timer *telemetry.Timer) *TaskError {
	timer.Start("setup")
	defer timer.End("setup", nil)

	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return NewTaskError(KindUserInput, StateInit, "session not found", err)
	}
	if e.modeMgr != nil {
		session.Mode = string(e.modeMgr.Current())
	}

	ec.Session = e.applyContextWindow(ctx, session, e.cfg.ContextWindowKeepFirst, e.cfg.ContextWindowKeepRecent)
	ec.Session.AppendBounded(chatmodel.Message{Role: chatmodel.RoleUser, Content: userMessage})
	ec.State = StateInit
	return nil
}

// applyContextWindow keeps the first N and most recent M messages, inserting
// a marker for the dropped middle segment. The marker is a generated summary
// when a Compactor is configured, or the static ContextWindowMarker text
// otherwise.
func (e *Executor) applyContextWindow(ctx context.Context, session *chatmodel.Session, keepFirst, keepRecent int) *chatmodel.Session {
	clone := session.Clone()
	total := len(clone.Messages)
	if total <= keepFirst+keepRecent {
		return clone
	}

	first := clone.Messages[:keepFirst]
	dropped := clone.Messages[keepFirst : total-keepRecent]
	recent := clone.Messages[total-keepRecent:]

	markerContent := ContextWindowMarker
	if e.compactor != nil {
		if summary := e.compactor.Summarize(ctx, dropped); summary != "" {
			markerContent = summary
		}
	}
	marker := chatmodel.Message{Role: chatmodel.RoleSystem, Content: markerContent}

	trimmed := make([]chatmodel.Message, 0, keepFirst+1+keepRecent)
	trimmed = append(trimmed, first...)
	trimmed = append(trimmed, marker)
	trimmed = append(trimmed, recent...)

	if e.cfg.MaxContextTokens > 0 {
		pruned := compaction.PruneHistoryForContextShare(trimmed, e.cfg.MaxContextTokens, 1.0, 1)
		trimmed = pruned.Messages
	}

	clone.Messages = trimmed
	return clone
}

// stepLLMCall chooses a model role (first entry only) and calls the LLM
// adapter with the current message history and the mode-filtered tool list.
func (e *Executor) stepLLMCall(ctx context.Context, ec *ExecutionContext, timer *telemetry.Timer) (State, error) {
	timer.Start("routing")
	if len(ec.RoutingHistory) == 0 {
		userMessage := lastUserContent(ec.Session.Messages)
		result := e.router.Route(ctx, ec.Channel, userMessage)
		ec.RoutingHistory = append(ec.RoutingHistory, result)
		ec.SelectedRole = result.TargetModel
	}
	timer.End("routing", map[string]any{"role": string(ec.SelectedRole)})

	timer.Start("llm_call")
	defer timer.End("llm_call", nil)

	messages := buildMessages(e.cfg.SystemPrompt, ec.Session.Messages)
	toolDefs := e.toolDefinitions(ec)

	resp, err := e.llm.Complete(ctx, ec.SelectedRole, messages, toolDefs)
	if err != nil {
		return StateFailed, NewTaskError("", StateLLMCall, "llm call failed", err)
	}

	if len(resp.ToolCalls) > 0 {
		ec.Session.Messages = append(ec.Session.Messages, chatmodel.Message{
			Role:      chatmodel.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		return StateToolExecution, nil
	}

	ec.pendingContent = resp.Content
	return StateSynthesis, nil
}

func (e *Executor) toolDefinitions(ec *ExecutionContext) []ToolDefinitionJSON {
	if e.registry == nil {
		return nil
	}
	var allowed map[string]bool
	if e.governance != nil && e.modeMgr != nil {
		allowed = map[string]bool{}
		for _, def := range e.registry.Definitions(nil) {
			if decision := e.governance.CheckToolAllowed(def.Name, e.modeMgr.Current(), "orchestrator"); decision.Allowed {
				allowed[def.Name] = true
			}
		}
	}
	defs := e.registry.Definitions(allowed)
	out := make([]ToolDefinitionJSON, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolDefinitionJSON{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}
	return out
}

// stepToolExecution runs every pending tool call, guards against repeated
// calls, and appends results as tool messages.
func (e *Executor) stepToolExecution(ctx context.Context, ec *ExecutionContext, timer *telemetry.Timer) (State, error) {
	timer.Start("tool_execution")
	defer timer.End("tool_execution", nil)

	last := lastMessage(ec.Session.Messages)
	if last == nil || len(last.ToolCalls) == 0 {
		return StateSynthesis, nil
	}

	for _, call := range last.ToolCalls {
		fp := tools.Fingerprint(call)
		ec.CallFingerprints[fp]++
		if ec.CallFingerprints[fp] > e.cfg.MaxRepeatedToolCalls {
			ec.pendingContent = fmt.Sprintf("Stopped after repeating the %q tool call %d times without new progress.", call.Name, ec.CallFingerprints[fp])
			return StateSynthesis, nil
		}
	}

	currentMode := mode.Normal
	if e.modeMgr != nil {
		currentMode = e.modeMgr.Current()
	}
	results := e.toolExec.ExecuteAll(ctx, last.ToolCalls, currentMode, "orchestrator")
	for _, r := range results {
		ec.Session.Messages = append(ec.Session.Messages, chatmodel.Message{
			Role:       chatmodel.RoleTool,
			Content:    toolResultContent(r.Result),
			ToolCallID: r.Call.ID,
		})
		ec.ToolCalls = append(ec.ToolCalls, ToolCallRecord{
			Name:      r.Call.Name,
			Arguments: r.Call.Arguments,
			Success:   r.Result.Success,
			Error:     r.Result.Error,
			Duration:  r.Duration,
		})
	}

	ec.ToolIterations++
	if ec.ToolIterations > e.cfg.MaxToolIterations {
		ec.pendingContent = "Reached the maximum number of tool iterations for this request."
		return StateSynthesis, nil
	}
	return StateLLMCall, nil
}

func toolResultContent(r chatmodel.ToolResult) string {
	if r.Success {
		return r.Output
	}
	return "error=\"" + r.Error + "\""
}

// stepSynthesis finalises the reply: a pending result from llm_call/
// tool_execution is used directly; otherwise a final no-tools LLM call
// produces the reply, falling back to a summary of tool results if that
// call fails. The user and assistant messages are then persisted to the
// session store atomically.
func (e *Executor) stepSynthesis(ctx context.Context, ec *ExecutionContext, timer *telemetry.Timer) (string, error) {
	timer.Start("synthesis")
	defer timer.End("synthesis", nil)

	reply := ec.pendingContent
	if reply == "" {
		messages := buildMessages(e.cfg.SystemPrompt, ec.Session.Messages)
		resp, err := e.llm.Complete(ctx, ec.SelectedRole, messages, nil)
		if err != nil {
			reply = fallbackSummary(ec.Session.Messages)
		} else {
			reply = resp.Content
		}
	}

	timer.Start("persistence")
	defer timer.End("persistence", nil)

	if err := e.sessions.AppendMessage(ctx, sessionIDOf(ec), lastUserMessage(ec.Session.Messages)); err != nil {
		return "", NewTaskError("", StateSynthesis, "persist user message", err)
	}
	assistantMsg := chatmodel.Message{Role: chatmodel.RoleAssistant, Content: reply}
	if err := e.sessions.AppendMessage(ctx, sessionIDOf(ec), assistantMsg); err != nil {
		return "", NewTaskError("", StateSynthesis, "persist assistant message", err)
	}

	return reply, nil
}

func (e *Executor) emitCompletion(trace telemetry.TraceContext, ec *ExecutionContext, result TaskResult, summary monitor.Summary, timer *telemetry.Timer) {
	if e.bus == nil {
		return
	}
	level := telemetry.LevelInfo
	name := "request_trace"
	fields := map[string]any{
		"state":           string(result.State),
		"tool_iterations": result.ToolIterations,
		"sample_count":    summary.SampleCount,
	}
	if result.Err != nil {
		level = telemetry.LevelError
		fields["error_kind"] = string(result.Err.Kind)
		name = "request_cancelled_or_failed"
		if result.Err.Kind == KindCancelled {
			name = "request_cancelled"
		}
	}
	e.bus.Emit(trace, "", name, level, fields)

	for _, span := range timer.ToBreakdown() {
		e.bus.Emit(trace, "", "request_trace_step:"+span.Name, telemetry.LevelInfo, map[string]any{
			"phase":       string(span.Phase),
			"duration_ms": span.DurationMS,
			"sequence":    span.Sequence,
		})
	}
}

func buildMessages(systemPrompt string, history []chatmodel.Message) []chatmodel.Message {
	out := make([]chatmodel.Message, 0, len(history)+1)
	out = append(out, chatmodel.Message{Role: chatmodel.RoleSystem, Content: systemPrompt})
	out = append(out, history...)
	return out
}

func lastMessage(messages []chatmodel.Message) *chatmodel.Message {
	if len(messages) == 0 {
		return nil
	}
	return &messages[len(messages)-1]
}

func lastUserContent(messages []chatmodel.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chatmodel.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func lastUserMessage(messages []chatmodel.Message) chatmodel.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chatmodel.RoleUser {
			return messages[i]
		}
	}
	return chatmodel.Message{}
}

func sessionIDOf(ec *ExecutionContext) string {
	if ec.Session == nil {
		return ""
	}
	return ec.Session.ID
}

// fallbackSummary derives a plain-text reply from the tool results gathered
// so far, used when a final synthesis LLM call fails.
func fallbackSummary(messages []chatmodel.Message) string {
	var b strings.Builder
	b.WriteString("Unable to reach the model for a final answer. Tool results gathered so far:\n")
	count := 0
	for _, m := range messages {
		if m.Role != chatmodel.RoleTool {
			continue
		}
		count++
		fmt.Fprintf(&b, "- %s\n", truncate(m.Content, 200))
	}
	if count == 0 {
		return "Unable to reach the model for a final answer, and no tool results were gathered."
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
