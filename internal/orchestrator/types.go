package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// State is one node of the Task Executor's state machine.
type State string

const (
	StateInit          State = "INIT"
	StateLLMCall       State = "LLM_CALL"
	StateToolExecution State = "TOOL_EXECUTION"
	StateSynthesis     State = "SYNTHESIS"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
)

// allowed records the legal transitions out of each state; any transition
// not listed here (other than "any -> FAILED", checked separately) is an
// invariant violation.
var allowed = map[State][]State{
	StateInit:          {StateLLMCall},
	StateLLMCall:       {StateToolExecution, StateLLMCall, StateSynthesis},
	StateToolExecution: {StateLLMCall, StateSynthesis},
	StateSynthesis:     {StateCompleted},
}

func canTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ExecutionContext is the mutable state threaded through one task's
// execution, serial per request: only one LLM call may be in flight at a
// time for a given ExecutionContext.
type ExecutionContext struct {
	TraceCtx telemetry.TraceContext
	Session  *chatmodel.Session
	Channel  chatmodel.Channel

	State            State
	SelectedRole     router.ModelRole
	RoutingHistory   []router.RoutingResult
	ToolIterations   int
	CallFingerprints map[string]int
	ToolCalls        []ToolCallRecord

	// pendingContent carries a reply produced by llm_call or tool_execution
	// (e.g. a repeated-tool-call or max-iterations notice) directly into
	// synthesis, skipping a redundant final LLM call.
	pendingContent string

	startedAt time.Time
}

// TaskResult is the outcome of one Execute call.
type TaskResult struct {
	SessionID      string
	Reply          string
	State          State
	Err            *TaskError
	ToolIterations int
	RoutingHistory []router.RoutingResult
	ToolCalls      []ToolCallRecord
	Duration       time.Duration
}

// ToolCallRecord is one tool invocation made during a task, kept for
// rendering in the chat CLI via internal/tools.ResolveToolDisplay rather
// than only surfacing the aggregate ToolIterations count.
type ToolCallRecord struct {
	Name      string
	Arguments json.RawMessage
	Success   bool
	Error     string
	Duration  time.Duration
}

// Display resolves a human-readable summary line for this call, grounded
// on internal/tools.ResolveToolDisplay's emoji/label/detail resolution.
func (r ToolCallRecord) Display() string {
	var args any
	if len(r.Arguments) > 0 {
		_ = json.Unmarshal(r.Arguments, &args)
	}
	d := tools.ResolveToolDisplay(r.Name, args, "")
	summary := tools.FormatToolSummary(d)
	if !r.Success && r.Error != "" {
		summary += " (failed: " + r.Error + ")"
	}
	return summary
}

// MaxToolIterations bounds how many tool_execution -> llm_call loops one
// task may take before synthesis is forced.
const MaxToolIterations = 8

// MaxRepeatedToolCalls bounds how many times the identical (name, args)
// fingerprint may be invoked before synthesis is forced early.
const MaxRepeatedToolCalls = 3

// ContextWindowMarker is inserted in place of messages dropped by context
// window truncation, per the init step's truncation contract.
const ContextWindowMarker = "[Earlier messages truncated]"

// LLMAdapter is the narrow interface the Task Executor uses to call a
// model (C10). A single call may return either a final assistant message
// or a set of tool calls, never both populated.
type LLMAdapter interface {
	Complete(ctx context.Context, role router.ModelRole, messages []chatmodel.Message, toolDefs []ToolDefinitionJSON) (LLMResponse, error)
}

// ToolDefinitionJSON is the wire shape of a tool definition sent to an LLM.
type ToolDefinitionJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      []byte `json:"schema"`
}

// LLMResponse is what one LLMAdapter.Complete call returns.
type LLMResponse struct {
	Content      string
	ToolCalls    []chatmodel.ToolCall
	RoutingJSON  []byte // non-nil when role == ROUTER and the model proposed a route
	FinishReason string
}
