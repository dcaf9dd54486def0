package orchestrator

import (
	"fmt"
	"strings"
)

// ErrorKind is the seven-kind error taxonomy governing how the Task Executor
// reacts to a failure: whether it retries, falls back, or fails the request.
type ErrorKind string

const (
	// KindUserInput is a malformed or invalid request. Never retried;
	// the task ends FAILED with a 400-equivalent status.
	KindUserInput ErrorKind = "user_input"

	// KindPolicyDenied means the Governance Store refused a tool call.
	// The failure is assistant-visible (surfaced as a ToolResult.error);
	// the tool loop may continue, and the call is never retried.
	KindPolicyDenied ErrorKind = "policy_denied"

	// KindUpstreamUnavailable is a transient failure of an external
	// dependency (model provider, tool backend). Retried with exponential
	// backoff up to a configured max, then falls to a deterministic
	// fallback synthesiser.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindParseFailure means a router or tool-call response could not be
	// parsed as JSON. Falls back to heuristic routing, or aborts the
	// current tool step with a ToolResult.error.
	KindParseFailure ErrorKind = "parse_failure"

	// KindResourceExhaustion means a tool-iteration or repeated-call cap
	// was hit. Deterministically transitions to SYNTHESIS with a
	// fallback reply; never retried.
	KindResourceExhaustion ErrorKind = "resource_exhaustion"

	// KindCancelled is a client- or shutdown-triggered cancellation. The
	// task is terminated promptly with a partial trace recorded.
	KindCancelled ErrorKind = "cancelled"

	// KindInternal is an invariant violation. Logged with a stack trace;
	// the request fails but the process continues running.
	KindInternal ErrorKind = "internal"
)

// Retryable reports whether an error of this kind may be retried by the
// caller (distinct from whether the Task Executor itself already retried
// internally for KindUpstreamUnavailable).
func (k ErrorKind) Retryable() bool {
	return k == KindUpstreamUnavailable
}

// TaskError is the structured error type the Task Executor produces,
// carrying enough context for telemetry and for the synthesis fallback to
// decide how to respond.
type TaskError struct {
	Kind    ErrorKind
	State   State
	Message string
	Cause   error
}

func (e *TaskError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s:%s]", e.Kind, e.State))
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *TaskError) Unwrap() error { return e.Cause }

// NewTaskError builds a TaskError, classifying cause when kind is empty.
func NewTaskError(kind ErrorKind, state State, message string, cause error) *TaskError {
	if kind == "" {
		kind = classify(cause)
	}
	return &TaskError{Kind: kind, State: state, Message: message, Cause: cause}
}

// classify infers an ErrorKind from an unclassified cause, mirroring the
// teacher's pattern-matching approach to error classification.
func classify(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context canceled") || strings.Contains(msg, "context deadline exceeded"):
		return KindCancelled
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "429") || strings.Contains(msg, "503"):
		return KindUpstreamUnavailable
	case strings.Contains(msg, "invalid json") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "parse"):
		return KindParseFailure
	case strings.Contains(msg, "denied") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "not allowed"):
		return KindPolicyDenied
	default:
		return KindInternal
	}
}
