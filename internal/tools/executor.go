package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nexuscore/agentd/internal/backoff"
	"github.com/nexuscore/agentd/internal/governance"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// ExecutorConfig configures the parallel tool executor.
type ExecutorConfig struct {
	MaxConcurrency int
	DefaultTimeout time.Duration
	DefaultRetries int
	BackoffPolicy  backoff.BackoffPolicy
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
		DefaultRetries: 2,
		BackoffPolicy:  backoff.DefaultPolicy(),
	}
}

// Executor runs tool calls concurrently, bounded by a semaphore, with
// governance enforcement (mode allow-list, path validation, rate limiting)
// and panic-recovering retry with backoff for UpstreamUnavailable-class
// failures.
type Executor struct {
	registry   *Registry
	governance *governance.Store
	cfg        ExecutorConfig
	sem        chan struct{}
}

// NewExecutor constructs an Executor.
func NewExecutor(registry *Registry, gov *governance.Store, cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Executor{
		registry:   registry,
		governance: gov,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Result is the outcome of one tool call, including the original call for
// fingerprinting/bookkeeping by the orchestrator.
type Result struct {
	Call     chatmodel.ToolCall
	Result   chatmodel.ToolResult
	Duration time.Duration
}

// ExecuteAll runs calls concurrently (bounded by MaxConcurrency), preserving
// input order in the returned slice.
func (e *Executor) ExecuteAll(ctx context.Context, calls []chatmodel.ToolCall, currentMode mode.Mode, caller string) []Result {
	results := make([]Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call chatmodel.ToolCall) {
			defer wg.Done()
			e.sem <- struct{}{}
			defer func() { <-e.sem }()
			results[i] = e.executeOne(ctx, call, currentMode, caller)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (e *Executor) executeOne(ctx context.Context, call chatmodel.ToolCall, currentMode mode.Mode, caller string) Result {
	start := time.Now()
	res := chatmodel.ToolResult{ToolName: call.Name, ToolCallID: call.ID}

	if err := validateCall(call.Name, call.Arguments); err != nil {
		res.Error = err.Error()
		res.LatencyMS = time.Since(start).Milliseconds()
		return Result{Call: call, Result: res, Duration: time.Since(start)}
	}

	if e.governance != nil {
		decision := e.governance.CheckToolAllowed(call.Name, currentMode, caller)
		if !decision.Allowed {
			res.Error = decision.Reason
			res.Metadata = map[string]any{"rate_limited": decision.RateLimited}
			res.LatencyMS = time.Since(start).Milliseconds()
			return Result{Call: call, Result: res, Duration: time.Since(start)}
		}
		if policy, ok := e.governance.Policy(call.Name); ok && policy.PathArgKey != "" {
			if path, ok := extractStringArg(call.Arguments, policy.PathArgKey); ok {
				if pd := governance.ValidatePath(path, policy); !pd.Allowed {
					res.Error = "path denied"
					res.LatencyMS = time.Since(start).Milliseconds()
					return Result{Call: call, Result: res, Duration: time.Since(start)}
				}
			}
		}
	}

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		res.Error = "tool not found: " + call.Name
		res.LatencyMS = time.Since(start).Milliseconds()
		return Result{Call: call, Result: res, Duration: time.Since(start)}
	}

	timeout := e.cfg.DefaultTimeout
	retries := e.cfg.DefaultRetries
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries <= 0 {
		retries = 1
	}

	output, err := e.invokeWithRetry(ctx, tool, call.Arguments, timeout, retries)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Output = output
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	return Result{Call: call, Result: res, Duration: time.Since(start)}
}

func (e *Executor) invokeWithRetry(ctx context.Context, tool Tool, args []byte, timeout time.Duration, maxAttempts int) (string, error) {
	result, err := backoff.RetryWithBackoff(ctx, e.cfg.BackoffPolicy, maxAttempts, func(attempt int) (string, error) {
		return e.invokeOnce(ctx, tool, args, timeout)
	})
	return result.Value, err
}

func (e *Executor) invokeOnce(ctx context.Context, tool Tool, args []byte, timeout time.Duration) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v\n%s", r, debug.Stack())
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return tool.Invoke(callCtx, args)
}

func extractStringArg(args []byte, key string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
