// Package tools implements the Tool Registry & Executor (C5): a
// thread-safe registry of callable tools and a panic-recovering,
// concurrency-limited executor with retry/backoff and governance
// enforcement, grounded on the teacher's agent.ToolRegistry/Executor.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// MaxToolNameLength and MaxToolParamsSize bound resource use per call.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// Definition describes a callable tool, mirroring spec.md's ToolDefinition.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Tool is a callable tool implementation.
type Tool interface {
	Definition() Definition
	Invoke(ctx context.Context, args json.RawMessage) (output string, err error)
}

// Registry holds registered tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition().Name] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all registered tool definitions, filtered to the
// given allow-list of names when non-nil (used to scope the tool list the
// orchestrator sends to the LLM to those permitted in the current mode).
func (r *Registry) Definitions(allowed map[string]bool) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for name, t := range r.tools {
		if allowed != nil && !allowed[name] {
			continue
		}
		defs = append(defs, t.Definition())
	}
	return defs
}

func validateCall(name string, args json.RawMessage) error {
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength)
	}
	if len(args) > MaxToolParamsSize {
		return fmt.Errorf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize)
	}
	return nil
}

// fingerprint identifies a (name, normalized args) pair for the orchestrator's
// repeated-tool-call short-circuiting.
func fingerprint(call chatmodel.ToolCall) string {
	var normalized map[string]any
	if err := json.Unmarshal(call.Arguments, &normalized); err != nil {
		return call.Name + ":" + string(call.Arguments)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return call.Name + ":" + string(call.Arguments)
	}
	return call.Name + ":" + string(canonical)
}

// Fingerprint exposes fingerprint for the orchestrator.
func Fingerprint(call chatmodel.ToolCall) string {
	return fingerprint(call)
}
