// Package server exposes the guidance core over a tool boundary: a named-tool
// registry, the documentation executor, and a JSON-lines serve loop.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ToolCall is one validated invocation arriving from the RPC layer.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// ToolResult is the JSON payload returned to the agent. Instruction injection
// operates on this mapping.
type ToolResult map[string]any

// ToolDefinition describes a tool for discovery.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Executor handles one or more named tools.
type Executor interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
	ListTools() []ToolDefinition
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Executor{}
)

// RegisterTool binds a tool name to an executor. Re-registering a name is an
// error.
func RegisterTool(name string, exec Executor) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	registry[name] = exec
	return nil
}

// LookupTool returns the executor for a tool name.
func LookupTool(name string) (Executor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exec, ok := registry[name]
	return exec, ok
}

// ListTools returns every registered tool definition, sorted by name.
func ListTools() []ToolDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := map[string]bool{}
	var defs []ToolDefinition
	for _, exec := range registry {
		for _, def := range exec.ListTools() {
			if seen[def.Name] {
				continue
			}
			seen[def.Name] = true
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ResetRegistryForTesting clears the registry.
func ResetRegistryForTesting() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]Executor{}
}
