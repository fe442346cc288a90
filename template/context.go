package template

import (
	"log/slog"
	"runtime"
	"sync"
)

// AgentInfo identifies the agent the service is serving. It feeds the agent
// layer of the session context.
type AgentInfo struct {
	Name    string
	Class   string
	Version string
	Prefix  string
}

// Cache is the per-session layered variable context. The base context
// (system + agent roots plus project/category overlays) is built once per
// session and retained; it is dropped whenever the session changes project or
// the project configuration changes. Client data merged by the probe task
// survives until the next invalidation.
type Cache struct {
	mu     sync.RWMutex
	logger *slog.Logger
	agent  AgentInfo

	session string
	project string
	base    map[string]any // nil when dropped
	client  map[string]any
}

// NewCache creates a context cache.
func NewCache(agent AgentInfo, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{agent: agent, logger: logger}
}

// SetSession records the active session and project, dropping the cached
// context when either changes.
func (c *Cache) SetSession(session, project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session == c.session && project == c.project {
		return
	}
	c.logger.Debug("Session changed; dropping context cache",
		slog.String("session", session), slog.String("project", project))
	c.session = session
	c.project = project
	c.base = nil
	c.client = nil
}

// InvalidateProject drops the cached context after a project-configuration
// change. The next read rebuilds lazily.
func (c *Cache) InvalidateProject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = nil
	c.client = nil
}

// Session returns the active session identifier.
func (c *Cache) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Project returns the active project name.
func (c *Cache) Project() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.project
}

// MergeClient merges probe data under the client.<section> key, e.g.
// MergeClient("system", data) stores client.system.
func (c *Cache) MergeClient(section string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		c.client = map[string]any{}
	}
	c.client[section] = data
}

// ClientSection returns the merged probe data for a section.
func (c *Cache) ClientSection(section string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.client[section].(map[string]any)
	return m, ok
}

// Base returns the session base context, building it on first access after
// an invalidation. The returned map is a fresh copy per call.
func (c *Cache) Base() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		c.base = c.build()
	}
	out := make(map[string]any, len(c.base)+1)
	for k, v := range c.base {
		out[k] = v
	}
	if len(c.client) > 0 {
		client := make(map[string]any, len(c.client))
		for k, v := range c.client {
			client[k] = v
		}
		out["client"] = client
	}
	return out
}

// build assembles the system and agent roots with the project overlay.
func (c *Cache) build() map[string]any {
	base := map[string]any{
		"system": map[string]any{
			"os":       runtime.GOOS,
			"platform": runtime.GOARCH,
			"version":  runtime.Version(),
		},
		"agent": map[string]any{
			"name":    c.agent.Name,
			"class":   c.agent.Class,
			"version": c.agent.Version,
			"prefix":  c.agent.Prefix,
		},
		"@": "@",
	}
	if c.project != "" {
		base["project"] = map[string]any{"name": c.project}
	}
	return base
}

// Stack is the materialized scope chain for one render: layers ordered
// most-specific first, with first-hit-wins lookup at the top-level name.
type Stack struct {
	layers []map[string]any
}

// NewStack builds a scope chain from layers in most-specific-first order.
// Nil layers are skipped.
func NewStack(layers ...map[string]any) *Stack {
	s := &Stack{}
	for _, l := range layers {
		if l != nil {
			s.layers = append(s.layers, l)
		}
	}
	return s
}

// Child returns a new stack with an additional most-specific layer.
func (s *Stack) Child(layer map[string]any) *Stack {
	if layer == nil {
		return s
	}
	child := &Stack{layers: make([]map[string]any, 0, len(s.layers)+1)}
	child.layers = append(child.layers, layer)
	child.layers = append(child.layers, s.layers...)
	return child
}

// Lookup walks the chain; the first layer defining name wins.
func (s *Stack) Lookup(name string) (any, bool) {
	for _, layer := range s.layers {
		if v, ok := layer[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Flatten materializes the chain into a single map with first-hit-wins
// semantics: a name defined in a more specific layer shadows the whole value
// beneath it (layers are not deep-merged).
func (s *Stack) Flatten() map[string]any {
	out := map[string]any{}
	for i := len(s.layers) - 1; i >= 0; i-- {
		for k, v := range s.layers[i] {
			out[k] = v
		}
	}
	return out
}
