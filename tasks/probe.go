package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/guidance/events"
	"github.com/c360studio/guidance/flags"
	"github.com/c360studio/guidance/ledger"
	"github.com/c360studio/guidance/template"
)

// Probe protocol file names (path-matched against FS_FILE_CONTENT events).
const (
	OSProbeFile      = ".client-os.json"
	ContextProbeFile = ".client-context.json"
)

// AllowClientInfoFlag gates the probe: the whole task is inert unless the
// resolved flag is truthy.
const AllowClientInfoFlag = "allow-client-info"

const (
	osProbeInstruction = "Write a JSON file named " + OSProbeFile +
		` in the project root with the shape {"client": {"system": {"os": ..., "platform": ..., "version": ...}}} describing your host environment.`
	contextProbeInstruction = "Write a JSON file named " + ContextProbeFile +
		` in the project root with the shape {"client": {"user": {...}, "repo": {...}}} describing the active user and repository.`
)

// Probe asks the agent to emit client-environment JSON files and merges their
// contents into the session context cache.
type Probe struct {
	coord   Coordinator
	cache   *template.Cache
	resolve template.FlagResolver
	root    string
	logger  *slog.Logger

	osID  string
	ctxID string
}

// NewProbe creates the client-context probe.
func NewProbe(coord Coordinator, cache *template.Cache, resolve template.FlagResolver, root string, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{coord: coord, cache: cache, resolve: resolve, root: root, logger: logger}
}

func (p *Probe) Name() string { return "client-probe" }

func (p *Probe) Kinds() events.Kind { return events.FSFileContent | events.FSCommand }

func (p *Probe) Interval() time.Duration { return 0 }

// OnInit queues the OS probe iff the allow-client-info flag resolves truthy.
func (p *Probe) OnInit(ctx context.Context) error {
	v, ok := p.resolve(AllowClientInfoFlag)
	if !ok || !flags.Truthy(v) {
		p.logger.Debug("Client probing disabled", slog.String("flag", AllowClientInfoFlag))
		return nil
	}
	p.osID = p.coord.QueueTracked(osProbeInstruction, ledger.DefaultMaxRetries, true)
	return nil
}

func (p *Probe) OnTool(ctx context.Context) {}

func (p *Probe) HandleEvent(kinds events.Kind, data events.Data) bool {
	if !kinds.Has(events.FSFileContent) && !kinds.Has(events.FSCommand) {
		return true
	}
	// Probe files live at the project root: exact-path match only.
	switch filepath.ToSlash(data.Path) {
	case OSProbeFile:
		p.onOSProbe(data.Path)
	case ContextProbeFile:
		p.onContextProbe(data.Path)
	}
	return true
}

// onOSProbe parses the OS response, merges client.system, and queues the
// follow-up context probe. Malformed JSON leaves the tracked id
// unacknowledged so the retry pump re-queues the request.
func (p *Probe) onOSProbe(path string) {
	client, ok := p.readClientPayload(path)
	if !ok {
		return
	}
	system, ok := client["system"].(map[string]any)
	if !ok {
		p.logger.Warn("OS probe response missing client.system", slog.String("path", path))
		return
	}

	if p.osID != "" {
		p.coord.Acknowledge(p.osID)
		p.osID = ""
	}
	p.cache.MergeClient("system", system)
	p.ctxID = p.coord.QueueTracked(contextProbeInstruction, ledger.DefaultMaxRetries, false)
}

// onContextProbe merges client.user and client.repo from the second response.
func (p *Probe) onContextProbe(path string) {
	client, ok := p.readClientPayload(path)
	if !ok {
		return
	}

	if p.ctxID != "" {
		p.coord.Acknowledge(p.ctxID)
		p.ctxID = ""
	}
	if user, ok := client["user"].(map[string]any); ok {
		p.cache.MergeClient("user", user)
	}
	if repo, ok := client["repo"].(map[string]any); ok {
		p.cache.MergeClient("repo", repo)
	}
}

// readClientPayload loads a probe file and returns its "client" mapping.
func (p *Probe) readClientPayload(path string) (map[string]any, bool) {
	data, err := os.ReadFile(filepath.Join(p.root, path))
	if err != nil {
		p.logger.Warn("Probe file unreadable",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		p.logger.Warn("Probe file is not valid JSON",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	client, ok := payload["client"].(map[string]any)
	if !ok {
		p.logger.Warn("Probe file missing client mapping", slog.String("path", path))
		return nil, false
	}
	return client, true
}
