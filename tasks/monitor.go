package tasks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/guidance/events"
	"github.com/c360studio/guidance/ledger"
	"github.com/c360studio/guidance/workflow"
)

// Template names the monitor renders.
const (
	monitorSetupTemplate    = "monitoring-setup"
	monitorResultTemplate   = "monitoring-result"
	monitorReminderTemplate = "monitoring-reminder"
)

// reminderInterval is the monitor's timer cadence when the config gives none.
const reminderInterval = 60 * time.Second

// Monitor watches the workflow-state file, diffs each new parse against the
// previous state, and queues a template-derived instruction per change. On
// timer ticks with an empty queue it queues a reminder.
type Monitor struct {
	coord     Coordinator
	render    Renderer
	root      string
	stateFile string // relative to root, e.g. ".guide.yaml"
	interval  time.Duration
	phases    workflow.PhaseList
	logger    *slog.Logger

	prev    *workflow.State
	heldIDs []string
}

// NewMonitor creates the workflow monitor. stateFile is the state path
// relative to the project root; interval is the reminder cadence (<= 0 falls
// back to the default); phases supplies the consent markers exposed to
// phase-change templates.
func NewMonitor(coord Coordinator, render Renderer, root, stateFile string, interval time.Duration, phases workflow.PhaseList, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = reminderInterval
	}
	return &Monitor{
		coord:     coord,
		render:    render,
		root:      root,
		stateFile: filepath.ToSlash(stateFile),
		interval:  interval,
		phases:    phases,
		logger:    logger,
	}
}

func (m *Monitor) Name() string { return "workflow-monitor" }

func (m *Monitor) Kinds() events.Kind { return events.FSFileContent | events.Timer }

func (m *Monitor) Interval() time.Duration { return m.interval }

// OnInit queues the monitoring-setup instruction as priority-tracked. The
// first workflow-file response acknowledges it.
func (m *Monitor) OnInit(ctx context.Context) error {
	if id := m.queueRendered(monitorSetupTemplate, nil, true); id != "" {
		m.heldIDs = append(m.heldIDs, id)
	}
	// Seed the previous state from disk when the file already exists.
	if st, err := m.readState(); err == nil {
		m.prev = st
	}
	return nil
}

func (m *Monitor) OnTool(ctx context.Context) {}

func (m *Monitor) HandleEvent(kinds events.Kind, data events.Data) bool {
	if kinds.Has(events.FSFileContent) && m.isStateFile(data.Path) {
		m.onStateFileChanged()
	}
	if kinds.Has(events.Timer) && m.coord.IsQueueEmpty() {
		m.queueReminder()
	}
	return true
}

// isStateFile matches the exact relative path the watcher reports; a copy of
// the file elsewhere in the tree is not the workflow state.
func (m *Monitor) isStateFile(path string) bool {
	return filepath.ToSlash(path) == m.stateFile
}

// onStateFileChanged acknowledges the held tracked ids, re-parses the state
// file, and queues one instruction per change. A parse failure keeps the
// previous state and suppresses change events.
func (m *Monitor) onStateFileChanged() {
	for _, id := range m.heldIDs {
		m.coord.Acknowledge(id)
	}
	m.heldIDs = nil

	next, err := m.readState()
	if err != nil {
		m.logger.Warn("Workflow state unreadable; keeping previous state",
			slog.String("file", m.stateFile),
			slog.String("error", err.Error()))
		return
	}

	changes := next.Diff(m.prev)
	m.prev = next

	for _, change := range changes {
		m.queueChange(change)
	}
}

// queueChange maps one state change to a tracked instruction: phase changes
// render the "*<new_phase>" template as priority; everything else renders
// monitoring-result.
func (m *Monitor) queueChange(change workflow.Change) {
	extra := changeExtras(change)
	var id string
	if change.Field == workflow.FieldPhase {
		if ch, ok := extra["change"].(map[string]any); ok {
			ch["needs_consent"] = m.phases.NeedsConsent(change.From, change.To)
		}
		id = m.queueRendered("*"+change.To, extra, true)
	} else {
		id = m.queueRendered(monitorResultTemplate, extra, false)
	}
	if id != "" {
		m.heldIDs = append(m.heldIDs, id)
	}
}

func (m *Monitor) queueReminder() {
	rc, err := m.render.Render("", monitorReminderTemplate, nil)
	if err != nil || rc == nil {
		if err != nil {
			m.logger.Warn("Reminder render failed", slog.String("error", err.Error()))
		}
		return
	}
	if text := strings.TrimSpace(rc.Body); text != "" {
		m.coord.QueueInstruction(text, false)
	}
}

// queueRendered renders a template and queues its trimmed body as a tracked
// instruction, returning the tracked id. Render failure or a filtered
// template yields no instruction and no id.
func (m *Monitor) queueRendered(name string, extra map[string]any, priority bool) string {
	rc, err := m.render.Render("", name, extra)
	if err != nil {
		m.logger.Warn("Monitor render failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		return ""
	}
	if rc == nil {
		return ""
	}
	text := strings.TrimSpace(rc.Body)
	if text == "" {
		return ""
	}
	return m.coord.QueueTracked(text, ledger.DefaultMaxRetries, priority)
}

func (m *Monitor) readState() (*workflow.State, error) {
	data, err := os.ReadFile(filepath.Join(m.root, m.stateFile))
	if err != nil {
		return nil, err
	}
	return workflow.ParseState(data)
}

// changeExtras exposes a state change to the template context.
func changeExtras(change workflow.Change) map[string]any {
	ch := map[string]any{
		"field": string(change.Field),
		"from":  change.From,
		"to":    change.To,
	}
	if change.Field == workflow.FieldQueue {
		ch["added"] = change.Added
		ch["removed"] = change.Removed
	}
	return map[string]any{"change": ch}
}
