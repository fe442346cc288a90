package tasks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/guidance/events"
	"github.com/c360studio/guidance/flags"
	"github.com/c360studio/guidance/guide"
)

// StartupInstructionFlag names the project flag whose value selects the
// startup content target.
const StartupInstructionFlag = "startup-instruction"

// startupTemplate is rendered once per session from the document-root.
const startupTemplate = "_startup"

// Startup queues a one-shot priority instruction when a session starts, if
// the project opted in via the startup-instruction flag. Only the project
// scope counts: a global flag must not inject startup content into every
// project. The rendered template's requires-gates are respected: a filtered
// startup is silently skipped.
type Startup struct {
	coord  Coordinator
	render Renderer
	store  *flags.Store
	logger *slog.Logger

	processed map[string]bool
}

// NewStartup creates the startup listener.
func NewStartup(coord Coordinator, render Renderer, store *flags.Store, logger *slog.Logger) *Startup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Startup{
		coord:     coord,
		render:    render,
		store:     store,
		logger:    logger,
		processed: map[string]bool{},
	}
}

func (s *Startup) Name() string { return "startup-listener" }

// Kinds is zero: the listener reacts to session changes, not bus events.
func (s *Startup) Kinds() events.Kind { return 0 }

func (s *Startup) Interval() time.Duration { return 0 }

func (s *Startup) OnInit(ctx context.Context) error { return nil }

func (s *Startup) OnTool(ctx context.Context) {}

func (s *Startup) HandleEvent(kinds events.Kind, data events.Data) bool { return true }

// OnSessionChange runs once per session.
func (s *Startup) OnSessionChange(session string) {
	if session == "" || s.processed[session] {
		return
	}
	s.processed[session] = true

	raw, ok := s.store.Lookup(flags.ScopeProject, StartupInstructionFlag)
	if !ok {
		return
	}
	expr, _ := raw.(string)
	target, err := guide.ParseTarget(expr)
	if err != nil {
		s.logger.Warn("Startup instruction flag is not a valid target",
			slog.String("value", expr), slog.String("error", err.Error()))
		return
	}

	rc, err := s.render.Render("", startupTemplate, map[string]any{
		"startup": map[string]any{
			"kind": string(target.Kind),
			"name": target.Name,
		},
	})
	if err != nil {
		s.logger.Warn("Startup render failed", slog.String("error", err.Error()))
		return
	}
	if rc == nil {
		s.logger.Debug("Startup template filtered; skipping")
		return
	}
	if text := strings.TrimSpace(rc.Body); text != "" {
		s.coord.QueueInstruction(text, true)
	}
}
