// Package supervisor hosts the cooperative task runtime: a process-wide
// singleton owning the event bus, the instruction ledger, the task registry,
// and the tool-invocation counter. Two locks split the runtime: the scheduler
// mutex serializes task callbacks and bus access, so at most one callback runs
// at a time; the state mutex guards the ledger, counters, and buffers. Tasks
// invoked by the scheduler call back into the coordinator surface
// (QueueInstruction, Acknowledge, ...) which takes only the state mutex, so
// those calls are safe from inside any callback.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/guidance/events"
	"github.com/c360studio/guidance/ledger"
)

// Task is a unit of background behavior driven by the supervisor. OnInit runs
// once at registration; OnTool runs at every tool boundary; HandleEvent
// receives bus dispatches the task subscribed to.
type Task interface {
	Name() string
	OnInit(ctx context.Context) error
	OnTool(ctx context.Context)
	HandleEvent(kinds events.Kind, data events.Data) bool
}

// sessionAware is implemented by tasks that react to session activation.
type sessionAware interface {
	OnSessionChange(session string)
}

// timerPumpInterval is how often the background pump checks timer
// subscriptions for due fires.
const timerPumpInterval = time.Second

type taskEntry struct {
	task   Task
	handle *events.Handle
}

// pendingEvent is a filesystem-derived event held until the next tool
// boundary.
type pendingEvent struct {
	kind events.Kind
	data events.Data
}

// Supervisor coordinates tasks, the bus, and the ledger.
//
// Scheduler entry points (RegisterTask, Subscribe, OnToolCalled, Dispatch,
// ActivateSession, and the timer pump) take schedMu and may invoke task
// callbacks; they must not be called from inside a callback. Coordinator
// methods take only mu and are callback-safe.
type Supervisor struct {
	schedMu sync.Mutex // serializes callbacks, the bus, and the task registry
	mu      sync.Mutex // guards ledger, counters, buffers, session

	logger *slog.Logger
	bus    *events.Bus
	ledger *ledger.Ledger
	tasks  []taskEntry

	toolCalls uint64
	pendingFS []pendingEvent
	session   string

	pumpCancel context.CancelFunc
}

var (
	singletonMu sync.Mutex
	singleton   *Supervisor
)

// Get returns the process-wide supervisor, creating it lazily.
func Get() *Supervisor {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = New(slog.Default())
	}
	return singleton
}

// ResetForTesting discards the singleton so the next Get starts clean.
func ResetForTesting() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		singleton.StopTimerPump()
	}
	singleton = nil
}

// New creates a supervisor. Most callers want Get.
func New(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logger: logger,
		bus:    events.NewBus(logger),
		ledger: ledger.New(logger),
	}
}

// RegisterTask adds a task, wraps it in a releasable handle, and runs OnInit
// synchronously on the scheduler. An OnInit error logs and leaves the task
// registered; its event subscriptions are the task's own responsibility.
func (s *Supervisor) RegisterTask(ctx context.Context, task Task) *events.Handle {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	handle := events.NewHandle(task)
	s.tasks = append(s.tasks, taskEntry{task: task, handle: handle})
	metricTasksRegistered.Inc()

	if err := task.OnInit(ctx); err != nil {
		s.logger.Error("Task init failed",
			slog.String("task", task.Name()),
			slog.String("error", err.Error()))
	}
	return handle
}

// Subscribe forwards a subscription to the bus.
func (s *Supervisor) Subscribe(handle *events.Handle, kinds events.Kind, interval time.Duration) error {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.bus.Subscribe(handle, kinds, interval)
}

// QueueInstruction queues an untracked instruction. Callback-safe.
func (s *Supervisor) QueueInstruction(text string, priority bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger.Queue(text, priority) {
		metricInstructionsQueued.Inc()
		return true
	}
	return false
}

// QueueTracked queues a tracked instruction and returns its id. Callback-safe.
func (s *Supervisor) QueueTracked(text string, maxRetries int, priority bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ledger.QueueTracked(text, maxRetries, priority)
	if id != "" {
		metricInstructionsQueued.Inc()
	}
	return id
}

// Acknowledge drops a tracking entry. Callback-safe.
func (s *Supervisor) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Acknowledge(id)
}

// IsQueueEmpty reports whether the pending queue is empty. Callback-safe.
func (s *Supervisor) IsQueueEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Empty()
}

// RetrySweep re-queues unacknowledged tracked instructions. Callback-safe.
func (s *Supervisor) RetrySweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	metricRetrySweeps.Inc()
	s.ledger.RetrySweep()
}

// ToolCalls returns the monotonic tool-invocation count.
func (s *Supervisor) ToolCalls() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCalls
}

// OnToolCalled marks a tool boundary: the counter advances, every live task
// gets OnTool, and filesystem events collected since the last boundary are
// dispatched in arrival order.
func (s *Supervisor) OnToolCalled(ctx context.Context) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	s.mu.Lock()
	s.toolCalls++
	pending := s.pendingFS
	s.pendingFS = nil
	s.mu.Unlock()
	metricToolCalls.Inc()

	s.compactTasks()
	for _, entry := range s.tasks {
		entry.task.OnTool(ctx)
	}

	for _, ev := range pending {
		metricEventsDispatched.Inc()
		s.bus.Dispatch(ev.kind, ev.data)
	}
}

// CollectFSEvent buffers a filesystem-derived event for dispatch at the next
// tool boundary. Callback-safe.
func (s *Supervisor) CollectFSEvent(kind events.Kind, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFS = append(s.pendingFS, pendingEvent{
		kind: kind,
		data: events.Data{Path: path},
	})
}

// Dispatch delivers an event immediately, bypassing the tool-boundary buffer.
func (s *Supervisor) Dispatch(kinds events.Kind, data events.Data) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	metricEventsDispatched.Inc()
	s.bus.Dispatch(kinds, data)
}

// ProcessResponse injects the pending instruction head into an outgoing
// response payload. Callback-safe.
func (s *Supervisor) ProcessResponse(response any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Inject(response)
}

// ActivateSession records the active session and notifies session-aware
// tasks. Repeat activation of the same session is a no-op.
func (s *Supervisor) ActivateSession(session string) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	s.mu.Lock()
	if session == s.session {
		s.mu.Unlock()
		return
	}
	s.session = session
	s.mu.Unlock()

	s.compactTasks()
	for _, entry := range s.tasks {
		if aware, ok := entry.task.(sessionAware); ok {
			aware.OnSessionChange(session)
		}
	}
}

// Session returns the active session identifier.
func (s *Supervisor) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// StartTimerPump launches the background loop that fires due timer
// subscriptions. Safe to call once per supervisor.
func (s *Supervisor) StartTimerPump(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.pumpCancel = cancel

	go func() {
		ticker := time.NewTicker(timerPumpInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.fireTimers(now)
			}
		}
	}()
}

// StopTimerPump halts the timer loop.
func (s *Supervisor) StopTimerPump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpCancel != nil {
		s.pumpCancel()
		s.pumpCancel = nil
	}
}

// fireTimers runs the bus timer check on the scheduler.
func (s *Supervisor) fireTimers(now time.Time) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	s.bus.FireTimers(now)
}

// FireTimersForTesting triggers the timer check directly.
func (s *Supervisor) FireTimersForTesting(now time.Time) {
	s.fireTimers(now)
}

// compactTasks drops entries whose handle was released. Callers hold schedMu.
func (s *Supervisor) compactTasks() {
	live := s.tasks[:0]
	for _, entry := range s.tasks {
		if entry.handle.IsAlive() {
			live = append(live, entry)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = taskEntry{}
	}
	s.tasks = live
}
