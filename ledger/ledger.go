// Package ledger holds the in-memory queue of pending agent instructions and
// the tracked-instruction records that back acknowledgement and retry. The
// ledger is process-local and owned exclusively by the task supervisor.
package ledger

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// InstructionField is the response-payload key the ledger injects into.
const InstructionField = "additional_agent_instructions"

// DefaultMaxRetries is the canonical retry budget for tracked instructions.
const DefaultMaxRetries = 3

// Tracked is a pending instruction with an acknowledgement identity and a
// retry budget.
type Tracked struct {
	ID        string
	Text      string
	Remaining int
	Max       int
	Priority  bool
}

// Ledger is the prioritized FIFO of pending instructions. It is not
// internally synchronized; the supervisor serializes access.
type Ledger struct {
	pending []string
	tracked map[string]*Tracked
	logger  *slog.Logger
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{tracked: map[string]*Tracked{}, logger: logger}
}

// Queue adds an instruction to the pending queue. Duplicate texts are
// dropped; priority texts insert at the head; empty (whitespace-only) texts
// never enter. Reports whether the text was enqueued.
func (l *Ledger) Queue(text string, priority bool) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if l.contains(text) {
		l.logger.Debug("Dropping duplicate pending instruction", slog.String("text", text))
		return false
	}
	if priority {
		l.pending = append([]string{text}, l.pending...)
	} else {
		l.pending = append(l.pending, text)
	}
	return true
}

// QueueTracked enqueues an instruction under the usual dedup/priority rule
// and records a tracking entry with the given retry budget. Returns the
// issued id, or "" when the text is empty.
func (l *Ledger) QueueTracked(text string, maxRetries int, priority bool) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	l.Queue(text, priority)
	id := uuid.NewString()
	l.tracked[id] = &Tracked{
		ID:        id,
		Text:      text,
		Remaining: maxRetries,
		Max:       maxRetries,
		Priority:  priority,
	}
	return id
}

// Acknowledge drops the tracking entry for id. The pending queue is left
// alone: the text may already have been injected. Reports whether the id was
// known.
func (l *Ledger) Acknowledge(id string) bool {
	if _, ok := l.tracked[id]; !ok {
		return false
	}
	delete(l.tracked, id)
	return true
}

// Inject pops the head of the pending queue and sets it on the response
// under InstructionField. The instruction is pushed back (and the response
// returned unchanged) when the response is not a mapping or the field is
// already occupied.
func (l *Ledger) Inject(response any) any {
	if len(l.pending) == 0 {
		return response
	}
	text := l.pending[0]
	l.pending = l.pending[1:]

	payload, ok := response.(map[string]any)
	if !ok {
		l.pushBack(text)
		l.logger.Debug("Response cannot accept instruction field; pushed back",
			slog.String("text", text))
		return response
	}
	if existing, present := payload[InstructionField]; present && existing != nil {
		l.pushBack(text)
		l.logger.Debug("Instruction field already set; pushed back",
			slog.String("text", text))
		return response
	}
	payload[InstructionField] = text
	return payload
}

// RetrySweep re-queues un-acknowledged tracked instructions. Callers invoke
// this only when the pending queue is empty. Entries with no budget left are
// dropped silently and never re-queued.
func (l *Ledger) RetrySweep() {
	for id, entry := range l.tracked {
		if entry.Remaining <= 0 {
			delete(l.tracked, id)
			continue
		}
		if !l.contains(entry.Text) {
			l.Queue(entry.Text, entry.Priority)
		}
		entry.Remaining--
		if entry.Remaining == 0 {
			delete(l.tracked, id)
		}
	}
}

// Empty reports whether the pending queue has no instructions.
func (l *Ledger) Empty() bool {
	return len(l.pending) == 0
}

// Pending returns a copy of the pending queue in order.
func (l *Ledger) Pending() []string {
	out := make([]string, len(l.pending))
	copy(out, l.pending)
	return out
}

// TrackedEntry returns a copy of the tracking entry for id.
func (l *Ledger) TrackedEntry(id string) (Tracked, bool) {
	entry, ok := l.tracked[id]
	if !ok {
		return Tracked{}, false
	}
	return *entry, true
}

// TrackedCount returns the number of live tracking entries.
func (l *Ledger) TrackedCount() int {
	return len(l.tracked)
}

// Reset clears all ledger state. Test support.
func (l *Ledger) Reset() {
	l.pending = nil
	l.tracked = map[string]*Tracked{}
}

func (l *Ledger) contains(text string) bool {
	for _, t := range l.pending {
		if t == text {
			return true
		}
	}
	return false
}

func (l *Ledger) pushBack(text string) {
	l.pending = append([]string{text}, l.pending...)
}
