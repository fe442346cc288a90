// Package events implements the bit-flagged event bus the task supervisor
// dispatches through. Subscribers are held behind release-able handles so a
// finished task is dropped by compaction rather than explicit unsubscription.
package events

import (
	"strings"
	"sync/atomic"
)

// Kind is a bitflag set of event kinds. Multiple bits may be OR'd to express
// "any of these"; subscribers test with a bitwise AND.
type Kind uint32

// Canonical event bits. The values are stable wire values.
const (
	// FSFileContent signals a content change of a watched file.
	FSFileContent Kind = 1
	// FSDirectory signals a directory-level change (create/remove/rename).
	FSDirectory Kind = 2
	// FSCommand signals a command-result file produced by the agent.
	FSCommand Kind = 4
	// FSCwd signals a working-directory change.
	FSCwd Kind = 8
	// Timer is the monotonic timer tick bit, distinguishable from the
	// filesystem kinds by (kinds & Timer) != 0.
	Timer Kind = 0x10000
)

// Has reports whether any bit of other is set in k.
func (k Kind) Has(other Kind) bool {
	return k&other != 0
}

// String renders the set bits for logging.
func (k Kind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for _, e := range []struct {
		bit  Kind
		name string
	}{
		{FSFileContent, "fs-file-content"},
		{FSDirectory, "fs-directory"},
		{FSCommand, "fs-command"},
		{FSCwd, "fs-cwd"},
		{Timer, "timer"},
	} {
		if k.Has(e.bit) {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// Data is the payload delivered with an event. Path is the match key for
// filesystem events; Payload carries any additional structured data.
type Data struct {
	Path    string
	Payload map[string]any
}

// Subscriber receives dispatched events. The return value reports whether the
// subscriber consumed the event (informational; dispatch always continues).
type Subscriber interface {
	HandleEvent(kinds Kind, data Data) bool
}

// Handle is the weak-reference wrapper around a subscriber. The bus stores
// handles, never the subscriber directly; once released, the handle is
// compacted away on the next dispatch and the subscriber can be collected.
type Handle struct {
	sub      Subscriber
	released atomic.Bool
}

// NewHandle wraps a subscriber.
func NewHandle(sub Subscriber) *Handle {
	return &Handle{sub: sub}
}

// Release marks the handle dead. Safe to call more than once.
func (h *Handle) Release() {
	h.released.Store(true)
}

// IsAlive reports whether the handle still resolves.
func (h *Handle) IsAlive() bool {
	return !h.released.Load()
}

// Subscriber returns the wrapped subscriber, or nil once released.
func (h *Handle) Subscriber() Subscriber {
	if !h.IsAlive() {
		return nil
	}
	return h.sub
}
