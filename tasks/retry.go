package tasks

import (
	"context"
	"time"

	"github.com/c360studio/guidance/events"
)

// retryInterval is the sweep cadence when the config gives none.
const retryInterval = 60 * time.Second

// Retry is the timer-only pump that re-queues unacknowledged tracked
// instructions. It sweeps only when the pending queue is empty, so an
// instruction the agent has not yet consumed is never duplicated.
type Retry struct {
	coord    Coordinator
	interval time.Duration
}

// NewRetry creates the retry pump. interval <= 0 falls back to the default.
func NewRetry(coord Coordinator, interval time.Duration) *Retry {
	if interval <= 0 {
		interval = retryInterval
	}
	return &Retry{coord: coord, interval: interval}
}

func (r *Retry) Name() string { return "retry-pump" }

func (r *Retry) Kinds() events.Kind { return events.Timer }

func (r *Retry) Interval() time.Duration { return r.interval }

func (r *Retry) OnInit(ctx context.Context) error { return nil }

func (r *Retry) OnTool(ctx context.Context) {}

func (r *Retry) HandleEvent(kinds events.Kind, data events.Data) bool {
	if kinds.Has(events.Timer) && r.coord.IsQueueEmpty() {
		r.coord.RetrySweep()
	}
	return true
}
