// Package tasks holds the background behaviors registered with the
// supervisor: the workflow monitor, the client-context probe, the startup
// listener, and the retry pump.
package tasks

import (
	"context"
	"time"

	"github.com/c360studio/guidance/events"
	"github.com/c360studio/guidance/supervisor"
	"github.com/c360studio/guidance/template"
)

// Coordinator is the slice of the supervisor surface the tasks drive.
type Coordinator interface {
	QueueInstruction(text string, priority bool) bool
	QueueTracked(text string, maxRetries int, priority bool) string
	Acknowledge(id string) bool
	IsQueueEmpty() bool
	RetrySweep()
}

// Renderer renders a named template against the layered context.
type Renderer interface {
	Render(categoryDir, name string, extra map[string]any) (*template.RenderedContent, error)
}

// Subscribed is a task that declares its own event subscription.
type Subscribed interface {
	supervisor.Task
	Kinds() events.Kind
	Interval() time.Duration
}

// Register registers the task and wires its subscription. Tasks declaring no
// kinds (session-only listeners) are registered without one.
func Register(ctx context.Context, sup *supervisor.Supervisor, task Subscribed) (*events.Handle, error) {
	handle := sup.RegisterTask(ctx, task)
	if task.Kinds() == 0 {
		return handle, nil
	}
	if err := sup.Subscribe(handle, task.Kinds(), task.Interval()); err != nil {
		return nil, err
	}
	return handle, nil
}
