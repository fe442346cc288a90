package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricToolCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guidance",
		Name:      "tool_calls_total",
		Help:      "Tool invocations observed at the RPC boundary.",
	})
	metricEventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guidance",
		Name:      "events_dispatched_total",
		Help:      "Events dispatched on the internal bus.",
	})
	metricInstructionsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guidance",
		Name:      "instructions_queued_total",
		Help:      "Instructions accepted into the pending queue.",
	})
	metricRetrySweeps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guidance",
		Name:      "retry_sweeps_total",
		Help:      "Retry sweeps over unacknowledged tracked instructions.",
	})
	metricTasksRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guidance",
		Name:      "tasks_registered_total",
		Help:      "Tasks registered with the supervisor.",
	})
)
