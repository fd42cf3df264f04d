package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_scheduler_ticks_total",
		Help: "Number of dispatcher ticks.",
	})
	dispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_scheduler_dispatched_total",
		Help: "Number of executions dispatched.",
	})
	dispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_scheduler_dispatch_errors_total",
		Help: "Number of dispatch attempts that failed.",
	})
	skippedRunning = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_scheduler_skipped_running_total",
		Help: "Number of due scouts skipped because an execution was already running.",
	})
	reapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_scheduler_reaped_total",
		Help: "Number of stuck executions force-failed by the reaper.",
	})
)
