package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_triggers_total",
		Help: "Total number of trigger requests, labelled by outcome status.",
	}, []string{"status"})

	AlgorithmStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_algorithm_starts_total",
		Help: "Start-algorithm calls, labelled by algorithm and result (started, skipped, failed).",
	}, []string{"algorithm", "result"})

	StatusConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_status_conflicts_total",
		Help: "Compare-and-set attempts that found an unexpected status.",
	}, []string{"from", "to"})

	Results = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_results_total",
		Help: "Algorithm results received, labelled by algorithm.",
	}, []string{"algorithm"})

	StaleCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_stale_callbacks_total",
		Help: "Results naming an algorithm the camera no longer has.",
	})

	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_actions_dispatched_total",
		Help: "Run-action calls, labelled by action and status.",
	}, []string{"action", "status"})

	Rearms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_rearms_total",
		Help: "Re-arm attempts, labelled by origin (cooldown, watchdog) and whether the status changed.",
	}, []string{"origin", "changed"})
)
