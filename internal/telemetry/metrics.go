package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service-level counters exported on /metrics.
var (
	TasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deepresearch",
		Name:      "tasks_started_total",
		Help:      "Research tasks accepted over the API.",
	})

	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepresearch",
		Name:      "tasks_finished_total",
		Help:      "Research tasks that reached a terminal status.",
	}, []string{"status"})

	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepresearch",
		Name:      "steps_total",
		Help:      "Research loop steps taken, by action.",
	}, []string{"action"})

	TokensSpent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deepresearch",
		Name:      "tokens_spent_total",
		Help:      "Tokens booked against task budgets across all tools.",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "deepresearch",
		Name:      "stream_clients",
		Help:      "Currently connected SSE stream clients.",
	})

	TasksSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deepresearch",
		Name:      "tasks_swept_total",
		Help:      "Finished tasks removed by the retention sweeper.",
	})
)
