package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Ledger
	TransactionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_created_total",
			Help: "Payment transactions created",
		},
		[]string{"type"},
	)
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_state_transitions_total",
			Help: "Applied payment transaction state transitions",
		},
		[]string{"from", "to"},
	)
	RejectedTransitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_rejected_transitions_total",
			Help: "State transitions rejected as illegal",
		},
	)
	HandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_handler_failures_total",
			Help: "Transaction handler notifications that failed or timed out",
		},
		[]string{"type", "hook"},
	)

	// Outbox
	OutboxPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_outbox_published_total",
			Help: "Outbox events published to kafka",
		},
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestLatency,
			TransactionsCreated,
			StateTransitions,
			RejectedTransitions,
			HandlerFailures,
			OutboxPublished,
		)
	})
}
