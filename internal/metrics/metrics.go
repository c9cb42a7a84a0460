package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// STK push initiations
	PaymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_payments_initiated_total",
			Help: "STK push initiations by outcome",
		},
		[]string{"status"}, // ok|validation_error|auth_error|gateway_error
	)

	// gateway callbacks
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "Gateway callbacks by payment outcome",
		},
		[]string{"outcome"}, // success|failure
	)
	MalformedCallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpesa_malformed_callbacks_total",
			Help: "Callbacks that could not be parsed",
		},
	)
	OrphanCallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpesa_orphan_callbacks_total",
			Help: "Callbacks with no matching ledger entry",
		},
	)
	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpesa_persist_failures_total",
			Help: "Reconciled transactions that failed to persist",
		},
	)

	// pending-transaction ledger
	LedgerDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mpesa_pending_payments",
			Help: "Entries currently in the pending-transaction ledger",
		},
	)
	ExpiredPending = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpesa_pending_payments_expired_total",
			Help: "Ledger entries removed because no callback arrived in time",
		},
	)

	// worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(PaymentsInitiated)
	prometheus.MustRegister(CallbacksTotal)
	prometheus.MustRegister(MalformedCallbacks)
	prometheus.MustRegister(OrphanCallbacks)
	prometheus.MustRegister(PersistFailures)
	prometheus.MustRegister(LedgerDepth)
	prometheus.MustRegister(ExpiredPending)
	prometheus.MustRegister(WorkerQueueDepth)
}
