// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency     *prometheus.HistogramVec
	RPCCallsTotal      *prometheus.CounterVec
	FailoversTotal     prometheus.Counter
	ExhaustedTotal     *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	HealthWaitsTotal   prometheus.Counter
	EndpointHealthy    *prometheus.GaugeVec
	CurrentEndpointIdx prometheus.Gauge

	// Sync metrics
	TransactionsTotal *prometheus.CounterVec
	BackfillPages     *prometheus.CounterVec
	BackfillRuns      *prometheus.CounterVec
	TailPolls         *prometheus.CounterVec
	CursorSlot        *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_sync"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_calls_total",
			Help:      "Solana RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		FailoversTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "failovers_total",
			Help:      "Number of times a request moved to the next endpoint",
		}),
		ExhaustedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "endpoints_exhausted_total",
			Help:      "Failover passes in which every endpoint failed",
		}, []string{"method"}),
		RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "retries_total",
			Help:      "Backoff retries after endpoint exhaustion",
		}),
		HealthWaitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "health_waits_total",
			Help:      "Number of times callers blocked on the health gate",
		}),
		EndpointHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "endpoint_healthy",
			Help:      "1 if the endpoint answered the last request, 0 otherwise",
		}, []string{"endpoint"}),
		CurrentEndpointIdx: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "current_endpoint_index",
			Help:      "Index of the endpoint new requests start from",
		}),

		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "transactions_total",
			Help:      "Transactions handled by outcome (stored, duplicate, skipped)",
		}, []string{"mode", "outcome"}),
		BackfillPages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "backfill_pages_total",
			Help:      "Backfill signature pages processed",
		}, []string{"mint"}),
		BackfillRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "backfill_runs_total",
			Help:      "Backfill runs by final state",
		}, []string{"state"}),
		TailPolls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "tail_polls_total",
			Help:      "Tail poll cycles by status",
		}, []string{"status"}),
		CursorSlot: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cursor_slot",
			Help:      "Slot of the newest persisted transaction per mint",
		}, []string{"mint"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of the last completed sync pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records latency and outcome of a single endpoint call.
func RecordRPCCall(method, outcome string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	DefaultMetrics.RPCCallsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordFailover increments the failover counter.
func RecordFailover() {
	DefaultMetrics.FailoversTotal.Inc()
}

// RecordExhausted records a failover pass where every endpoint failed.
func RecordExhausted(method string) {
	DefaultMetrics.ExhaustedTotal.WithLabelValues(method).Inc()
}

// RecordRetry increments the backoff retry counter.
func RecordRetry() {
	DefaultMetrics.RetriesTotal.Inc()
}

// RecordHealthWait increments the health gate counter.
func RecordHealthWait() {
	DefaultMetrics.HealthWaitsTotal.Inc()
}

// SetEndpointHealth updates the health gauge of an endpoint.
func SetEndpointHealth(endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	DefaultMetrics.EndpointHealthy.WithLabelValues(endpoint).Set(v)
}

// SetCurrentEndpoint updates the sticky endpoint index gauge.
func SetCurrentEndpoint(index int) {
	DefaultMetrics.CurrentEndpointIdx.Set(float64(index))
}

// RecordTransaction records the outcome of one transaction.
func RecordTransaction(mode, outcome string) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordBackfillPage increments the page counter for a mint.
func RecordBackfillPage(mint string) {
	DefaultMetrics.BackfillPages.WithLabelValues(mint).Inc()
}

// RecordBackfillRun records the final state of a backfill run.
func RecordBackfillRun(state string) {
	DefaultMetrics.BackfillRuns.WithLabelValues(state).Inc()
}

// RecordTailPoll records a tail poll cycle.
func RecordTailPoll(status string) {
	DefaultMetrics.TailPolls.WithLabelValues(status).Inc()
}

// UpdateCursorSlot updates the newest persisted slot for a mint.
func UpdateCursorSlot(mint string, slot int64) {
	DefaultMetrics.CursorSlot.WithLabelValues(mint).Set(float64(slot))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkSyncSuccess records the time of a completed sync pass.
func MarkSyncSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulSync.Set(float64(unixSeconds))
}
