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
	// Prepare phase metrics
	QuotesAcquired    *prometheus.CounterVec
	QuoteFailures     *prometheus.CounterVec
	TransactionsBuilt prometheus.Counter
	PreparesTotal     *prometheus.CounterVec

	// Submission metrics
	SubmissionsTotal    *prometheus.CounterVec
	AnchorRefreshes     prometheus.Counter
	SlippageEscalations *prometheus.CounterVec
	SendRetries         prometheus.Counter

	// Ledger metrics
	LedgerCommits  prometheus.Counter
	GoalsCompleted prometheus.Counter

	// Latency metrics
	RPCCallLatency  *prometheus.HistogramVec
	ConfirmLatency  prometheus.Histogram
	RequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_dca_engine"
	}

	return &Metrics{
		// Prepare phase metrics
		QuotesAcquired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "quotes_acquired_total",
			Help:      "Total number of quotes acquired by slippage bps",
		}, []string{"slippage_bps"}),
		QuoteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "quote_failures_total",
			Help:      "Total number of quote failures by kind",
		}, []string{"kind"}),
		TransactionsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "transactions_built_total",
			Help:      "Total number of unsigned transactions built",
		}),
		PreparesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "prepares_total",
			Help:      "Total number of prepare calls by record kind and dedup outcome",
		}, []string{"kind", "outcome"}),

		// Submission metrics
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "submissions_total",
			Help:      "Total number of submissions by outcome",
		}, []string{"outcome"}),
		AnchorRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "anchor_refreshes_total",
			Help:      "Total number of expiry-triggered anchor refreshes",
		}),
		SlippageEscalations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "slippage_escalations_total",
			Help:      "Total number of slippage escalations by new bps",
		}, []string{"new_bps"}),
		SendRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "send_retries_total",
			Help:      "Total number of transaction send retries",
		}),

		// Ledger metrics
		LedgerCommits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commits_total",
			Help:      "Total number of confirmed swaps committed to the ledger",
		}),
		GoalsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "goals_completed_total",
			Help:      "Total number of goals auto-completed by the ledger",
		}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ConfirmLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "confirm_latency_seconds",
			Help:      "Time from send to confirmed commitment in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuoteAcquired increments the quotes acquired counter.
func RecordQuoteAcquired(slippageBps string) {
	DefaultMetrics.QuotesAcquired.WithLabelValues(slippageBps).Inc()
}

// RecordQuoteFailure records a quote failure by error kind.
func RecordQuoteFailure(kind string) {
	DefaultMetrics.QuoteFailures.WithLabelValues(kind).Inc()
}

// RecordPrepare records a prepare call outcome ("created" or "existing").
func RecordPrepare(kind, outcome string) {
	DefaultMetrics.PreparesTotal.WithLabelValues(kind, outcome).Inc()
	DefaultMetrics.TransactionsBuilt.Inc()
}

// RecordSubmission records a submission outcome.
func RecordSubmission(outcome string) {
	DefaultMetrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAnchorRefresh increments the anchor refresh counter.
func RecordAnchorRefresh() {
	DefaultMetrics.AnchorRefreshes.Inc()
}

// RecordSlippageEscalation records an escalation to newBps.
func RecordSlippageEscalation(newBps string) {
	DefaultMetrics.SlippageEscalations.WithLabelValues(newBps).Inc()
}

// RecordLedgerCommit records a ledger commit, and completion if the
// goal finished.
func RecordLedgerCommit(completed bool) {
	DefaultMetrics.LedgerCommits.Inc()
	if completed {
		DefaultMetrics.GoalsCompleted.Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRequest records an HTTP request duration.
func RecordRequest(route, status string, seconds float64) {
	DefaultMetrics.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
