package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ff_settlement"

var (
	// Registry holds the settlement Prometheus collectors
	Registry = prometheus.NewRegistry()

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Total number of settlement attempts by path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	settledUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "units_total",
			Help:      "Token minor units transferred by recipient role.",
		},
		[]string{"role"},
	)

	confirmationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "duration_seconds",
			Help:      "Time from submission to a terminal confirmation state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s to ~2m
		},
		[]string{"state"},
	)

	provisionedAccounts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "accounts_created_total",
			Help:      "Token accounts created on behalf of recipients.",
		},
	)

	ledgerRecordingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "recording_failures_total",
			Help:      "Order ledger writes that failed after an on-chain success.",
		},
	)

	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "orders_total",
			Help:      "Orders handled by the reconciliation sweeper by action.",
		},
		[]string{"action"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		settlements,
		settledUnits,
		confirmationDuration,
		provisionedAccounts,
		ledgerRecordingFailures,
		reconciliations,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSettlement counts a settlement attempt
func RecordSettlement(path, outcome string) {
	settlements.WithLabelValues(path, outcome).Inc()
}

// RecordSettledUnits adds transferred units for a recipient role
func RecordSettledUnits(role string, units uint64) {
	settledUnits.WithLabelValues(role).Add(float64(units))
}

// ObserveConfirmation records how long a submitted transaction took to reach a terminal state
func ObserveConfirmation(state string, d time.Duration) {
	confirmationDuration.WithLabelValues(state).Observe(d.Seconds())
}

// RecordProvisionedAccounts counts created token accounts
func RecordProvisionedAccounts(n int) {
	provisionedAccounts.Add(float64(n))
}

// RecordLedgerRecordingFailure counts a failed order ledger write
func RecordLedgerRecordingFailure() {
	ledgerRecordingFailures.Inc()
}

// RecordReconciliation counts an order handled by the sweeper
func RecordReconciliation(action string) {
	reconciliations.WithLabelValues(action).Inc()
}

// RecordHTTPRequest counts a served HTTP request
func RecordHTTPRequest(method, path string, status int) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
