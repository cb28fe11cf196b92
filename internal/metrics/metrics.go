package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Ledger
	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Mutating ledger operations by name and result (ok, rejection kind, or error)",
		},
		[]string{"operation", "result"},
	)
	LedgerOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ledger_operation_duration_seconds",
			Help: "Duration of mutating ledger operations including the storage commit",
		},
		[]string{"operation"},
	)
	LedgerPaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_total",
			Help: "Committed value movements: subscription payments and withdrawals, by kind and asset",
		},
		[]string{"kind", "asset"},
	)
	LedgerActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_active_subscriptions",
			Help: "Subscriptions currently flagged active",
		},
	)
	LedgerCreators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_creators",
			Help: "Registered creators",
		},
	)
	LedgerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_total",
			Help: "Committed ledger events by type",
		},
		[]string{"type"},
	)

	// Event stream
	EventStreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_stream_clients",
			Help: "Connected WebSocket event stream clients",
		},
	)
	EventStreamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_stream_dropped_total",
			Help: "Events dropped for slow WebSocket clients",
		},
	)
)

// Registry holds every collector served on /metrics. The default registry
// already carries Go and process collectors, so a private one is used.
var Registry = prometheus.NewRegistry()

func InitMetrics() {
	Registry.MustRegister(HTTPRequestsTotal)
	Registry.MustRegister(HTTPRequestDuration)
	Registry.MustRegister(HTTPRequestsInFlight)

	Registry.MustRegister(LedgerOperationsTotal)
	Registry.MustRegister(LedgerOperationDuration)
	Registry.MustRegister(LedgerPaymentsTotal)
	Registry.MustRegister(LedgerActiveSubscriptions)
	Registry.MustRegister(LedgerCreators)
	Registry.MustRegister(LedgerEventsTotal)

	Registry.MustRegister(EventStreamClients)
	Registry.MustRegister(EventStreamDropped)

	// Go runtime and process metrics
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
