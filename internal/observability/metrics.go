package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "amiri"

// Metrics holds the Prometheus collectors for the dashboard service.
type Metrics struct {
	// Selection cache.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
	CacheEntries prometheus.Gauge

	// Data providers.
	ProviderRequests  *prometheus.CounterVec // labels: provider, outcome={success,error}
	ProviderFallbacks *prometheus.CounterVec // labels: provider (the one that failed)

	// Series reconciliation.
	ReconcileDuration prometheus.Histogram
	EmptySelections   *prometheus.CounterVec // labels: reason={no_match,clipped}

	Exports *prometheus.CounterVec // labels: format={csv,xlsx}

	// Change notifications.
	WebsocketClients    prometheus.Gauge
	ChangeNotifications prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build(true)
	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheEntries,
		m.ProviderRequests,
		m.ProviderFallbacks,
		m.ReconcileDuration,
		m.EmptySelections,
		m.Exports,
		m.WebsocketClients,
		m.ChangeNotifications,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return build(false)
}

func build(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      help("Selection cache lookups by result."),
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      help("Reconciled series currently cached."),
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      help("Data provider calls by provider and outcome."),
		}, []string{"provider", "outcome"}),
		ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      help("Requests served by the demo dataset after the configured provider failed."),
		}, []string{"provider"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      help("Time to fetch and reconcile one selection."),
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		EmptySelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_selections_total",
			Help:      help("Selections that produced no rows, by reason."),
		}, []string{"reason"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      help("Series downloads by format."),
		}, []string{"format"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      help("Connected change-notification clients."),
		}),
		ChangeNotifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      help("Data change notifications received from the database."),
		}),
	}
}
