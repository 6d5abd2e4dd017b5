package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "store_locator"

// Metrics holds the Prometheus collectors for the gateway.
type Metrics struct {
	// Capability tokens.
	TokenVerifications *prometheus.CounterVec // labels: outcome={ok,missing,invalid,expired}
	TokensIssued       prometheus.Counter

	// Geocoding.
	GeocodeRequests *prometheus.CounterVec // labels: method={batch,single,search}, outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: tier={location,collection}, result={hit,miss}
	GeocodeEvents   *prometheus.CounterVec // labels: outcome={published,error}

	// Upstream provider calls.
	ProviderDuration *prometheus.HistogramVec // labels: provider, operation

	// Tiles.
	TileRequests *prometheus.CounterVec // labels: outcome={success,rejected,upstream_error}
	TileCache    *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		TokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Capability token checks at the gate by outcome.",
		}, []string{"outcome"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Capability tokens minted.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		GeocodeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_events_total",
			Help:      "Geocode events handed to the event stream by outcome.",
		}, []string{"outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider", "operation"}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Tile proxy requests by outcome.",
		}, []string{"outcome"}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      "In-process tile cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all collectors with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TokenVerifications,
		m.TokensIssued,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEvents,
		m.ProviderDuration,
		m.TileRequests,
		m.TileCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
