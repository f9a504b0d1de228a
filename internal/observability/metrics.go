package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the discovery engine's Prometheus instruments.
type Metrics struct {
	PagesCrawled      prometheus.Counter
	ContactsFound     *prometheus.CounterVec
	ExtractionLatency *prometheus.HistogramVec
	DiscoveryErrors   *prometheus.CounterVec
	ActiveWorkers     prometheus.Gauge
}

// NewMetrics registers and returns the engine's metric instruments against
// reg (pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contact_discovery_pages_crawled_total",
			Help: "Total pages fetched during crawling.",
		}),
		ContactsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_discovery_contacts_found_total",
			Help: "Contacts discovered, by method.",
		}, []string{"method"}),
		ExtractionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contact_discovery_extraction_seconds",
			Help:    "Per-URL extraction latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),
		DiscoveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_discovery_errors_total",
			Help: "Errors encountered, by component.",
		}, []string{"component"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contact_discovery_active_workers",
			Help: "Number of discovery workers currently running.",
		}),
	}
	reg.MustRegister(m.PagesCrawled, m.ContactsFound, m.ExtractionLatency, m.DiscoveryErrors, m.ActiveWorkers)
	return m
}
