// Package metrics defines the Prometheus collectors of sitegen.
//
// A nil *Metrics is valid and records nothing, so components accept an
// optional metrics value without checking for it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "sitegen").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderErrors   prometheus.Counter
	pagesWritten   prometheus.Counter
	brokenLinks    prometheus.Counter
	writeErrors    prometheus.Counter
	routes         prometheus.Gauge
	rebuildsTotal  *prometheus.CounterVec
}

// New registers the collectors and returns them.
// Registering twice on the same registry panics, as with promauto.
func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "sitegen",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "requests_total",
			Help:        "Total number of resolved requests by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "render_duration_seconds",
			Help:        "Page render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		renderErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "render_errors_total",
			Help:        "Total number of failed renders",
			ConstLabels: config.ConstLabels,
		}),

		pagesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pages_written_total",
			Help:        "Total number of pages written by the crawler",
			ConstLabels: config.ConstLabels,
		}),

		brokenLinks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "broken_links_total",
			Help:        "Total number of same-host links that resolved to no route",
			ConstLabels: config.ConstLabels,
		}),

		writeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "write_errors_total",
			Help:        "Total number of failed output writes",
			ConstLabels: config.ConstLabels,
		}),

		routes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "routes",
			Help:        "Number of routes in the live route table",
			ConstLabels: config.ConstLabels,
		}),

		rebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "route_rebuilds_total",
			Help:        "Total number of route table rebuilds by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
	}
}

// ObserveRequest counts a resolved request. outcome is the match kind
// ("found", "redirect", "not_found") or "invalid".
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records the duration of one render. kind is "page" or
// "listing".
func (m *Metrics) ObserveRender(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		m.renderErrors.Inc()
	}
}

// PageWritten counts a page written by the crawler.
func (m *Metrics) PageWritten() {
	if m == nil {
		return
	}
	m.pagesWritten.Inc()
}

// WriteFailed counts a failed output write.
func (m *Metrics) WriteFailed() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

// BrokenLink counts a broken link.
func (m *Metrics) BrokenLink() {
	if m == nil {
		return
	}
	m.brokenLinks.Inc()
}

// RoutesLoaded sets the size of the live route table and counts a
// successful rebuild.
func (m *Metrics) RoutesLoaded(n int) {
	if m == nil {
		return
	}
	m.routes.Set(float64(n))
	m.rebuildsTotal.WithLabelValues("ok").Inc()
}

// RebuildFailed counts a rebuild that kept the previous table.
func (m *Metrics) RebuildFailed() {
	if m == nil {
		return
	}
	m.rebuildsTotal.WithLabelValues("error").Inc()
}
