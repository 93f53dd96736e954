// Package metrics exposes labkeeper's Prometheus collectors. A nil *Collector
// is valid and records nothing, so components take one optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labkeeper"

// Collector groups all labkeeper metrics on a private registry.
type Collector struct {
	spawns         *prometheus.CounterVec
	spawnDuration  *prometheus.HistogramVec
	launchFailures *prometheus.CounterVec
	terminations   *prometheus.CounterVec
	probes         *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	liveSessions   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.spawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Server processes spawned, by kind and result",
		},
		[]string{"kind", "result"},
	)

	c.spawnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Time from launch start to registration, including warm-up",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 20, 30, 60},
		},
		[]string{"kind"},
	)

	c.launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Failed launch attempts by error code",
		},
		[]string{"code"},
	)

	c.terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Server terminations by the final signal needed",
		},
		[]string{"signal"},
	)

	c.probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_probes_total",
			Help:      "Readiness probe outcomes",
		},
		[]string{"result"},
	)

	c.reconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_records_total",
			Help:      "Persisted records seen during reconciliation, by outcome",
		},
		[]string{"outcome"},
	)

	c.liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently in the registry",
		},
	)

	c.registry.MustRegister(
		c.spawns,
		c.spawnDuration,
		c.launchFailures,
		c.terminations,
		c.probes,
		c.reconciled,
		c.liveSessions,
	)
	return c
}

// Spawn records a spawn attempt.
func (c *Collector) Spawn(kind string, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.spawns.WithLabelValues(kind, result).Inc()
}

// LaunchDuration records a completed launch.
func (c *Collector) LaunchDuration(kind string, d time.Duration) {
	if c == nil {
		return
	}
	c.spawnDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// LaunchFailure records a failed launch by error code.
func (c *Collector) LaunchFailure(code string) {
	if c == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	c.launchFailures.WithLabelValues(code).Inc()
}

// Termination records how a server had to be stopped ("term" or "kill").
func (c *Collector) Termination(signal string) {
	if c == nil {
		return
	}
	c.terminations.WithLabelValues(signal).Inc()
}

// Probe records a readiness probe outcome ("ready", "timeout" or "skipped").
func (c *Collector) Probe(result string) {
	if c == nil {
		return
	}
	c.probes.WithLabelValues(result).Inc()
}

// Reconciled records one persisted record's outcome
// ("restored", "stale", "duplicate" or "malformed").
func (c *Collector) Reconciled(outcome string) {
	if c == nil {
		return
	}
	c.reconciled.WithLabelValues(outcome).Inc()
}

// SetLiveSessions sets the live session gauge.
func (c *Collector) SetLiveSessions(n int) {
	if c == nil {
		return
	}
	c.liveSessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
