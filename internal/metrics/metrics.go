// Package metrics exposes probe results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/netpulse/internal/checker"
)

// Collectors holds the netpulse metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	probeUp       *prometheus.GaugeVec
	probeLatency  *prometheus.GaugeVec
	probeFailures *prometheus.CounterVec
	sslDays       *prometheus.GaugeVec
	httpStatus    *prometheus.GaugeVec
}

// New creates and registers the netpulse collectors.
func New() *Collectors {
	labels := []string{"probe", "kind", "target"}
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		probeUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_probe_up",
				Help: "Probe success (1) or failure (0)",
			},
			labels,
		),
		probeLatency: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_probe_latency_seconds",
				Help: "Latency of the last successful probe in seconds",
			},
			labels,
		),
		probeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpulse_probe_failures_total",
				Help: "Total number of failed probes",
			},
			labels,
		),
		sslDays: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_ssl_days_remaining",
				Help: "Whole days until the certificate expires",
			},
			labels,
		),
		httpStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_http_status_code",
				Help: "Status code of the last HTTP response",
			},
			labels,
		),
	}
	c.registry.MustRegister(
		c.probeUp,
		c.probeLatency,
		c.probeFailures,
		c.sslDays,
		c.httpStatus,
	)
	return c
}

// Observe records one probe result.
func (c *Collectors) Observe(probe string, r checker.Result) {
	base := r.Base()
	lv := prometheus.Labels{"probe": probe, "kind": string(r.Kind()), "target": base.Target}

	if base.Successful {
		c.probeUp.With(lv).Set(1)
		c.probeLatency.With(lv).Set(base.Latency.Seconds())
	} else {
		c.probeUp.With(lv).Set(0)
		c.probeFailures.With(lv).Inc()
	}

	switch v := r.(type) {
	case checker.HTTPResult:
		if v.StatusCode != 0 {
			c.httpStatus.With(lv).Set(float64(v.StatusCode))
		}
	case checker.SSLResult:
		if v.Error == "" {
			c.sslDays.With(lv).Set(float64(v.DaysRemaining))
		}
	}
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
