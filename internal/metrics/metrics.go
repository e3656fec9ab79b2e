// Package metrics exposes print and discovery metrics for Prometheus
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the dispatcher's metrics. A nil Collector records nothing.
type Collector struct {
	printJobs       *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	encodeWarnings  *prometheus.CounterVec
	discoveryPasses *prometheus.CounterVec
	printersFound   *prometheus.GaugeVec
	dispatchLatency *prometheus.HistogramVec
	jobsQueued      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses a private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		printJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_print_jobs_total",
			Help: "Print jobs dispatched, by transport and outcome",
		}, []string{"transport", "outcome"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_bytes_written_total",
			Help: "Bytes accepted by printer transports",
		}, []string{"transport"}),
		encodeWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_encode_warnings_total",
			Help: "Soft warnings raised while encoding receipts",
		}, []string{"code"}),
		discoveryPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_discovery_passes_total",
			Help: "Discovery passes, by scope and result",
		}, []string{"scope", "result"}),
		printersFound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "receipt_printers_found",
			Help: "Receipt printers found by the last discovery pass",
		}, []string{"scope"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_dispatch_duration_seconds",
			Help:    "Time from encode to session close",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		jobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_jobs_queued",
			Help: "Async print jobs waiting to run",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.printJobs,
		c.bytesWritten,
		c.encodeWarnings,
		c.discoveryPasses,
		c.printersFound,
		c.dispatchLatency,
		c.jobsQueued,
	)
	return c
}

// RecordPrint records one finished print job
func (c *Collector) RecordPrint(transport string, ok bool, bytes int, seconds float64) {
	if c == nil {
		return
	}
	if transport == "" {
		transport = "none"
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.printJobs.WithLabelValues(transport, outcome).Inc()
	if bytes > 0 {
		c.bytesWritten.WithLabelValues(transport).Add(float64(bytes))
	}
	c.dispatchLatency.WithLabelValues(transport).Observe(seconds)
}

// RecordWarning counts one encoder warning
func (c *Collector) RecordWarning(code string) {
	if c == nil {
		return
	}
	c.encodeWarnings.WithLabelValues(code).Inc()
}

// RecordDiscovery records one discovery pass or enumerator failure
func (c *Collector) RecordDiscovery(scope string, found int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.discoveryPasses.WithLabelValues(scope, "error").Inc()
		return
	}
	c.discoveryPasses.WithLabelValues(scope, "ok").Inc()
	c.printersFound.WithLabelValues(scope).Set(float64(found))
}

// SetQueued sets the number of waiting async jobs
func (c *Collector) SetQueued(n int) {
	if c == nil {
		return
	}
	c.jobsQueued.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
