// Package metrics exposes pipeline counters and latency histograms on a
// private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline's instruments. All components share one
// Collector; the registry is private so tests can create as many as they
// need.
type Collector struct {
	registry *prometheus.Registry

	ExtractRuns     *prometheus.CounterVec
	ExtractRows     prometheus.Counter
	ExtractDuration prometheus.Histogram

	ScanRuns     *prometheus.CounterVec
	ScanDuration prometheus.Histogram

	QueryExecutions *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
}

// New creates a Collector with all instruments registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ExtractRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_extract_runs_total",
			Help: "Extraction runs by outcome.",
		}, []string{"outcome"}),
		ExtractRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strata_extract_rows_total",
			Help: "Rows landed in snapshot files.",
		}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_extract_duration_seconds",
			Help:    "End-to-end extraction run duration.",
			Buckets: prometheus.DefBuckets,
		}),
		ScanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_scan_runs_total",
			Help: "Catalog scans by outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_scan_duration_seconds",
			Help:    "Catalog scan duration.",
			Buckets: prometheus.DefBuckets,
		}),
		QueryExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_query_executions_total",
			Help: "Query executions by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_query_duration_seconds",
			Help:    "Query execution duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.ExtractRuns, c.ExtractRows, c.ExtractDuration,
		c.ScanRuns, c.ScanDuration,
		c.QueryExecutions, c.QueryDuration,
	)
	return c
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe records one run outcome with its duration on the given pair of
// instruments.
func Observe(runs *prometheus.CounterVec, duration prometheus.Histogram, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	runs.WithLabelValues(outcome).Inc()
	duration.Observe(time.Since(start).Seconds())
}
