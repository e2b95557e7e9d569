package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics holds the prometheus collectors of the ingestion pipeline on their own registry
type Metrics struct {
	reg *prometheus.Registry

	Cycles             prometheus.Counter
	FetchFailures      prometheus.Counter
	PositionsExtracted prometheus.Counter
	LookupFailures     prometheus.Counter
	DelayUnknown       prometheus.Counter
	SinkWrites         *prometheus.CounterVec // sink label: cache|store|publish
	SinkErrors         *prometheus.CounterVec // sink label: cache|store|publish
	CycleDuration      prometheus.Histogram
}

// NewMetrics creates and registers Metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total ingestion cycles started.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_fetch_failures_total",
			Help: "Total cycles skipped because the feed could not be fetched or decoded.",
		}),
		PositionsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_positions_extracted_total",
			Help: "Total vehicle positions passing the route filter.",
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_schedule_lookup_failures_total",
			Help: "Total schedule lookups that returned an error.",
		}),
		DelayUnknown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_delay_unknown_total",
			Help: "Total vehicle positions without a schedule to estimate delay from.",
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_sink_writes_total",
			Help: "Total vehicle positions written, by sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_sink_errors_total",
			Help: "Total failed vehicle position writes, by sink.",
		}, []string{"sink"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	reg.MustRegister(
		m.Cycles, m.FetchFailures, m.PositionsExtracted,
		m.LookupFailures, m.DelayUnknown,
		m.SinkWrites, m.SinkErrors, m.CycleDuration,
	)
	return m
}

// Handler serves the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
