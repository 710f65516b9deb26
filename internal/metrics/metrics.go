package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_analytics_build_info",
		Help: "Build information of the order analytics binaries",
	}, []string{"version", "commit", "date"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_analytics_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage", "result"})

	RowsLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_analytics_rows_loaded",
		Help: "Rows loaded per source table in the latest run.",
	}, []string{"table"})
	NullCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_analytics_null_cells",
		Help: "Null cells per source table in the latest run.",
	}, []string{"table"})
	InvalidValues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_analytics_invalid_values",
		Help: "Values that failed to parse and became null, by column.",
	}, []string{"column", "kind"})

	FactRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "order_analytics_fact_rows",
		Help: "Rows in the order fact table.",
	})
	CustomersPerSegment = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_analytics_customers_per_segment",
		Help: "Customers assigned to each RFM segment.",
	}, []string{"segment"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_analytics_cache_lookups_total", Help: "Report snapshot cache lookups.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_analytics_http_requests_total", Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_analytics_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
