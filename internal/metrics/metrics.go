package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxdata_catalog_fetches_total",
			Help: "Total THREDDS catalog page fetches by outcome",
		},
		[]string{"status"},
	)

	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxdata_dataset_loads_total",
			Help: "Total dataset payload loads by outcome",
		},
		[]string{"site", "level", "status"},
	)

	DatasetLoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxdata_dataset_load_latency_seconds",
			Help:    "Dataset download and decode latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site", "level"},
	)
)
