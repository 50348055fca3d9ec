package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinsTotal counts join and merge operations by kind and outcome.
	JoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icejoin_joins_total",
			Help: "Total number of partitioned joins",
		},
		[]string{"op", "how", "status"},
	)
	// JoinDuration is the end to end latency of a partitioned join.
	JoinDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icejoin_join_duration_seconds",
			Help:    "Partitioned join latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "how"},
	)
	// ShuffledRows counts rows routed into buckets, per side.
	ShuffledRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icejoin_shuffled_rows_total",
			Help: "Rows redistributed during shuffles",
		},
		[]string{"side"},
	)
	// BucketRows is the distribution of output rows per bucket.
	BucketRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "icejoin_bucket_output_rows",
			Help:    "Rows produced by one bucket's local join",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	// DatasetOps counts dataset store and load operations.
	DatasetOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icejoin_dataset_operations_total",
			Help: "Dataset saves and loads",
		},
		[]string{"operation", "status"},
	)
)
