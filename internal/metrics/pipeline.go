package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineStageOutcomes tracks the outcome of each pipeline stage
	// (accepted/dropped/delayed/fatal, per spec §7's propagation rule).
	PipelineStageOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Total number of pipeline stage outcomes",
		},
		[]string{"stage", "outcome"},
	)

	// PipelineBatchSize tracks the number of packets committed per batch.
	PipelineBatchSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_size",
			Help:      "Number of packets committed per batch window",
			Buckets:   prometheus.LinearBuckets(1, 5, 10),
		},
	)

	// PipelineDecodeErrors tracks decode-stage error kinds.
	PipelineDecodeErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decode_errors_total",
			Help:      "Total number of decode errors by kind",
		},
		[]string{"kind"},
	)

	// PipelineProcessingDuration tracks end-to-end per-packet latency.
	PipelineProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "processing_duration_seconds",
			Help:      "Per-packet pipeline processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)
)
