package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRoundsTotal tracks completed anti-entropy sync rounds.
	SyncRoundsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "rounds_total",
			Help:      "Total number of anti-entropy sync rounds",
		},
		[]string{"direction"}, // request, response
	)

	// BloomFalsePositives estimates bloom-filter false-positive occurrences
	// observed when a candidate answer is re-verified against the store.
	BloomFalsePositives = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "bloom_false_positives_total",
			Help:      "Total number of observed bloom filter false positives",
		},
	)

	// IntroductionRequestsTotal tracks introduction request/response traffic.
	IntroductionRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "introduction_total",
			Help:      "Total number of introduction requests and responses",
		},
		[]string{"kind"}, // request, response, timeout
	)

	// RepairRequestsTotal tracks missing-* repair messages sent.
	RepairRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "repair_requests_total",
			Help:      "Total number of missing-* repair requests emitted",
		},
		[]string{"kind"}, // identity, message, sequence, proof
	)

	// SignatureRequestDuration tracks double-signature round-trip latency.
	SignatureRequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "signature_request_duration_seconds",
			Help:      "Double-member signature request round-trip duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
