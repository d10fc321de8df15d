package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for NotificationsTotal.
const (
	OutcomeStored       = "stored"
	OutcomeMalformed    = "malformed_payload"
	OutcomeStorageError = "storage_failure"
	OutcomeRateLimited  = "rate_limited"
	OutcomeTooLarge     = "too_large"
)

var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cgwebhook_notifications_total",
			Help: "Webhook notifications received, by outcome",
		},
		[]string{"outcome"},
	)

	PayloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cgwebhook_payload_bytes_total",
			Help: "Total bytes of webhook bodies received",
		},
	)

	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cgwebhook_normalization_duration_seconds",
			Help:    "Duration of payload normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cgwebhook_storage_duration_seconds",
			Help:    "Duration of the insert, including connection acquisition, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RepairedPayloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cgwebhook_repaired_payloads_total",
			Help: "Bodies altered by the doubled-quote repair",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cgwebhook_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cgwebhook_dlq_writes_total",
			Help: "Rejected payloads captured, by reason and result",
		},
		[]string{"reason", "result"},
	)
)
