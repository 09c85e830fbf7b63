package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryPassesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailout",
			Name:      "delivery_passes_total",
			Help:      "Total delivery passes run.",
		},
		[]string{"result"}, // "completed", "aborted", "empty"
	)

	messagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailout",
			Name:      "messages_processed_total",
			Help:      "Total queue messages processed by delivery passes.",
		},
		[]string{"kind", "outcome"}, // outcome: "sent", "rejected", "skipped"
	)

	deliveryPassDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mailout",
			Name:      "delivery_pass_duration_seconds",
			Help:      "Duration of a full delivery pass.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	transportSendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mailout",
			Name:      "transport_send_duration_seconds",
			Help:      "Duration of individual transport attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport"},
	)
)
