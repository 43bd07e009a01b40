package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "steps_processed_total",
			Help:      "Total ProcessNext steps by outcome.",
		},
		[]string{"outcome"},
	)

	gateRejectionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "gate_rejections_total",
			Help:      "Steps held back by the rate/window gate, by reason.",
		},
		[]string{"reason"},
	)

	dispatchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Duration of outbound delivery calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"dispatcher"},
	)

	campaignsCompletedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "campaigns_completed_total",
			Help:      "Campaigns whose queues were fully drained.",
		},
	)
)
