package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDrainPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickshop_sync_drain_passes_total",
		Help: "Completed drain passes over the pending queue.",
	})
	metricMutationsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickshop_sync_mutations_synced_total",
		Help: "Mutations confirmed against the remote store and cleared.",
	}, []string{"kind"})
	metricMutationsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickshop_sync_mutations_retried_total",
		Help: "Mutation apply failures left queued for a later pass.",
	})
	metricMutationsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickshop_sync_mutations_abandoned_total",
		Help: "Malformed queue entries dropped without retry.",
	})
	metricQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quickshop_sync_queue_depth",
		Help: "Pending mutations per scope after the latest drain pass.",
	}, []string{"scope"})
)
