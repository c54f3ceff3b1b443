package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the store's mutation and query paths.
type Metrics struct {
	// Mutations counts ApplyBatch outcomes by result label:
	// committed, rejected, conflict.
	Mutations *prometheus.CounterVec

	EntitiesCreated prometheus.Counter
	EdgesCreated    prometheus.Counter

	// QueryDuration observes lookup and blast_radius latencies.
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics registers the store metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgebridge",
			Subsystem: "graph",
			Name:      "mutations_total",
			Help:      "Proposal batches by outcome.",
		}, []string{"result"}),
		EntitiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forgebridge",
			Subsystem: "graph",
			Name:      "entities_created_total",
			Help:      "Entities created by committed batches.",
		}),
		EdgesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forgebridge",
			Subsystem: "graph",
			Name:      "edges_created_total",
			Help:      "Edges created by committed batches.",
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forgebridge",
			Subsystem: "graph",
			Name:      "query_duration_seconds",
			Help:      "Query latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}
