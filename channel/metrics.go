package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the notification delivery path.
type Metrics struct {
	// Deliveries counts notifications by outcome label:
	// enqueued, delivered, failed, dropped_full.
	Deliveries *prometheus.CounterVec
}

// NewMetrics registers the delivery metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgebridge",
			Subsystem: "channel",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
	}
}
