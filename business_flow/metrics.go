package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch invocations partitioned by final status
	communicationDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communication_dispatch_total",
			Help: "Total number of communication dispatch invocations by final status",
		},
		[]string{"status"},
	)

	// Individual sends partitioned by channel and result
	channelDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_deliveries_total",
			Help: "Total number of channel sends by channel and result",
		},
		[]string{"channel", "result"},
	)
)

func recordDispatchMetrics(status string, outcomes []DeliveryOutcome) {
	communicationDispatchTotal.WithLabelValues(status).Inc()
	for _, o := range outcomes {
		if o.SuccessCount > 0 {
			channelDeliveriesTotal.WithLabelValues(o.Channel, "success").Add(float64(o.SuccessCount))
		}
		if o.FailureCount > 0 {
			channelDeliveriesTotal.WithLabelValues(o.Channel, "failure").Add(float64(o.FailureCount))
		}
	}
}
