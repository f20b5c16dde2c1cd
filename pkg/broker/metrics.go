package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verve_events_received_total",
		Help: "Client events decoded from the wire.",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verve_events_dropped_total",
		Help: "Client events dropped: unknown component, no handler, or handler failure.",
	})

	patchesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verve_patches_sent_total",
		Help: "Individual patches delivered to clients.",
	})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verve_active_connections",
		Help: "Connections currently registered with the broker.",
	})

	routingWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verve_routing_warnings_total",
		Help: "Best-effort sends and lookups that found no target.",
	})
)
