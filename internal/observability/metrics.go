package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_created_total", Help: "Trips requested by passengers"})
	OffersTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_total", Help: "Offers extended to drivers"})

	OffersResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_resolved_total", Help: "Offer outcomes"},
		[]string{"outcome"},
	)

	TripsUnassignable = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_unassignable_total", Help: "Trips that exhausted the driver pool"})
	StaleTransitions  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "stale_transitions_total", Help: "Accept/reject/timeout attempts dropped by the sequence guard"})

	ConnectedParticipants = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "connected_participants", Help: "Currently connected websocket participants"},
		[]string{"role"},
	)

	WSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "ws_messages_total", Help: "Inbound websocket messages by action"},
		[]string{"action"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
