package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_requested_total", Help: "Total trip requests created"})
	OffersTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_total", Help: "Total offers submitted"})

	AcceptResults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "accept_results_total", Help: "Offer acceptance outcomes"},
		[]string{"result"}, // "won" | "conflict" | "error"
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "events_published_total", Help: "Events published per transport"},
		[]string{"transport"}, // "websocket" | "rabbitmq"
	)

	PollRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "poll_runs_total", Help: "Reconciliation poll outcomes"},
		[]string{"result"}, // "applied" | "noop" | "skipped" | "error"
	)

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "ws_connections", Help: "Open WebSocket connections"})
	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "drivers_online", Help: "Drivers currently online"})

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
