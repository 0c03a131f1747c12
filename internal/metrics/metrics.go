package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibe_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibe_rooms_active",
			Help: "Rooms with at least one member",
		},
	)

	Members = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibe_members",
			Help: "Room memberships across all rooms",
		},
	)

	HostElections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_host_elections_total",
			Help: "Host changes",
		},
		[]string{"reason"}, // "explicit" or "previous_host_left"
	)

	OpsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_ops_denied_total",
			Help: "Client operations rejected with an error reply",
		},
		[]string{"op", "code"},
	)

	// Delivery metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_events_total",
			Help: "Events fanned out, by type",
		},
		[]string{"type"},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibe_frames_dropped_total",
			Help: "Frames dropped on a full or closed connection",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibe_ws_connections",
			Help: "Open signaling connections",
		},
	)

	// Infrastructure metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_store_errors_total",
			Help: "Failed store operations",
		},
		[]string{"op"},
	)

	StoreDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibe_store_dropped_total",
			Help: "Writes dropped because the write queue was full",
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibe_store_latency_seconds",
			Help:    "Store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"op"},
	)
)
