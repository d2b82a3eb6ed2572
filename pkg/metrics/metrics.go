package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "docsync", Name: "connections_active", Help: "Number of open realtime connections."},
	)
	RoomJoins = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsync", Name: "room_joins_total", Help: "Number of successful document joins."},
	)
	RoomJoinFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsync", Name: "room_join_failures_total", Help: "Number of joins rejected because the document could not be loaded."},
	)
	RoomLeaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "room_leaves_total", Help: "Number of presence removals by cause."},
		[]string{"cause"},
	)
	FramesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "frames_relayed_total", Help: "Number of room broadcasts by event."},
		[]string{"event"},
	)
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "frames_dropped_total", Help: "Number of frames not delivered to a subscriber."},
		[]string{"reason"},
	)
	InvalidPayloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "invalid_payloads_total", Help: "Number of inbound frames ignored as malformed."},
		[]string{"event"},
	)
	Saves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "autosaves_total", Help: "Number of autosave writes by result."},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsync", Name: "http_requests_total", Help: "Total number of HTTP requests received."},
		[]string{"method", "route", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docsync", Name: "http_request_duration_seconds", Help: "Duration of HTTP requests in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ConnectionsActive)
	reg.MustRegister(RoomJoins)
	reg.MustRegister(RoomJoinFailures)
	reg.MustRegister(RoomLeaves)
	reg.MustRegister(FramesRelayed)
	reg.MustRegister(FramesDropped)
	reg.MustRegister(InvalidPayloads)
	reg.MustRegister(Saves)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPLatency)
}
