package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Presence and relay
var (
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presence_online_users",
		Help: "Users with a registered live connection",
	})

	RelayDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_delivered_total",
		Help: "Events handed to a recipient connection",
	}, []string{"event"})

	RelayDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dropped_total",
		Help: "Events dropped because the recipient was offline or its buffer was full",
	}, []string{"event", "reason"})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Open websocket connections",
	})

	WebSocketRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_connections_rejected_total",
		Help: "Websocket upgrades refused",
	}, []string{"reason"})
)

// Calls
var (
	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_transitions_total",
		Help: "Call status transitions by resulting status",
	}, []string{"action", "status"})

	CallDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "call_duration_seconds",
		Help:    "Duration of ended calls",
		Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"type"})
)

// Media pipeline
var (
	MediaUploadRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_rejected_total",
		Help: "Upload requests rejected by validation",
	}, []string{"reason"})

	MediaUploadSizeBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_upload_size_bytes",
		Help:    "Declared size of accepted uploads",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
	}, []string{"type"})

	MediaQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "media_queue_depth",
		Help: "Work items waiting for a processing worker",
	})

	MediaProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_processed_total",
		Help: "Processed media items by type and final status",
	}, []string{"type", "status"})

	MediaProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_processing_duration_seconds",
		Help:    "Time spent processing one media item",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"type"})

	StorageCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_circuit_breaker_state",
		Help: "Object storage circuit breaker (0=closed, 1=half_open, 2=open)",
	})

	StorageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_requests_total",
		Help: "Object storage operations by outcome",
	}, []string{"operation", "status"})
)

// Stories and messages
var (
	StoryEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_events_total",
		Help: "Story lifecycle events",
	}, []string{"event"})

	MessagePersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "message_persisted_total",
		Help: "Messages written to the message store",
	}, []string{"chat_type", "status"})
)

// Gateway
var (
	RateLimitBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_blocked_total",
		Help: "Requests refused by the rate limiter",
	}, []string{"scope"})
)
