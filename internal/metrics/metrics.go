// Package metrics declares the Prometheus instrumentation surface for the
// auction engine.
//
// Naming convention: namespace_subsystem_name
//   - namespace: auction_engine (application-level grouping)
//   - subsystem: socket, room, bid, dbtask, cache, rate_limit, circuit_breaker
//   - name: specific metric
//
// Gauges track current state, CounterVecs track cumulative events,
// HistogramVecs track latency distributions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections is the current number of open participant sockets.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auction_engine",
		Subsystem: "socket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms is the current number of rooms with state in the cache.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auction_engine",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active auction rooms",
	})

	// RoomParticipants is the current participant count per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auction_engine",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// SocketEvents counts inbound frames processed by the session handler.
	SocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "socket",
		Name:      "events_total",
		Help:      "Total WebSocket frames processed",
	}, []string{"frame_type", "status"})

	// MessageProcessingDuration is the time spent handling one inbound frame.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auction_engine",
		Subsystem: "socket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing a WebSocket frame",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"frame_type"})

	// BidOutcomes counts bid-state-machine transitions by outcome.
	BidOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "bid",
		Name:      "outcomes_total",
		Help:      "Total bid-state-machine transitions by outcome",
	}, []string{"outcome"})

	// ExpiryResolutions counts timer-key expiry resolutions by classification.
	ExpiryResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "bid",
		Name:      "expiry_resolutions_total",
		Help:      "Total timer-key expiry events resolved, by classification",
	}, []string{"classification"})

	// DBTaskOutcomes counts DB task pipeline processing outcomes.
	DBTaskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "dbtask",
		Name:      "outcomes_total",
		Help:      "Total DB task pipeline outcomes",
	}, []string{"command_kind", "status"})

	// DBTaskProcessingDuration is the time spent executing one DB task.
	DBTaskProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auction_engine",
		Subsystem: "dbtask",
		Name:      "processing_duration_seconds",
		Help:      "Time spent executing a DB task",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command_kind"})

	// DBTaskRetryQueueDepth is the current size of the retry ZSET.
	DBTaskRetryQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auction_engine",
		Subsystem: "dbtask",
		Name:      "retry_queue_depth",
		Help:      "Current number of tasks awaiting retry",
	})

	// CircuitBreakerState is 0 (closed), 1 (open), or 2 (half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auction_engine",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures counts calls rejected by an open breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests counts every request checked against the limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// CacheOperationsTotal counts cache round-trips by operation and status.
	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auction_engine",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Total number of cache operations",
	}, []string{"operation", "status"})

	// CacheOperationDuration is the latency of cache round-trips.
	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auction_engine",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Duration of cache operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
