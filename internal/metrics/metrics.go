package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bus Metrics
var (
	// BusMessagesSentTotal tracks messages appended to the bus by message type
	BusMessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_sent_total",
			Help: "Total messages sent on the bus by message type",
		},
		[]string{"type"},
	)

	// BusOverflowTotal counts unread entries overwritten because the ring was full (one per affected cursor)
	BusOverflowTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_overflow_total",
			Help: "Total unread bus entries overwritten before a subscriber read them",
		},
	)

	// BusLaggedTotal counts lag errors reported to cursors
	BusLaggedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_lagged_total",
			Help: "Total lag errors reported to bus subscribers",
		},
	)

	// BusActiveCursors tracks open subscriber cursors
	BusActiveCursors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bus_active_cursors",
			Help: "Number of open bus subscriber cursors",
		},
	)
)

// Connection Metrics (TCP listener and websocket stream)
var (
	// ConnectionsCurrent tracks open fan-out connections by transport (tcp/websocket)
	ConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connections_current",
			Help: "Current number of fan-out connections by transport",
		},
		[]string{"transport"},
	)

	// ConnectionsTotal tracks accepted fan-out connections by transport
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_total",
			Help: "Total fan-out connections accepted by transport",
		},
		[]string{"transport"},
	)

	// ConnectionsRejected tracks connections refused by the connection limits
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Total connections rejected by reason",
		},
		[]string{"reason"}, // "global_limit", "per_ip_limit", "rate_limit", "origin"
	)

	// ConnectionAcceptErrors counts failed accept calls on the TCP listener
	ConnectionAcceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_accept_errors_total",
			Help: "Total failed accept calls on the fan-out listener",
		},
	)

	// ConnectionTerminations tracks why connection handlers exited
	ConnectionTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_terminations_total",
			Help: "Total connection handler terminations by reason",
		},
		[]string{"reason"}, // "closed", "lagged", "encode", "write", "cancelled"
	)

	// MessageWriteDuration tracks time spent writing one serialized message to a socket
	MessageWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_write_duration_seconds",
			Help:    "Time to write one message to a fan-out connection",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Producer Metrics
var (
	// HeartbeatsTotal counts pings sent by the heartbeat producer
	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeats_total",
			Help: "Total heartbeat pings sent on the bus",
		},
	)

	// MessagesRateLimited counts POST /api/messages requests denied by the per-IP limiter
	MessagesRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_messages_rate_limited_total",
			Help: "Total message submissions rejected by the rate limiter",
		},
	)

	// RelayMessagesReceived counts relay payloads by outcome
	RelayMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total relay messages received by result",
		},
		[]string{"result"}, // "forwarded", "own", "invalid"
	)

	// RelayMessagesPublished counts relay publishes by status
	RelayMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Total messages published to the relay by status",
		},
		[]string{"status"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks relay Redis commands by command name and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by command and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis command latency
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors counts failed dials to Redis
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total failed Redis connection attempts",
		},
	)
)

// HTTP Metrics
var (
	// HTTPRequestDuration tracks request latency by method, route and status code
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsTotal counts requests by method, route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPInFlight tracks requests currently being served
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)
