// Package observability provides Prometheus metrics instrumentation for the bridge.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// TRANSPORT METRICS
// =============================================================================

var (
	transportConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blendmate_transport_connects_total",
			Help: "Total connection attempts to the counterpart",
		},
		[]string{"status"}, // status: success, error
	)

	transportConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blendmate_transport_connected",
			Help: "1 while a socket to the counterpart is open",
		},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blendmate_messages_total",
			Help: "Frames moved across the socket",
		},
		[]string{"direction", "status"}, // direction: inbound, outbound; status: ok, error, dropped
	)
)

// =============================================================================
// QUEUE METRICS
// =============================================================================

var (
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blendmate_queue_depth",
			Help: "Messages waiting in a bridge queue at the last tick",
		},
		[]string{"queue"}, // queue: inbound, outbound
	)
)

// =============================================================================
// COMMAND METRICS
// =============================================================================

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blendmate_commands_total",
			Help: "Commands dispatched through the registry",
		},
		[]string{"action", "code"},
	)

	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blendmate_command_duration_seconds",
			Help:    "Command handler duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"action"},
	)
)

// =============================================================================
// THROTTLE & SESSION METRICS
// =============================================================================

var (
	throttleOccurrencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blendmate_throttle_occurrences_total",
			Help: "Change notifications submitted to the throttle",
		},
		[]string{"kind"},
	)

	throttleFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blendmate_throttle_flushes_total",
			Help: "Coalesced events emitted by the throttle",
		},
		[]string{"kind"},
	)

	protocolVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blendmate_protocol_version",
			Help: "Negotiated protocol version of the current session",
		},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordConnect records a connection attempt.
func RecordConnect(status string) {
	transportConnectsTotal.WithLabelValues(status).Inc()
}

// SetConnected flips the connected gauge.
func SetConnected(connected bool) {
	if connected {
		transportConnected.Set(1)
		return
	}
	transportConnected.Set(0)
}

// RecordMessage records a frame crossing the socket.
func RecordMessage(direction, status string) {
	messagesTotal.WithLabelValues(direction, status).Inc()
}

// SetQueueDepth records the depth of a bridge queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordCommand records a dispatched command and its outcome code.
func RecordCommand(action, code string, durationMS float64) {
	commandsTotal.WithLabelValues(action, code).Inc()
	commandDurationSeconds.WithLabelValues(action).Observe(durationMS / 1000.0)
}

// RecordThrottleOccurrence records a notification entering the throttle.
func RecordThrottleOccurrence(kind string) {
	throttleOccurrencesTotal.WithLabelValues(kind).Inc()
}

// RecordThrottleFlush records a coalesced event leaving the throttle.
func RecordThrottleFlush(kind string) {
	throttleFlushesTotal.WithLabelValues(kind).Inc()
}

// SetProtocolVersion records the negotiated protocol version.
func SetProtocolVersion(v int) {
	protocolVersion.Set(float64(v))
}
