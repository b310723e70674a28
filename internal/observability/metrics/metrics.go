// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "luis_stream"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted  *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionsFailed   *prometheus.CounterVec
	SessionsStopped  *prometheus.CounterVec
	SessionsReplaced prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Frame metrics
	FramesReceived  prometheus.Counter
	FrameBytes      prometheus.Counter
	FramesRejected  *prometheus.CounterVec
	FramesDropped   prometheus.Counter
	BridgeQueueSize *prometheus.GaugeVec

	// Recognition metrics
	EngineEvents  *prometheus.CounterVec
	EngineErrors  *prometheus.CounterVec
	UnknownEvents prometheus.Counter

	// Notification metrics
	NotificationsTotal   *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationLatency  prometheus.Histogram
	KafkaPublishTotal    *prometheus.CounterVec
	KafkaPublishErrors   *prometheus.CounterVec
	KafkaPublishLatency  *prometheus.HistogramVec
	CommandRequestsTotal *prometheus.CounterVec

	// gRPC ingress metrics
	StreamsActive  prometheus.Gauge
	StreamsTotal   *prometheus.CounterVec
	StreamDuration prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recognition sessions that reached listening state",
		}, []string{"provider"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently registered in the keeper",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of start commands that failed",
		}, []string{"reason"}),
		SessionsStopped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of sessions stopped",
		}, []string{"cause"}),
		SessionsReplaced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_replaced_total",
			Help:      "Total number of sessions evicted by a start for the same id",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time a session spent listening",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total audio frames fed to engines",
		}),
		FrameBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_total",
			Help:      "Total audio bytes fed to engines",
		}),
		FramesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Total audio frames rejected by the keeper",
		}, []string{"reason"}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total audio frames dropped because a bridge queue was full",
		}),
		BridgeQueueSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_queue_length",
			Help:      "Frames waiting in each bridge shard",
		}, []string{"shard"}),

		EngineEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_events_total",
			Help:      "Total recognition events received from engines",
		}, []string{"kind"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total engine errors",
		}, []string{"provider", "error_type"}),
		UnknownEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_unknown_events_total",
			Help:      "Total events of an unknown kind that were skipped",
		}),

		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total notifications attempted",
		}, []string{"event"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total notifications that failed",
		}, []string{"event"}),
		NotificationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_latency_seconds",
			Help:      "Outbound notification latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		CommandRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_requests_total",
			Help:      "Total start/stop commands received",
		}, []string{"action", "result"}),

		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of open gRPC ingress streams",
		}),
		StreamsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_total",
			Help:      "Total gRPC ingress streams by status",
		}, []string{"status"}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_stream_duration_seconds",
			Help:      "Duration of gRPC ingress streams",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

// RecordSessionStart records a session reaching listening state.
func (m *Metrics) RecordSessionStart(provider string) {
	m.SessionsStarted.WithLabelValues(provider).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionFailed records a start command that did not register a session.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

// RecordSessionStop records a registered session leaving the keeper.
func (m *Metrics) RecordSessionStop(cause string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsStopped.WithLabelValues(cause).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionReplaced records a last-start-wins eviction.
func (m *Metrics) RecordSessionReplaced() {
	m.SessionsReplaced.Inc()
}

// RecordFrame records audio fed to an engine.
func (m *Metrics) RecordFrame(bytes int) {
	m.FramesReceived.Inc()
	m.FrameBytes.Add(float64(bytes))
}

// RecordFrameRejected records a frame the keeper refused.
func (m *Metrics) RecordFrameRejected(reason string) {
	m.FramesRejected.WithLabelValues(reason).Inc()
}

// RecordFrameDropped records a frame lost to a full bridge queue.
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordEngineEvent records one event consumed from an engine.
func (m *Metrics) RecordEngineEvent(kind string) {
	m.EngineEvents.WithLabelValues(kind).Inc()
}

// RecordEngineError records an engine error.
func (m *Metrics) RecordEngineError(provider, errorType string) {
	m.EngineErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordUnknownEvent records a skipped event of unknown kind.
func (m *Metrics) RecordUnknownEvent() {
	m.UnknownEvents.Inc()
}

// RecordNotification records an outbound notification attempt.
func (m *Metrics) RecordNotification(event string, err error, latencySeconds float64) {
	m.NotificationsTotal.WithLabelValues(event).Inc()
	m.NotificationLatency.Observe(latencySeconds)
	if err != nil {
		m.NotificationsFailed.WithLabelValues(event).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}

// RecordCommand records a start/stop command outcome.
func (m *Metrics) RecordCommand(action, result string) {
	m.CommandRequestsTotal.WithLabelValues(action, result).Inc()
}

// RecordStreamStart records a gRPC stream being opened.
func (m *Metrics) RecordStreamStart() {
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a gRPC stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamsTotal.WithLabelValues(status).Inc()
	m.StreamDuration.Observe(durationSeconds)
}
