package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_relay_active_connections",
		Help: "Number of active client connections",
	})

	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_relay_connections_total",
		Help: "Total number of client connections handled",
	})

	connectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_relay_connection_duration_seconds",
		Help:    "Duration of client connections in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Audio metrics
	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	framesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_relay_frames_emitted_total",
		Help: "Total fixed-size audio frames handed to the STT transport",
	})

	// Transcript metrics
	transcriptResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_transcript_results_total",
		Help: "Total transcript results forwarded to clients",
	}, []string{"kind"}) // kind: "partial" or "final"

	// Agent metrics
	agentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_agent_requests_total",
		Help: "Total number of agent invocations",
	}, []string{"status"})

	agentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_relay_agent_latency_seconds",
		Help:    "Agent invocation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_synthesis_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"}) // status: "success", "error", "cancelled"

	bargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_relay_barge_ins_total",
		Help: "Total number of playback sessions cancelled by barge-in",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// ConnMetrics tracks metrics for a single client connection
type ConnMetrics struct {
	startTime time.Time
}

// NewConnMetrics creates a metrics tracker for a connection and records
// its start.
func NewConnMetrics() *ConnMetrics {
	activeConnections.Inc()
	totalConnections.Inc()
	return &ConnMetrics{startTime: time.Now()}
}

// RecordEnd records the end of a connection
func (m *ConnMetrics) RecordEnd() {
	activeConnections.Dec()
	connectionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioBytes records audio bytes processed in one direction
func RecordAudioBytes(direction string, n int) {
	audioBytes.WithLabelValues(direction).Add(float64(n))
}

// RecordFrame records one frame handed to the STT transport
func RecordFrame() {
	framesEmitted.Inc()
}

// RecordTranscript records a forwarded transcript result
func RecordTranscript(isPartial bool) {
	kind := "final"
	if isPartial {
		kind = "partial"
	}
	transcriptResults.WithLabelValues(kind).Inc()
}

// RecordAgentCall records an agent invocation and its latency
func RecordAgentCall(start time.Time, success bool) {
	agentLatency.Observe(time.Since(start).Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	agentRequests.WithLabelValues(status).Inc()
}

// RecordSynthesis records the outcome of a synthesis request
func RecordSynthesis(status string) {
	synthesisRequests.WithLabelValues(status).Inc()
}

// RecordBargeIn records a playback session cancelled by a newer request
func RecordBargeIn() {
	bargeIns.Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
