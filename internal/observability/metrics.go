package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriber_active_sessions",
		Help: "Number of recognition sessions currently streaming",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_sessions_total",
		Help: "Total number of recognition sessions by outcome",
	}, []string{"outcome"}) // outcome: ok, or the error kind

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_session_duration_seconds",
		Help:    "Wall-clock duration of recognition sessions",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	firstResultLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_first_result_latency_seconds",
		Help:    "Time from handshake to the first recognized text",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Protocol metrics
	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_frames_sent_total",
		Help: "Frames written to the recognition connection",
	}, []string{"role"}) // role: first, continue, last

	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_events_received_total",
		Help: "Recognition events received",
	}, []string{"status"}) // status: ok, error, malformed

	audioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_audio_bytes_total",
		Help: "Raw audio bytes streamed",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_errors_total",
		Help: "Total number of errors",
	}, []string{"kind", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriber_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single recognition session
type Metrics struct {
	sessionID      string
	startTime      time.Time
	streamingStart time.Time
	firstResult    bool
	mu             sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordStreamingStart marks the handshake as complete
func (m *Metrics) RecordStreamingStart() {
	m.mu.Lock()
	m.streamingStart = time.Now()
	m.mu.Unlock()
	activeSessions.Inc()
}

// RecordSessionEnd records the end of a session. outcome is "ok" or an error kind.
func (m *Metrics) RecordSessionEnd(outcome string) {
	m.mu.Lock()
	streamed := !m.streamingStart.IsZero()
	m.mu.Unlock()

	if streamed {
		activeSessions.Dec()
	}
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFirstResult observes first-result latency once per session
func (m *Metrics) RecordFirstResult() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.firstResult || m.streamingStart.IsZero() {
		return
	}
	m.firstResult = true
	firstResultLatency.Observe(time.Since(m.streamingStart).Seconds())
}

// RecordFrame records one outbound frame and its raw payload size
func (m *Metrics) RecordFrame(role string, payloadBytes int) {
	framesSent.WithLabelValues(role).Inc()
	audioBytesSent.Add(float64(payloadBytes))
}

// RecordEvent records one inbound event
func (m *Metrics) RecordEvent(status string) {
	eventsReceived.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(kind, component string) {
	errorsTotal.WithLabelValues(kind, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
