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
		Name: "live_subtitles_active_sessions",
		Help: "Number of active transcription sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_subtitles_sessions_total",
		Help: "Total number of sessions handled",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_subtitles_session_duration_seconds",
		Help:    "Duration of transcription sessions in seconds",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
	})

	// Audio metrics
	chunksEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_chunks_emitted_total",
		Help: "Total audio chunks emitted by the chunker",
	}, []string{"mode"}) // mode: "final" or "instant"

	samplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_subtitles_samples_ingested_total",
		Help: "Total audio samples ingested",
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_transcription_requests_total",
		Help: "Total number of recognition requests",
	}, []string{"mode", "status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_subtitles_transcription_latency_seconds",
		Help:    "Recognition latency per chunk in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	chunksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_chunks_dropped_total",
		Help: "Chunks dropped before recognition",
	}, []string{"reason"}) // reason: "model_not_ready", "session_closed"

	duplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_subtitles_duplicates_suppressed_total",
		Help: "Final transcripts suppressed as hallucinated repeats",
	})

	// Model lifecycle metrics
	modelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_model_loads_total",
		Help: "Total model load operations",
	}, []string{"model", "status"})

	modelLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "live_subtitles_model_load_duration_seconds",
		Help:    "Duration of model download/load operations",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"model"})

	modelDownloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_model_download_bytes_total",
		Help: "Bytes downloaded for model artifacts",
	}, []string{"model"})

	// Translation metrics
	translationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_translation_requests_total",
		Help: "Total number of translation requests",
	}, []string{"status"})

	translationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_subtitles_translation_latency_seconds",
		Help:    "Translation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_subtitles_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "live_subtitles_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single session
type SessionMetrics struct {
	sessionID string
	startTime time.Time

	mu                 sync.Mutex
	transcribeStart    time.Time
	translateStartTime time.Time
}

// NewSessionMetrics creates a metrics tracker for one session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordChunkEmitted records an emitted chunk
func (m *SessionMetrics) RecordChunkEmitted(mode string) {
	chunksEmitted.WithLabelValues(mode).Inc()
}

// RecordSamplesIngested records ingested samples
func (m *SessionMetrics) RecordSamplesIngested(n int) {
	samplesIngested.Add(float64(n))
}

// RecordTranscribeStart marks the beginning of a recognition call
func (m *SessionMetrics) RecordTranscribeStart() {
	m.mu.Lock()
	m.transcribeStart = time.Now()
	m.mu.Unlock()
}

// RecordTranscribeEnd records the outcome of a recognition call
func (m *SessionMetrics) RecordTranscribeEnd(mode string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.transcribeStart.IsZero() {
		transcriptionLatency.Observe(time.Since(m.transcribeStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(mode, status).Inc()
}

// RecordChunkDropped records a chunk dropped before recognition
func (m *SessionMetrics) RecordChunkDropped(reason string) {
	chunksDropped.WithLabelValues(reason).Inc()
}

// RecordDuplicateSuppressed records a suppressed hallucinated repeat
func (m *SessionMetrics) RecordDuplicateSuppressed() {
	duplicatesSuppressed.Inc()
}

// RecordTranslateStart marks the beginning of a translation call
func (m *SessionMetrics) RecordTranslateStart() {
	m.mu.Lock()
	m.translateStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTranslateEnd records the outcome of a translation call
func (m *SessionMetrics) RecordTranslateEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.translateStartTime.IsZero() {
		translationLatency.Observe(time.Since(m.translateStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	translationRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordModelLoad records a model load outcome
func RecordModelLoad(model string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	modelLoads.WithLabelValues(model, status).Inc()
	modelLoadDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordModelDownloadBytes records downloaded artifact bytes
func RecordModelDownloadBytes(model string, n int64) {
	modelDownloadBytes.WithLabelValues(model).Add(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
