package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModelMetrics tracks one adapter's request counters, in-flight load and
// smoothed response time. All methods are safe for concurrent use.
type ModelMetrics struct {
	mu          sync.Mutex
	total       int64
	successful  int64
	failed      int64
	avgResponse float64 // seconds, exponential moving average
	currentLoad int
}

// MetricsSnapshot is a point-in-time copy of one model's metrics.
type MetricsSnapshot struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessRate         float64 `json:"success_rate"`
	AverageResponseTime float64 `json:"average_response_time"`
	CurrentLoad         int     `json:"current_load"`
}

// UpdateSuccess records a successful request. The smoothed average keeps
// 80% of its prior value and takes 20% from the new sample.
func (m *ModelMetrics) UpdateSuccess(responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.successful++
	secs := responseTime.Seconds()
	if m.avgResponse == 0 {
		m.avgResponse = secs
	} else {
		m.avgResponse = m.avgResponse*0.8 + secs*0.2
	}
}

// UpdateFailure records a failed request.
func (m *ModelMetrics) UpdateFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.failed++
}

// IncrementLoad marks one request in flight.
func (m *ModelMetrics) IncrementLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentLoad++
}

// DecrementLoad marks one request finished. Load never goes negative.
func (m *ModelMetrics) DecrementLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentLoad > 0 {
		m.currentLoad--
	}
}

// Snapshot returns a copy of the current metrics.
func (m *ModelMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	successRate := 1.0
	if m.total > 0 {
		successRate = 1.0 - float64(m.failed)/float64(m.total)
	}
	return MetricsSnapshot{
		TotalRequests:       m.total,
		SuccessRate:         successRate,
		AverageResponseTime: m.avgResponse,
		CurrentLoad:         m.currentLoad,
	}
}

// promMetrics are the engine's Prometheus instruments, registered on the
// engine's own registry so multiple engines never collide.
type promMetrics struct {
	generations     *prometheus.CounterVec
	responseSeconds *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	factory := promauto.With(reg)
	return &promMetrics{
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videoflow",
			Name:      "generations_total",
			Help:      "Generation attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		responseSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "videoflow",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generation dispatch calls by model.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"model"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videoflow",
			Name:      "in_flight_requests",
			Help:      "Requests currently dispatched to a model.",
		}, []string{"model"}),
	}
}
