package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector exported by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// RFQ workflow metrics
	RFQOutcomesCounter   *prometheus.CounterVec
	NotificationsCounter *prometheus.CounterVec
	SuppliersMatched     prometheus.Histogram

	// Tool invocations coming from the agent
	ToolCallsCounter *prometheus.CounterVec
}

// NewMetrics registers the service collectors on reg using prefix for names.
func NewMetrics(prefix string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthAttemptsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		}),
		AuthSuccessCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		}),
		AuthErrorsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		}),
		DbOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),
		RFQOutcomesCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_rfq_outcomes_total",
				Help: "Total number of RFQ workflow runs by outcome",
			},
			[]string{"outcome"},
		),
		NotificationsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_rfq_notifications_total",
				Help: "Total number of RFQ emails attempted by status",
			},
			[]string{"status"},
		),
		SuppliersMatched: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_rfq_suppliers_matched",
			Help:    "Number of suppliers matched per RFQ",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		ToolCallsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_tool_calls_total",
				Help: "Total number of agent tool calls",
			},
			[]string{"tool", "result"},
		),
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		duration := time.Since(startTime).Seconds()
		m.DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordHTTPRequest records one served HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordAuth increments the attempt counter and the matching result counter
func (m *Metrics) RecordAuth(success bool) {
	if m == nil {
		return
	}
	m.AuthAttemptsCounter.Inc()
	if success {
		m.AuthSuccessCounter.Inc()
	} else {
		m.AuthErrorsCounter.Inc()
	}
}

// RecordRFQOutcome increments the counter for a finished workflow run
func (m *Metrics) RecordRFQOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RFQOutcomesCounter.WithLabelValues(outcome).Inc()
}

// ObserveSuppliersMatched records how many suppliers a run matched
func (m *Metrics) ObserveSuppliersMatched(n int) {
	if m == nil {
		return
	}
	m.SuppliersMatched.Observe(float64(n))
}

// RecordNotification increments the counter for one RFQ email attempt
func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsCounter.WithLabelValues(status).Inc()
}

// RecordToolCall increments the counter for one agent tool call
func (m *Metrics) RecordToolCall(tool, result string) {
	if m == nil {
		return
	}
	m.ToolCallsCounter.WithLabelValues(tool, result).Inc()
}
