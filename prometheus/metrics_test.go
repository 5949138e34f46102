package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordRFQOutcome("created")
	m.RecordRFQOutcome("created")
	m.RecordNotification("failed")
	m.RecordToolCall("list_categories", "ok")
	m.RecordAuth(false)
	m.TrackDBOperation("query")(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RFQOutcomesCounter.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsCounter.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsCounter.WithLabelValues("list_categories", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttemptsCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthErrorsCounter))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DbOperationDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRFQOutcome("created")
		m.RecordNotification("sent")
		m.RecordToolCall("x", "ok")
		m.RecordAuth(true)
		m.RecordHTTPRequest("GET", "/", "200", time.Second)
		m.ObserveSuppliersMatched(3)
		m.TrackDBOperation("insert")(time.Now())
	})
}
