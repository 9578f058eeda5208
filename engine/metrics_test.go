package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModelMetricsSmoothedAverage(t *testing.T) {
	m := &ModelMetrics{}

	// the first sample seeds the average directly
	m.UpdateSuccess(2 * time.Second)
	assert.Equal(t, 2.0, m.Snapshot().AverageResponseTime)

	// subsequent samples blend 80/20
	m.UpdateSuccess(4 * time.Second)
	assert.InDelta(t, 2.4, m.Snapshot().AverageResponseTime, 1e-9)

	m.UpdateSuccess(4 * time.Second)
	assert.InDelta(t, 2.72, m.Snapshot().AverageResponseTime, 1e-9)
}

func TestModelMetricsSuccessRate(t *testing.T) {
	m := &ModelMetrics{}
	// no traffic yet counts as healthy
	assert.Equal(t, 1.0, m.Snapshot().SuccessRate)

	m.UpdateSuccess(time.Second)
	m.UpdateSuccess(time.Second)
	m.UpdateFailure()

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 1e-9)
}

func TestModelMetricsLoadFloor(t *testing.T) {
	m := &ModelMetrics{}
	m.DecrementLoad()
	assert.Equal(t, 0, m.Snapshot().CurrentLoad)

	m.IncrementLoad()
	m.IncrementLoad()
	m.DecrementLoad()
	assert.Equal(t, 1, m.Snapshot().CurrentLoad)
}
