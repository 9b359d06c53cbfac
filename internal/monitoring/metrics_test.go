package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := NewMatcherMetrics(reg, "sort")
	require.NoError(t, err)

	m.ObserveFrame(3*time.Millisecond, 4, 2)
	m.ObserveFrame(time.Millisecond, 5, 3)
	m.FrameError()
	m.Born(3)
	m.Born(0)
	m.Pruned(2)
	m.Diverged(1)
	m.PoolOverflow(4)
	m.PoolOverflow(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frameErrors))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.confirmed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.born))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pruned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diverged))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.poolOverflow))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestMatcherMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMatcherMetrics(reg, "deep")
	require.NoError(t, err)
	_, err = NewMatcherMetrics(reg, "deep")
	assert.Error(t, err)

	// A different strategy label is a distinct series.
	_, err = NewMatcherMetrics(reg, "deep_sort")
	assert.NoError(t, err)
}

func TestMatcherMetricsNil(t *testing.T) {
	var m *MatcherMetrics
	assert.NotPanics(t, func() {
		m.ObserveFrame(time.Second, 1, 1)
		m.FrameError()
		m.Born(1)
		m.Pruned(1)
		m.Diverged(1)
		m.PoolOverflow(1)
	})

	unregistered, err := NewMatcherMetrics(nil, "sort")
	require.NoError(t, err)
	unregistered.Born(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(unregistered.born))
}
