package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/radarmon/internal/logger"
	sshtesting "github.com/rileyhilliard/radarmon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeReading("a")
		m.observeMalformed("a")
		m.observeLine("a", 1)
		m.observeState("a", Streaming)
		m.observeWindow("a", 3)
	})
}

func TestMetrics_StateGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.observeState("host-1", Connecting)
	m.observeState("host-1", Reconnecting)
	m.observeState("host-1", Connecting)
	m.observeState("host-1", Streaming)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("host-1", "streaming")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("host-1", "connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects.WithLabelValues("host-1")))
}

func TestMetrics_CollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	client := streamingClient("host-1", sshtesting.StreamScript{
		Stdout: []string{"1 0.5", "garbage", "0 0", "1 0.7"},
		Hold:   true,
	})
	opts := fastOptions(logger.NewBufferLogger())
	opts.Metrics = m
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), opts)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.readings.WithLabelValues("host-1")) == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.malformed.WithLabelValues("host-1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.window.WithLabelValues("host-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("host-1", "streaming")))
	assert.Positive(t, testutil.ToFloat64(m.lastData.WithLabelValues("host-1")))

	n, err := testutil.GatherAndCount(reg, "radarmon_readings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
