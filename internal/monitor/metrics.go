package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by every source collector.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	readings   *prometheus.CounterVec
	malformed  *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	state      *prometheus.GaugeVec
	window     *prometheus.GaugeVec
	lastData   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarmon_readings_total",
			Help: "Readings parsed and buffered, per source.",
		}, []string{"source"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarmon_malformed_lines_total",
			Help: "Output lines dropped because they didn't parse, per source.",
		}, []string{"source"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarmon_reconnects_total",
			Help: "Times a source entered the reconnecting state.",
		}, []string{"source"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radarmon_connection_state",
			Help: "1 for the source's current connection state, 0 for the others.",
		}, []string{"source", "state"}),
		window: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radarmon_window_readings",
			Help: "Readings currently held in the source's window.",
		}, []string{"source"}),
		lastData: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radarmon_last_data_timestamp_seconds",
			Help: "Unix time of the last line received from the source.",
		}, []string{"source"}),
	}

	if reg != nil {
		reg.MustRegister(m.readings, m.malformed, m.reconnects, m.state, m.window, m.lastData)
	}
	return m
}

func (m *Metrics) observeReading(source string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(source).Inc()
}

func (m *Metrics) observeMalformed(source string) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(source).Inc()
}

func (m *Metrics) observeLine(source string, unixSeconds float64) {
	if m == nil {
		return
	}
	m.lastData.WithLabelValues(source).Set(unixSeconds)
}

func (m *Metrics) observeState(source string, state ConnectionState) {
	if m == nil {
		return
	}
	if state == Reconnecting {
		m.reconnects.WithLabelValues(source).Inc()
	}
	for s := Disconnected; s <= Failed; s++ {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(source, s.String()).Set(v)
	}
}

func (m *Metrics) observeWindow(source string, n int) {
	if m == nil {
		return
	}
	m.window.WithLabelValues(source).Set(float64(n))
}
