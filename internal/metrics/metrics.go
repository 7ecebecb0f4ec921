// Package metrics exposes per-light gauges and poll/command counters
// for prometheus scraping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles all collectors registered by the daemon.
type Metrics struct {
	lightOn         *prometheus.GaugeVec
	lightBrightness *prometheus.GaugeVec
	lightColorTemp  *prometheus.GaugeVec
	lightAvailable  *prometheus.GaugeVec
	pollFailures    *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// New creates and registers all collectors against the registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lightOn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sengled_light_on",
				Help: "Whether the light is on (1) or off (0).",
			},
			[]string{"host", "name"}),
		lightBrightness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sengled_light_brightness",
				Help: "Current brightness on the canonical 0-255 scale.",
			},
			[]string{"host", "name"}),
		lightColorTemp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sengled_light_color_temp_kelvin",
				Help: "Current color temperature in Kelvin, if in color-temperature mode.",
			},
			[]string{"host", "name"}),
		lightAvailable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sengled_light_available",
				Help: "Whether the light answered its last poll (1) or not (0).",
			},
			[]string{"host", "name"}),
		pollFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sengled_poll_failures_total",
				Help: "Polls that yielded no usable state.",
			},
			[]string{"host"}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sengled_commands_total",
				Help: "Commands issued to bulbs by function and outcome.",
			},
			[]string{"host", "func", "outcome"}),
	}
	reg.MustRegister(m.lightOn)
	reg.MustRegister(m.lightBrightness)
	reg.MustRegister(m.lightColorTemp)
	reg.MustRegister(m.lightAvailable)
	reg.MustRegister(m.pollFailures)
	reg.MustRegister(m.commands)
	return m
}

// ObserveState records the canonical state of one light.
func (m *Metrics) ObserveState(host, name string, on bool, brightness uint8, colorTempKelvin *int) {
	onVal := 0.0
	if on {
		onVal = 1.0
	}
	m.lightOn.WithLabelValues(host, name).Set(onVal)
	m.lightBrightness.WithLabelValues(host, name).Set(float64(brightness))
	if colorTempKelvin != nil {
		m.lightColorTemp.WithLabelValues(host, name).Set(float64(*colorTempKelvin))
	}
}

// ObserveAvailability records whether the light answered its poll.
func (m *Metrics) ObserveAvailability(host, name string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	m.lightAvailable.WithLabelValues(host, name).Set(v)
}

// CountPollFailure increments the poll failure counter for a host.
func (m *Metrics) CountPollFailure(host string) {
	m.pollFailures.WithLabelValues(host).Inc()
}

// CountCommand increments the command counter.
func (m *Metrics) CountCommand(host, fn string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commands.WithLabelValues(host, fn, outcome).Inc()
}
