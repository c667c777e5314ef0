package controller

import "github.com/prometheus/client_golang/prometheus"

var _ prometheus.Collector = &Metrics{}

// Metrics counts controller activity. A nil *Metrics disables counting, so
// callers that don't scrape can pass nil.
type Metrics struct {
	commands *prometheus.CounterVec
	pauses   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName("zoned", "controller", "commands_total"),
			Help: "Number of commands sent to a device",
		}, []string{"controller", "device"}),
		pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName("zoned", "controller", "pauses_total"),
			Help: "Number of times climate control was paused",
		}, []string{"controller", "trigger"}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.commands.Describe(ch)
	m.pauses.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.commands.Collect(ch)
	m.pauses.Collect(ch)
}

func (m *Metrics) countCommand(controller, device string) {
	if m != nil {
		m.commands.WithLabelValues(controller, device).Inc()
	}
}

func (m *Metrics) countPause(controller, trigger string) {
	if m != nil {
		m.pauses.WithLabelValues(controller, trigger).Inc()
	}
}
