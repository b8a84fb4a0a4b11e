package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's send counters. Register once per process.
type Metrics struct {
	sends       *prometheus.CounterVec
	violations  *prometheus.CounterVec
	automations *prometheus.CounterVec
}

// NewMetrics registers the pipeline counters on reg. Pass a fresh registry
// in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messaging",
			Subsystem: "pipeline",
			Name:      "sends_total",
			Help:      "Message sends by terminal status.",
		}, []string{"status"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messaging",
			Subsystem: "dlp",
			Name:      "violations_total",
			Help:      "Content scanner findings by severity.",
		}, []string{"severity"}),
		automations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messaging",
			Subsystem: "automation",
			Name:      "actions_total",
			Help:      "Automation actions by type.",
		}, []string{"action"}),
	}
}

func (m *Metrics) observeSend(status SendStatus) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeViolation(severity string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(severity).Inc()
}

func (m *Metrics) observeAutomation(action string) {
	if m == nil {
		return
	}
	m.automations.WithLabelValues(action).Inc()
}
