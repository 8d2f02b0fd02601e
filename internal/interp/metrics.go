package interp

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the interpreter's Prometheus collectors.
type Metrics struct {
	Operators     *prometheus.CounterVec
	Processes     *prometheus.CounterVec
	Subscriptions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operators: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scp",
				Subsystem: "interp",
				Name:      "operators_total",
				Help:      "Operator activations by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		Processes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scp",
				Subsystem: "interp",
				Name:      "processes_total",
				Help:      "Process lifecycle transitions.",
			},
			[]string{"event"},
		),
		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scp",
				Subsystem: "interp",
				Name:      "subscriptions",
				Help:      "Live sys_wait, waitReturn and agent subscriptions.",
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	m.Operators, err = register(reg, m.Operators)
	if err != nil {
		return nil, err
	}
	m.Processes, err = register(reg, m.Processes)
	if err != nil {
		return nil, err
	}
	m.Subscriptions, err = register(reg, m.Subscriptions)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) operator(kind, outcome string) {
	m.Operators.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) process(event string) {
	m.Processes.WithLabelValues(event).Inc()
}
