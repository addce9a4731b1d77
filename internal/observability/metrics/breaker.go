package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

// breakerMetrics exposes circuit breaker state per operation:
// 0 closed, 1 half-open, 2 open.
type breakerMetrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func newBreakerMetrics(registry *prometheus.Registry, service string) *breakerMetrics {
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "breaker",
			Name:        "state",
			Help:        "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "breaker",
			Name:        "transitions_total",
			Help:        "Circuit breaker state transitions by target state.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation", "to"},
	)
	registry.MustRegister(state, transitions)
	return &breakerMetrics{state: state, transitions: transitions}
}

// BreakerListener feeds executor state changes into the gauges.
func (b *breakerMetrics) BreakerListener() resilience.StateListener {
	return func(operation string, _ gobreaker.State, to gobreaker.State) {
		b.state.WithLabelValues(operation).Set(breakerStateValue(to))
		b.transitions.WithLabelValues(operation, to.String()).Inc()
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
