package did

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "neo"
	metricsSubsystem = "did"
)

type metrics struct {
	events           *prometheus.CounterVec
	identities       prometheus.Gauge
	observerFailures prometheus.Counter
}

// newMetrics constructs Manager metrics. Metrics are counted even if they
// are never registered.
func newMetrics() *metrics {
	return &metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_total",
			Help:      "Number of applied registration transaction events.",
		}, []string{"status"}),
		identities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "identities",
			Help:      "Number of managed identities.",
		}),
		observerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "observer_failures_total",
			Help:      "Number of notifications failed by observers.",
		}),
	}
}

func (x *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{x.events, x.identities, x.observerFailures}
}

// register registers all metrics in r. Nothing stays registered on failure.
func (x *metrics) register(r prometheus.Registerer) error {
	cs := x.collectors()

	for i := range cs {
		if err := r.Register(cs[i]); err != nil {
			for j := 0; j < i; j++ {
				r.Unregister(cs[j])
			}
			return fmt.Errorf("register metric: %w", err)
		}
	}

	return nil
}
