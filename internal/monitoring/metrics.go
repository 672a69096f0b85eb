package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the enforcement pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueDrops      *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Captures        *prometheus.CounterVec
	Correlation     *prometheus.CounterVec
	Vehicles        *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		QueueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtrap",
			Name:      "queue_drops_total",
			Help:      "Items dropped because a pipeline queue was full",
		}, []string{"queue"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtrap",
			Name:      "publish_failures_total",
			Help:      "Publishes that did not reach every subscriber within the timeout",
		}, []string{"topic"}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtrap",
			Name:      "captures_total",
			Help:      "Capture results by outcome",
		}, []string{"outcome"}),
		Correlation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtrap",
			Name:      "correlation_total",
			Help:      "Correlation table events (store, take, miss, evict)",
		}, []string{"event"}),
		Vehicles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtrap",
			Name:      "vehicles_total",
			Help:      "Classified vehicles by status",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.QueueDrops, m.PublishFailures, m.Captures, m.Correlation, m.Vehicles,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// QueueDrop counts one item dropped from the named queue.
func (m *Metrics) QueueDrop(queue string) {
	if m == nil {
		return
	}
	m.QueueDrops.WithLabelValues(queue).Inc()
}

// PublishFailure counts one failed publish on the named topic.
func (m *Metrics) PublishFailure(topic string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(topic).Inc()
}

// Capture counts one capture result by outcome ("success" or "failure").
func (m *Metrics) Capture(outcome string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(outcome).Inc()
}

// CorrelationEvent counts one correlation table event.
func (m *Metrics) CorrelationEvent(event string) {
	if m == nil {
		return
	}
	m.Correlation.WithLabelValues(event).Inc()
}

// Vehicle counts one classified vehicle.
func (m *Metrics) Vehicle(status string) {
	if m == nil {
		return
	}
	m.Vehicles.WithLabelValues(status).Inc()
}
