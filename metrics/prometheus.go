package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder registers devicegate counters and latency histograms
// with the default Prometheus registry.
type PrometheusRecorder struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewPrometheusRecorder() Recorder {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devicegate",
			Name:      "events_total",
			Help:      "devicegate event counters",
		},
		[]string{"type", "method"},
	)

	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devicegate",
			Name:      "latency_seconds",
			Help:      "devicegate operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "method"},
	)

	prometheus.MustRegister(events, latency)

	return &PrometheusRecorder{events: events, latency: latency}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.events.With(prometheus.Labels{
		"type":   name,
		"method": labels["method"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.latency.With(prometheus.Labels{
		"operation": name,
		"method":    labels["method"],
	}).Observe(d.Seconds())
}
