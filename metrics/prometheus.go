package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on prometheus counter and histogram
// vectors, labeled by event name and network.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a recorder and registers its collectors with
// the given registerer (pass prometheus.DefaultRegisterer for the default).
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "events_total",
			Help:      "x402 payment pipeline event counters",
		},
		[]string{"type", "network", "reason"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "x402",
			Name:      "latency_seconds",
			Help:      "x402 operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type", "network"},
	)

	if err := reg.Register(counters); err != nil {
		return nil, err
	}
	if err := reg.Register(histogram); err != nil {
		return nil, err
	}

	return &PrometheusRecorder{counters: counters, histogram: histogram}, nil
}

// IncCounter implements Recorder.
func (r *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	r.counters.WithLabelValues(name, labels["network"], labels["reason"]).Inc()
}

// ObserveLatency implements Recorder.
func (r *PrometheusRecorder) ObserveLatency(name string, duration time.Duration, labels map[string]string) {
	r.histogram.WithLabelValues(name, labels["network"]).Observe(duration.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
