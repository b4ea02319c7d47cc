package rangefile

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by a Gate.
// One Metrics value may be shared by gates of different families; series
// are labelled by family and op.
type Metrics struct {
	fetches *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	wait    *prometheus.HistogramVec
}

var metricLabels = []string{"family", "op"}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangefile_fetches_total",
			Help: "Remote calls issued through a gate.",
		}, metricLabels),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangefile_fetch_bytes_total",
			Help: "Bytes returned by remote range fetches.",
		}, metricLabels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangefile_fetch_errors_total",
			Help: "Remote calls that returned an error.",
		}, metricLabels),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rangefile_gate_wait_seconds",
			Help:    "Time spent waiting for the gate before a remote call.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, metricLabels),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.fetches, err = registerCounter(reg, m.fetches); err != nil {
		return nil, err
	}
	if m.bytes, err = registerCounter(reg, m.bytes); err != nil {
		return nil, err
	}
	if m.errors, err = registerCounter(reg, m.errors); err != nil {
		return nil, err
	}
	if err := reg.Register(m.wait); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		m.wait = existing
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) observe(family, op string, waited float64, n int, err error) {
	if m == nil {
		return
	}
	m.wait.WithLabelValues(family, op).Observe(waited)
	m.fetches.WithLabelValues(family, op).Inc()
	if err != nil {
		m.errors.WithLabelValues(family, op).Inc()
		return
	}
	m.bytes.WithLabelValues(family, op).Add(float64(n))
}
