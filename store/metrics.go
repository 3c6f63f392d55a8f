package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "strata"

	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the Prometheus collectors for store operations. A nil
// *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	scanned    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Number of save/get/delete/query operations by outcome",
		}, []string{"family", "op", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of save/get/delete/query operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family", "op"}),

		scanned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "scanned_rows",
			Help:      "Rows returned by the index scan phase of a query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"family"}),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector, for callers registering them manually.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.duration, m.scanned}
}

func (m *Metrics) observe(family, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.operations.WithLabelValues(family, op, outcome).Inc()
	m.duration.WithLabelValues(family, op).Observe(d.Seconds())
}

func (m *Metrics) observeScan(family string, rows int) {
	if m == nil {
		return
	}
	m.scanned.WithLabelValues(family).Observe(float64(rows))
}
