package stripedmap

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type tableMetrics struct {
	reg        prometheus.Registerer
	collectors []prometheus.Collector

	resizes          prometheus.Counter
	abandonedResizes prometheus.Counter
	lockTimeouts     *prometheus.CounterVec
}

func newTableMetrics(
	name string,
	reg prometheus.Registerer,
	entries, capacity func() float64,
) (*tableMetrics, error) {
	labels := prometheus.Labels{"table": name}
	m := &tableMetrics{
		reg: reg,
		resizes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "stripedmap",
			Name:        "resizes_total",
			Help:        "Total number of completed table resizes.",
			ConstLabels: labels,
		}),
		abandonedResizes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "stripedmap",
			Name:        "resizes_abandoned_total",
			Help:        "Total number of resizes abandoned on lock timeout.",
			ConstLabels: labels,
		}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "stripedmap",
			Name:        "lock_timeouts_total",
			Help:        "Total number of bucket lock acquisitions that timed out.",
			ConstLabels: labels,
		}, []string{"op"}),
	}
	m.collectors = []prometheus.Collector{
		m.resizes,
		m.abandonedResizes,
		m.lockTimeouts,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "stripedmap",
			Name:        "entries",
			Help:        "Number of entries in the table.",
			ConstLabels: labels,
		}, entries),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "stripedmap",
			Name:        "capacity",
			Help:        "Number of buckets in the table.",
			ConstLabels: labels,
		}, capacity),
	}
	if reg == nil {
		return m, nil
	}
	for i, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range m.collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, errors.Wrapf(err, "register metrics of table %q", name)
		}
	}
	return m, nil
}

func (m *tableMetrics) unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.collectors {
		m.reg.Unregister(c)
	}
}
