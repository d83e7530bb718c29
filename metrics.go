package ddns

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// The collectors are always updated but exported only once RegisterMetrics is called.
var (
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_reconciliations_total",
		Help: "Total number of reconciliation cycles by result.",
	}, []string{"result"})

	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ddns_reconciliation_duration_seconds",
		Help:    "Duration of reconciliation cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	changePropagation = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ddns_change_propagation_seconds",
		Help:    "Time from the first status poll until a change was reported INSYNC.",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60},
	})

	changePolls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ddns_change_polls_total",
		Help: "Total number of change status polls.",
	})
)

const (
	resultUpdated   = "updated"
	resultUnchanged = "unchanged"
	resultError     = "error"
)

// RegisterMetrics registers the package's Prometheus collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range []prometheus.Collector{cyclesTotal, cycleDuration, changePropagation, changePolls} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
