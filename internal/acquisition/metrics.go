package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chadmayfield/weathercache/internal/fetcher"
)

// Metrics counts cache lookups and fetch outcomes.
type Metrics struct {
	lookups *prometheus.CounterVec
	fetches *prometheus.CounterVec
	written prometheus.Counter
}

// NewMetrics registers the acquisition counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathercache",
			Name:      "cache_lookups_total",
			Help:      "Store lookups by result (hit or miss).",
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathercache",
			Name:      "fetches_total",
			Help:      "Downloads by outcome (ok, failed, error).",
		}, []string{"outcome"}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weathercache",
			Name:      "records_written_total",
			Help:      "Observations inserted by downloads after deduplication.",
		}),
	}
	reg.MustRegister(m.lookups, m.fetches, m.written)
	return m
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
	} else {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

// fetched records one download. "failed" is a recoverable transport failure,
// "error" a fatal one.
func (m *Metrics) fetched(status fetcher.Status, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.fetches.WithLabelValues("error").Inc()
	case status.OK():
		m.fetches.WithLabelValues("ok").Inc()
	default:
		m.fetches.WithLabelValues("failed").Inc()
	}
	m.written.Add(float64(status.RecordsWritten))
}
