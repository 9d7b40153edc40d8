package reachabilitymanager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pkg/errors"
)

// Metrics counts the expensive paths of the reachability manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reindexes        prometheus.Counter
	reindexDuration  prometheus.Histogram
	reclaims         *prometheus.CounterVec
	reindexRootMoves prometheus.Counter
	concentrations   prometheus.Counter
}

// NewMetrics creates the reachability metrics under namespace and
// registers them with registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reindexes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindexes",
			Help:      "Number of reindexes triggered by an exhausted interval",
		}),
		reindexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reindex_duration_ms",
			Help:      "Time spent in a single reindex, in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		reclaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaims",
			Help:      "Number of reindexes that reclaimed interval space from the reindex root's chain",
		}, []string{"side"}),
		reindexRootMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_root_moves",
			Help:      "Number of times the reindex root advanced",
		}),
		concentrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concentrations",
			Help:      "Number of interval concentrations performed while advancing the reindex root",
		}),
	}

	collectors := []prometheus.Collector{
		m.reindexes, m.reindexDuration, m.reclaims, m.reindexRootMoves, m.concentrations,
	}
	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err != nil {
			return nil, errors.Wrap(err, "failed to register reachability metrics")
		}
	}
	return m, nil
}

func (m *Metrics) observeReindex(duration time.Duration) {
	if m == nil {
		return
	}
	m.reindexes.Inc()
	m.reindexDuration.Observe(float64(duration) / float64(time.Millisecond))
}

func (m *Metrics) observeReclaim(side string) {
	if m == nil {
		return
	}
	m.reclaims.WithLabelValues(side).Inc()
}

func (m *Metrics) observeReindexRootMove() {
	if m == nil {
		return
	}
	m.reindexRootMoves.Inc()
}

func (m *Metrics) observeConcentration() {
	if m == nil {
		return
	}
	m.concentrations.Inc()
}
