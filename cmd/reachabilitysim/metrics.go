package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "reachabilitysim"

type simulationMetrics struct {
	blocksAdded   prometheus.Counter
	blocksPruned  prometheus.Counter
	addDuration   prometheus.Histogram
	queriesRun    *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

func newSimulationMetrics(registerer prometheus.Registerer) (*simulationMetrics, error) {
	metrics := &simulationMetrics{
		blocksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_added_total",
			Help:      "Number of blocks added to the DAG",
		}),
		blocksPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_pruned_total",
			Help:      "Number of blocks deleted from the DAG by pruning",
		}),
		addDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "add_block_duration_seconds",
			Help:      "Time it takes to add a single block",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		queriesRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verify_queries_total",
			Help:      "Number of verification queries, by answer",
		}, []string{"answer"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "query_duration_seconds",
			Help:      "Time it takes the oracle to answer a single ancestry query",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
	}

	collectorsToRegister := []prometheus.Collector{
		metrics.blocksAdded,
		metrics.blocksPruned,
		metrics.addDuration,
		metrics.queriesRun,
		metrics.queryDuration,
	}
	for _, collector := range collectorsToRegister {
		err := registerer.Register(collector)
		if err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// startMetricsServer serves the metrics gathered by gatherer under
// /metrics on listenAddr
func startMetricsServer(listenAddr string, gatherer prometheus.Gatherer) {
	spawn("startMetricsServer", func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		log.Infof("Metrics server listening on %s", listenAddr)
		log.Error(http.ListenAndServe(listenAddr, mux))
	})
}
