package profiling

import (
	"net"
	"net/http"

	// Required for profiling
	_ "net/http/pprof"

	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/kaspanet/reachability/util/panics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start starts the profiling server on the given port. When gatherer is
// not nil its metrics are served under /metrics.
func Start(port string, gatherer prometheus.Gatherer, log *logger.Logger) {
	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		listenAddr := net.JoinHostPort("", port)
		log.Infof("Profile server listening on %s", listenAddr)

		mux := http.NewServeMux()
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		if gatherer != nil {
			mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		}
		mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))
		log.Error(http.ListenAndServe(listenAddr, mux))
	})
}
