package consensus

import (
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	"github.com/prometheus/client_golang/prometheus"
)

// Config is a descriptor for the consensus configuration
type Config struct {
	// ReindexDepth is the distance in tree heights kept between the
	// selected tip and the reindex root
	ReindexDepth uint64

	// ReindexSlack is the interval slack allocated when reindexing
	ReindexSlack uint64

	// CacheSize is the number of entries each store keeps in memory
	CacheSize int

	// Prefix is prepended to every database key, so that a single
	// database can hold more than one consensus
	Prefix byte

	// MetricsNamespace and Registerer control where reachability metrics
	// are registered. A nil Registerer disables metrics.
	MetricsNamespace string
	Registerer       prometheus.Registerer
}

// DefaultConfig returns a config with the default reachability params
// and metrics disabled
func DefaultConfig() *Config {
	return &Config{
		ReindexDepth:     reachabilitymanager.DefaultReindexDepth,
		ReindexSlack:     reachabilitymanager.DefaultReindexSlack,
		CacheSize:        10_000,
		Prefix:           0,
		MetricsNamespace: "reachability",
		Registerer:       nil,
	}
}
