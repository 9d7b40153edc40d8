package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	"github.com/pkg/errors"
)

// ReachabilityFlags holds the reachability configuration. It is meant to
// be embedded in an application's config struct.
type ReachabilityFlags struct {
	ReindexDepth                   uint64 `long:"reindex-depth" description:"Distance in tree heights between the selected tip and the reindex root" default:"100"`
	ReindexSlack                   uint64 `long:"reindex-slack" description:"Interval slack allocated to each chain block when reindexing" default:"4096"`
	CacheSize                      int    `long:"cache-size" description:"Number of reachability entries kept in the in-memory cache" default:"10000"`
	OverrideReachabilityParamsFile string `long:"override-reachability-params-file" description:"Overrides reachability params from a JSON file"`
}

type overrideReachabilityParamsConfig struct {
	ReindexDepth *uint64 `json:"reindexDepth"`
	ReindexSlack *uint64 `json:"reindexSlack"`
	CacheSize    *int    `json:"cacheSize"`
}

// ResolveReachability applies the override params file, if any, and
// validates the result. Errors are also reported to stderr along with the
// parser's help.
func (reachabilityFlags *ReachabilityFlags) ResolveReachability(parser *flags.Parser) error {
	err := reachabilityFlags.overrideReachabilityParams()
	if err == nil {
		err = reachabilityFlags.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if parser != nil {
			parser.WriteHelp(os.Stderr)
		}
		return err
	}
	return nil
}

// Validate makes sure the reachability params are usable
func (reachabilityFlags *ReachabilityFlags) Validate() error {
	if reachabilityFlags.ReindexDepth == 0 {
		return errors.Errorf("reindex-depth must be greater than 0")
	}
	if reachabilityFlags.ReindexSlack == 0 {
		return errors.Errorf("reindex-slack must be greater than 0")
	}
	if reachabilityFlags.ReindexSlack > reachabilitymanager.MaxReindexSlack {
		return errors.Errorf("reindex-slack must be at most %d, got %d",
			reachabilitymanager.MaxReindexSlack, reachabilityFlags.ReindexSlack)
	}
	if reachabilityFlags.CacheSize <= 0 {
		return errors.Errorf("cache-size must be greater than 0, got %d", reachabilityFlags.CacheSize)
	}
	return nil
}

func (reachabilityFlags *ReachabilityFlags) overrideReachabilityParams() error {
	if reachabilityFlags.OverrideReachabilityParamsFile == "" {
		return nil
	}

	overrideFile, err := os.Open(reachabilityFlags.OverrideReachabilityParamsFile)
	if err != nil {
		return errors.WithStack(err)
	}
	defer overrideFile.Close()

	decoder := json.NewDecoder(overrideFile)
	decoder.DisallowUnknownFields()
	config := &overrideReachabilityParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", reachabilityFlags.OverrideReachabilityParamsFile)
	}

	if config.ReindexDepth != nil {
		reachabilityFlags.ReindexDepth = *config.ReindexDepth
	}

	if config.ReindexSlack != nil {
		reachabilityFlags.ReindexSlack = *config.ReindexSlack
	}

	if config.CacheSize != nil {
		reachabilityFlags.CacheSize = *config.CacheSize
	}

	return nil
}
