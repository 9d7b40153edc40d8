package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/reachability/domain/consensus"
	"github.com/kaspanet/reachability/infrastructure/db/database"
	"github.com/kaspanet/reachability/infrastructure/db/database/ldb"
	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/kaspanet/reachability/infrastructure/os/signal"
	"github.com/kaspanet/reachability/util/panics"
	"github.com/kaspanet/reachability/util/profiling"
	"github.com/pkg/errors"
)

const levelDBCacheSizeMiB = 64

func main() {
	defer panics.HandlePanic(log, "main", nil)
	interrupt := signal.InterruptListener()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}
	logger.InitLog(cfg.logFile(), cfg.errLogFile())
	defer logger.BackendLog.Close()

	doneChan := make(chan error, 1)
	spawn("simulate", func() {
		doneChan <- simulate(cfg, interrupt)
	})

	err = <-doneChan
	if err != nil {
		log.Criticalf("Simulation failed: %+v", err)
		logger.BackendLog.Close()
		os.Exit(1)
	}
}

func openDatabase(cfg *configFlags) (database.Database, error) {
	if cfg.Memory {
		log.Infof("Using an in-memory database")
		return ldb.NewMemoryLevelDB()
	}
	log.Infof("Using the database at %s", cfg.dataDir())
	return ldb.NewLevelDB(cfg.dataDir(), levelDBCacheSizeMiB)
}

func simulate(cfg *configFlags, interrupt <-chan struct{}) error {
	registry := newRegistry()
	metrics, err := newSimulationMetrics(registry)
	if err != nil {
		return err
	}
	if cfg.MetricsListen != "" {
		startMetricsServer(cfg.MetricsListen, registry)
	}
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, registry, log)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Error closing the database: %s", err)
		}
	}()

	consensusConfig := consensus.DefaultConfig()
	consensusConfig.ReindexDepth = cfg.ReindexDepth
	consensusConfig.ReindexSlack = cfg.ReindexSlack
	consensusConfig.CacheSize = cfg.CacheSize
	consensusConfig.Registerer = registry
	c, err := consensus.NewFactory().NewConsensus(consensusConfig, db)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Infof("Generating %d blocks with up to %d parents each (seed %d)", cfg.Blocks, cfg.MaxParents, seed)

	sim, err := newSimulation(c, metrics, seed, cfg.MaxParents, cfg.PruneDepth)
	if err != nil {
		return err
	}
	err = sim.run(cfg.Blocks, interrupt)
	if err != nil {
		return err
	}

	if !cfg.Verify {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	spawn("cancelOnInterrupt", func() {
		select {
		case <-interrupt:
			cancel()
		case <-ctx.Done():
		}
	})
	v := &verifier{
		consensus: c,
		metrics:   metrics,
		blocks:    sim.blocks(),
	}
	err = v.verify(ctx, cfg.Queries, seed)
	if errors.Is(err, context.Canceled) {
		log.Infof("Verification interrupted")
		return nil
	}
	return err
}
