package consensus

import (
	"io/ioutil"
	"os"
	"sync"

	consensusdatabase "github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/datastructures/blockrelationstore"
	"github.com/kaspanet/reachability/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/kaspanet/reachability/domain/consensus/datastructures/tipsstore"
	"github.com/kaspanet/reachability/domain/consensus/processes/dagtopologymanager"
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	"github.com/kaspanet/reachability/infrastructure/db/database"
	"github.com/kaspanet/reachability/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

const (
	defaultTestLevelDBCacheSizeMiB = 8
)

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(config *Config, db database.Database) (Consensus, error)
	NewTestConsensus(config *Config, testName string) (tc TestConsensus, teardown func(keepDataDir bool), err error)
}

type factory struct{}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus instantiates a new Consensus over db, initializing it with
// the origin if db is empty
func (f *factory) NewConsensus(config *Config, db database.Database) (Consensus, error) {
	consensusInstance, err := f.newConsensus(config, db)
	if err != nil {
		return nil, err
	}
	return consensusInstance, nil
}

func (f *factory) newConsensus(config *Config, db database.Database) (*consensus, error) {
	if config.ReindexDepth == 0 || config.ReindexSlack == 0 {
		return nil, errors.Errorf("reindex depth and slack must be positive, got %d and %d",
			config.ReindexDepth, config.ReindexSlack)
	}
	if config.ReindexSlack > reachabilitymanager.MaxReindexSlack {
		return nil, errors.Errorf("reindex slack must be at most %d, got %d",
			reachabilitymanager.MaxReindexSlack, config.ReindexSlack)
	}

	dbManager := consensusdatabase.New(db)

	// Data Structures
	reachabilityDataStore, err := reachabilitydatastore.New(dbManager, config.Prefix, config.CacheSize)
	if err != nil {
		return nil, err
	}
	blockRelationStore, err := blockrelationstore.New(dbManager, config.Prefix, config.CacheSize)
	if err != nil {
		return nil, err
	}
	tipsStore := tipsstore.New(dbManager, config.Prefix)

	// Processes
	var metrics *reachabilitymanager.Metrics
	if config.Registerer != nil {
		metrics, err = reachabilitymanager.NewMetrics(config.MetricsNamespace, config.Registerer)
		if err != nil {
			return nil, err
		}
	}
	reachabilityManager := reachabilitymanager.New(
		config.ReindexDepth,
		config.ReindexSlack,
		metrics)
	dagTopologyManager := dagtopologymanager.New(
		reachabilityManager,
		reachabilityDataStore,
		blockRelationStore,
		tipsStore)

	c := &consensus{
		lock:            &sync.RWMutex{},
		databaseContext: dbManager,

		reachabilityManager: reachabilityManager,
		dagTopologyManager:  dagTopologyManager,

		reachabilityDataStore: reachabilityDataStore,
		blockRelationStore:    blockRelationStore,
		tipsStore:             tipsStore,
	}

	err = c.init()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewTestConsensus instantiates a new TestConsensus over a LevelDB in a
// temporary directory. The returned teardown func closes the database and
// removes the directory unless keepDataDir is set.
func (f *factory) NewTestConsensus(config *Config, testName string) (
	tc TestConsensus, teardown func(keepDataDir bool), err error) {

	dataDir, err := ioutil.TempDir("", testName)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	db, err := ldb.NewLevelDB(dataDir, defaultTestLevelDBCacheSizeMiB)
	if err != nil {
		return nil, nil, err
	}

	consensusAsImplementation, err := f.newConsensus(config, db)
	if err != nil {
		db.Close()
		os.RemoveAll(dataDir)
		return nil, nil, err
	}

	tc = &testConsensus{
		consensus: consensusAsImplementation,
	}
	teardown = func(keepDataDir bool) {
		db.Close()
		if !keepDataDir {
			err := os.RemoveAll(dataDir)
			if err != nil {
				log.Errorf("Error removing data directory for test consensus: %s", err)
			}
		}
	}
	return tc, teardown, nil
}
