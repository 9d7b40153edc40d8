package reachabilitydatastore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/database/binaryserialization"
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

var reachabilityDataBucketName = []byte("reachability-data")
var reindexRootKeyName = []byte("reachability-reindex-root")
var reachabilityCountKeyName = []byte("reachability-count")

// reachabilityDataStore represents a store of ReachabilityData
type reachabilityDataStore struct {
	dbContext model.DBReader
	cache     *lru.Cache

	reachabilityDataBucket model.DBBucket
	reindexRootKey         model.DBKey
	countKey               model.DBKey

	scalarsLock      sync.RWMutex
	reindexRootCache *externalapi.DomainHash
	countCache       int
	isCountCached    bool
}

// New instantiates a new ReachabilityDataStore reading committed data from
// dbContext. All of its keys live under the given prefix.
func New(dbContext model.DBReader, prefix byte, cacheSize int) (model.ReachabilityDataStore, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create a reachability data cache of size %d", cacheSize)
	}
	prefixBucket := database.MakeBucket([]byte{prefix})
	return &reachabilityDataStore{
		dbContext:              dbContext,
		cache:                  cache,
		reachabilityDataBucket: prefixBucket.Bucket(reachabilityDataBucketName),
		reindexRootKey:         prefixBucket.Key(reindexRootKeyName),
		countKey:               prefixBucket.Key(reachabilityCountKeyName),
	}, nil
}

// Staging returns a view of the store that accumulates writes in
// stagingArea. Reads through the view see the staged writes.
func (rds *reachabilityDataStore) Staging(stagingArea *model.StagingArea) model.ReachabilityStore {
	return &stagedStore{store: rds, shard: rds.stagingShard(stagingArea)}
}

// Reader returns a read-only view of the committed data.
func (rds *reachabilityDataStore) Reader() model.ReachabilityStoreReader {
	return &stagedStore{store: rds, shard: nil}
}

func (rds *reachabilityDataStore) IsStaged(stagingArea *model.StagingArea) bool {
	return rds.stagingShard(stagingArea).isStaged()
}

func (rds *reachabilityDataStore) ClearCache() {
	rds.cache.Purge()

	rds.scalarsLock.Lock()
	defer rds.scalarsLock.Unlock()
	rds.reindexRootCache = nil
	rds.isCountCached = false
}

func (rds *reachabilityDataStore) reachabilityData(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	if data, ok := rds.cache.Get(*blockHash); ok {
		return data.(*model.ReachabilityData), nil
	}

	dataBytes, err := rds.dbContext.Get(rds.hashAsKey(blockHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, notFoundError(blockHash)
		}
		return nil, err
	}

	data, err := serialization.DBBytesToReachabilityData(dataBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize reachability data of block %s", blockHash)
	}
	rds.cache.Add(*blockHash, data)
	return data, nil
}

func (rds *reachabilityDataStore) reindexRoot() (*externalapi.DomainHash, error) {
	rds.scalarsLock.RLock()
	cached := rds.reindexRootCache
	rds.scalarsLock.RUnlock()
	if cached != nil {
		return cached, nil
	}

	reindexRootBytes, err := rds.dbContext.Get(rds.reindexRootKey)
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, reindexRootNotFoundError()
		}
		return nil, err
	}
	reindexRoot, err := binaryserialization.DeserializeHash(reindexRootBytes)
	if err != nil {
		return nil, err
	}

	rds.scalarsLock.Lock()
	defer rds.scalarsLock.Unlock()
	rds.reindexRootCache = reindexRoot
	return reindexRoot, nil
}

func (rds *reachabilityDataStore) count() (int, error) {
	rds.scalarsLock.RLock()
	cached, isCached := rds.countCache, rds.isCountCached
	rds.scalarsLock.RUnlock()
	if isCached {
		return cached, nil
	}

	count := 0
	countBytes, err := rds.dbContext.Get(rds.countKey)
	if err != nil && !database.IsNotFoundError(err) {
		return 0, err
	}
	if err == nil {
		storedCount, err := binaryserialization.DeserializeUint64(countBytes)
		if err != nil {
			return 0, err
		}
		count = int(storedCount)
	}

	rds.setCountCache(count)
	return count, nil
}

func (rds *reachabilityDataStore) setReindexRootCache(reindexRoot *externalapi.DomainHash) {
	rds.scalarsLock.Lock()
	defer rds.scalarsLock.Unlock()
	rds.reindexRootCache = reindexRoot
}

func (rds *reachabilityDataStore) setCountCache(count int) {
	rds.scalarsLock.Lock()
	defer rds.scalarsLock.Unlock()
	rds.countCache = count
	rds.isCountCached = true
}

func (rds *reachabilityDataStore) hashAsKey(hash *externalapi.DomainHash) model.DBKey {
	return rds.reachabilityDataBucket.Key(hash.ByteSlice())
}
