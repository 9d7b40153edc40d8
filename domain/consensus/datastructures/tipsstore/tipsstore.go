package tipsstore

import (
	"sync"

	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

var tipsKeyName = []byte("tips")

type tipsStore struct {
	dbContext model.DBReader
	tipsKey   model.DBKey

	cacheLock sync.RWMutex
	cache     []*externalapi.DomainHash
}

// New instantiates a new TipsStore
func New(dbContext model.DBReader, prefix byte) model.TipsStore {
	return &tipsStore{
		dbContext: dbContext,
		tipsKey:   database.MakeBucket([]byte{prefix}).Key(tipsKeyName),
	}
}

func (ts *tipsStore) Stage(stagingArea *model.StagingArea, tips []*externalapi.DomainHash) {
	stagingShard := ts.stagingShard(stagingArea)
	stagingShard.newTips = externalapi.CloneHashes(tips)
}

func (ts *tipsStore) IsStaged(stagingArea *model.StagingArea) bool {
	return ts.stagingShard(stagingArea).isStaged()
}

func (ts *tipsStore) HasTips(stagingArea *model.StagingArea) (bool, error) {
	stagingShard := ts.stagingShard(stagingArea)
	if stagingShard.newTips != nil {
		return len(stagingShard.newTips) > 0, nil
	}

	ts.cacheLock.RLock()
	cached := ts.cache
	ts.cacheLock.RUnlock()
	if cached != nil {
		return len(cached) > 0, nil
	}

	return ts.dbContext.Has(ts.tipsKey)
}

func (ts *tipsStore) Tips(stagingArea *model.StagingArea) ([]*externalapi.DomainHash, error) {
	stagingShard := ts.stagingShard(stagingArea)
	if stagingShard.newTips != nil {
		return externalapi.CloneHashes(stagingShard.newTips), nil
	}

	ts.cacheLock.RLock()
	cached := ts.cache
	ts.cacheLock.RUnlock()
	if cached != nil {
		return externalapi.CloneHashes(cached), nil
	}

	tipsBytes, err := ts.dbContext.Get(ts.tipsKey)
	if err != nil {
		return nil, err
	}
	tips, err := serialization.DBBytesToTips(tipsBytes)
	if err != nil {
		return nil, err
	}
	ts.setCache(tips)
	return externalapi.CloneHashes(tips), nil
}

func (ts *tipsStore) ClearCache() {
	ts.setCache(nil)
}

func (ts *tipsStore) setCache(tips []*externalapi.DomainHash) {
	ts.cacheLock.Lock()
	defer ts.cacheLock.Unlock()
	ts.cache = tips
}
