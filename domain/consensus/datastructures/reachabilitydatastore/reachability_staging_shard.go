package reachabilitydatastore

import (
	"github.com/kaspanet/reachability/domain/consensus/database/binaryserialization"
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

type reachabilityDataStagingShard struct {
	store       *reachabilityDataStore
	toAdd       map[externalapi.DomainHash]*model.ReachabilityData
	toDelete    map[externalapi.DomainHash]struct{}
	reindexRoot *externalapi.DomainHash
	countDelta  int
}

func (rds *reachabilityDataStore) stagingShard(stagingArea *model.StagingArea) *reachabilityDataStagingShard {
	return stagingArea.GetOrCreateShard(model.StagingShardIDReachabilityData, func() model.StagingShard {
		return &reachabilityDataStagingShard{
			store:       rds,
			toAdd:       make(map[externalapi.DomainHash]*model.ReachabilityData),
			toDelete:    make(map[externalapi.DomainHash]struct{}),
			reindexRoot: nil,
			countDelta:  0,
		}
	}).(*reachabilityDataStagingShard)
}

func (rdss *reachabilityDataStagingShard) Commit(dbTx model.DBTransaction) error {
	for hash, data := range rdss.toAdd {
		hash := hash
		err := dbTx.Put(rdss.store.hashAsKey(&hash), serialization.ReachabilityDataToDBBytes(data))
		if err != nil {
			return err
		}
		rdss.store.cache.Add(hash, data)
	}

	for hash := range rdss.toDelete {
		hash := hash
		err := dbTx.Delete(rdss.store.hashAsKey(&hash))
		if err != nil {
			return err
		}
		rdss.store.cache.Remove(hash)
	}

	if rdss.reindexRoot != nil {
		err := dbTx.Put(rdss.store.reindexRootKey, binaryserialization.SerializeHash(rdss.reindexRoot))
		if err != nil {
			return err
		}
		rdss.store.setReindexRootCache(rdss.reindexRoot)
	}

	if rdss.countDelta != 0 {
		count, err := rdss.store.count()
		if err != nil {
			return err
		}
		count += rdss.countDelta
		err = dbTx.Put(rdss.store.countKey, binaryserialization.SerializeUint64(uint64(count)))
		if err != nil {
			return err
		}
		rdss.store.setCountCache(count)
	}

	return nil
}

func (rdss *reachabilityDataStagingShard) isStaged() bool {
	return len(rdss.toAdd) != 0 || len(rdss.toDelete) != 0 || rdss.reindexRoot != nil || rdss.countDelta != 0
}
