package blockrelationstore

import (
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

type blockRelationStagingShard struct {
	store    *blockRelationStore
	toAdd    map[externalapi.DomainHash]*model.BlockRelations
	toDelete map[externalapi.DomainHash]struct{}
}

func (brs *blockRelationStore) stagingShard(stagingArea *model.StagingArea) *blockRelationStagingShard {
	return stagingArea.GetOrCreateShard(model.StagingShardIDBlockRelation, func() model.StagingShard {
		return &blockRelationStagingShard{
			store:    brs,
			toAdd:    make(map[externalapi.DomainHash]*model.BlockRelations),
			toDelete: make(map[externalapi.DomainHash]struct{}),
		}
	}).(*blockRelationStagingShard)
}

func (brss *blockRelationStagingShard) stage(blockHash *externalapi.DomainHash, relations *model.BlockRelations) {
	delete(brss.toDelete, *blockHash)
	brss.toAdd[*blockHash] = relations
}

func (brss *blockRelationStagingShard) delete(blockHash *externalapi.DomainHash) {
	delete(brss.toAdd, *blockHash)
	brss.toDelete[*blockHash] = struct{}{}
}

func (brss *blockRelationStagingShard) Commit(dbTx model.DBTransaction) error {
	for hash, relations := range brss.toAdd {
		hash := hash
		err := dbTx.Put(brss.store.hashAsKey(&hash), serialization.BlockRelationsToDBBytes(relations))
		if err != nil {
			return err
		}
		brss.store.cache.Add(hash, relations)
	}

	for hash := range brss.toDelete {
		hash := hash
		err := dbTx.Delete(brss.store.hashAsKey(&hash))
		if err != nil {
			return err
		}
		brss.store.cache.Remove(hash)
	}

	return nil
}

func (brss *blockRelationStagingShard) isStaged() bool {
	return len(brss.toAdd) != 0 || len(brss.toDelete) != 0
}
