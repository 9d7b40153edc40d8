package blockrelationstore

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

var blockRelationsBucketName = []byte("block-relations")

// blockRelationStore represents a store of BlockRelations
type blockRelationStore struct {
	dbContext model.DBReader
	cache     *lru.Cache
	bucket    model.DBBucket
}

// New instantiates a new BlockRelationStore
func New(dbContext model.DBReader, prefix byte, cacheSize int) (model.BlockRelationStore, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create a block relations cache of size %d", cacheSize)
	}
	return &blockRelationStore{
		dbContext: dbContext,
		cache:     cache,
		bucket:    database.MakeBucket([]byte{prefix}).Bucket(blockRelationsBucketName),
	}, nil
}

func (brs *blockRelationStore) StageBlockRelation(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	parents []*externalapi.DomainHash) error {

	exists, err := brs.Has(stagingArea, blockHash)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(database.ErrKeyAlreadyExists, "relations of block %s already exist", blockHash)
	}

	stagingShard := brs.stagingShard(stagingArea)
	stagingShard.stage(blockHash, &model.BlockRelations{
		Parents:  externalapi.CloneHashes(parents),
		Children: []*externalapi.DomainHash{},
	})
	for _, parent := range parents {
		err := brs.updateRelation(stagingArea, parent, func(relations *model.BlockRelations) error {
			relations.Children = append(relations.Children, blockHash)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (brs *blockRelationStore) StageReplaceParent(stagingArea *model.StagingArea, blockHash,
	replacedParent *externalapi.DomainHash, replaceWith []*externalapi.DomainHash) error {

	var addedParents []*externalapi.DomainHash
	err := brs.updateRelation(stagingArea, blockHash, func(relations *model.BlockRelations) error {
		parents, removed := removeHash(relations.Parents, replacedParent)
		if !removed {
			return errors.Wrapf(ruleerrors.ErrDataInconsistency,
				"%s is not a parent of %s", replacedParent, blockHash)
		}
		for _, candidate := range replaceWith {
			if containsHash(parents, candidate) {
				continue
			}
			parents = append(parents, candidate)
			addedParents = append(addedParents, candidate)
		}
		relations.Parents = parents
		return nil
	})
	if err != nil {
		return err
	}

	err = brs.updateRelation(stagingArea, replacedParent, func(relations *model.BlockRelations) error {
		relations.Children, _ = removeHash(relations.Children, blockHash)
		return nil
	})
	if err != nil {
		return err
	}
	for _, parent := range addedParents {
		err := brs.updateRelation(stagingArea, parent, func(relations *model.BlockRelations) error {
			relations.Children = append(relations.Children, blockHash)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (brs *blockRelationStore) Delete(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) error {
	relations, err := brs.blockRelation(stagingArea, blockHash)
	if err != nil {
		return err
	}
	if len(relations.Children) != 0 {
		return errors.Wrapf(ruleerrors.ErrDataInconsistency,
			"cannot delete the relations of %s while it has children %s", blockHash, relations.Children)
	}
	for _, parent := range relations.Parents {
		err := brs.updateRelation(stagingArea, parent, func(relations *model.BlockRelations) error {
			relations.Children, _ = removeHash(relations.Children, blockHash)
			return nil
		})
		if err != nil {
			return err
		}
	}
	brs.stagingShard(stagingArea).delete(blockHash)
	return nil
}

func (brs *blockRelationStore) IsStaged(stagingArea *model.StagingArea) bool {
	return brs.stagingShard(stagingArea).isStaged()
}

func (brs *blockRelationStore) BlockRelation(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*model.BlockRelations, error) {

	relations, err := brs.blockRelation(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return relations.Clone(), nil
}

func (brs *blockRelationStore) Has(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	_, err := brs.blockRelation(stagingArea, blockHash)
	if err != nil {
		if database.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (brs *blockRelationStore) ClearCache() {
	brs.cache.Purge()
}

func (brs *blockRelationStore) blockRelation(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*model.BlockRelations, error) {

	stagingShard := brs.stagingShard(stagingArea)
	if _, ok := stagingShard.toDelete[*blockHash]; ok {
		return nil, errors.Wrapf(database.ErrNotFound, "relations of block %s not found", blockHash)
	}
	if relations, ok := stagingShard.toAdd[*blockHash]; ok {
		return relations, nil
	}

	if relations, ok := brs.cache.Get(*blockHash); ok {
		return relations.(*model.BlockRelations), nil
	}

	relationsBytes, err := brs.dbContext.Get(brs.hashAsKey(blockHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, errors.Wrapf(database.ErrNotFound, "relations of block %s not found", blockHash)
		}
		return nil, err
	}
	relations, err := serialization.DBBytesToBlockRelations(relationsBytes)
	if err != nil {
		return nil, err
	}
	brs.cache.Add(*blockHash, relations)
	return relations, nil
}

// updateRelation stages a modified copy of the relations of blockHash.
func (brs *blockRelationStore) updateRelation(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	update func(relations *model.BlockRelations) error) error {

	relations, err := brs.blockRelation(stagingArea, blockHash)
	if err != nil {
		return err
	}
	relationsCopy := relations.Clone()
	err = update(relationsCopy)
	if err != nil {
		return err
	}
	brs.stagingShard(stagingArea).stage(blockHash, relationsCopy)
	return nil
}

func (brs *blockRelationStore) hashAsKey(hash *externalapi.DomainHash) model.DBKey {
	return brs.bucket.Key(hash.ByteSlice())
}

func removeHash(hashes []*externalapi.DomainHash, toRemove *externalapi.DomainHash) ([]*externalapi.DomainHash, bool) {
	for i, hash := range hashes {
		if hash.Equal(toRemove) {
			result := make([]*externalapi.DomainHash, 0, len(hashes)-1)
			result = append(result, hashes[:i]...)
			return append(result, hashes[i+1:]...), true
		}
	}
	return hashes, false
}

func containsHash(hashes []*externalapi.DomainHash, hash *externalapi.DomainHash) bool {
	for _, candidate := range hashes {
		if candidate.Equal(hash) {
			return true
		}
	}
	return false
}
