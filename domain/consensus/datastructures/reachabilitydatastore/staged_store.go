package reachabilitydatastore

import (
	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// stagedStore is a view of a reachabilityDataStore through a single
// staging shard. A view without a shard is read-only.
type stagedStore struct {
	store *reachabilityDataStore
	shard *reachabilityDataStagingShard
}

var errReadOnlyView = errors.New("cannot modify a read-only reachability store view")

func (ss *stagedStore) get(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	if ss.shard != nil {
		if _, ok := ss.shard.toDelete[*blockHash]; ok {
			return nil, notFoundError(blockHash)
		}
		if data, ok := ss.shard.toAdd[*blockHash]; ok {
			return data, nil
		}
	}
	return ss.store.reachabilityData(blockHash)
}

func (ss *stagedStore) put(blockHash *externalapi.DomainHash, data *model.ReachabilityData) error {
	if ss.shard == nil {
		return errReadOnlyView
	}
	delete(ss.shard.toDelete, *blockHash)
	ss.shard.toAdd[*blockHash] = data
	return nil
}

func (ss *stagedStore) Has(blockHash *externalapi.DomainHash) (bool, error) {
	_, err := ss.get(blockHash)
	if err != nil {
		if database.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (ss *stagedStore) Count() (int, error) {
	count, err := ss.store.count()
	if err != nil {
		return 0, err
	}
	if ss.shard != nil {
		count += ss.shard.countDelta
	}
	return count, nil
}

func (ss *stagedStore) ReachabilityData(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	return readData(ss.get, blockHash)
}

func (ss *stagedStore) Interval(blockHash *externalapi.DomainHash) (*model.ReachabilityInterval, error) {
	return readInterval(ss.get, blockHash)
}

func (ss *stagedStore) Parent(blockHash *externalapi.DomainHash) (*externalapi.DomainHash, error) {
	return readParent(ss.get, blockHash)
}

func (ss *stagedStore) Children(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	return readChildren(ss.get, blockHash)
}

func (ss *stagedStore) FutureCoveringSet(blockHash *externalapi.DomainHash) (model.FutureCoveringTreeNodeSet, error) {
	return readFutureCoveringSet(ss.get, blockHash)
}

func (ss *stagedStore) Height(blockHash *externalapi.DomainHash) (uint64, error) {
	return readHeight(ss.get, blockHash)
}

func (ss *stagedStore) ReindexRoot() (*externalapi.DomainHash, error) {
	if ss.shard != nil && ss.shard.reindexRoot != nil {
		return ss.shard.reindexRoot, nil
	}
	return ss.store.reindexRoot()
}

func (ss *stagedStore) Init(origin *externalapi.DomainHash, capacity *model.ReachabilityInterval) error {
	err := ss.Insert(origin, nil, capacity, 0)
	if err != nil {
		return err
	}
	return ss.SetReindexRoot(origin)
}

func (ss *stagedStore) Insert(blockHash, parent *externalapi.DomainHash,
	interval *model.ReachabilityInterval, height uint64) error {

	exists, err := ss.Has(blockHash)
	if err != nil {
		return err
	}
	if exists {
		return alreadyExistsError(blockHash)
	}
	err = ss.put(blockHash, newReachabilityData(parent, interval, height))
	if err != nil {
		return err
	}
	ss.shard.countDelta++
	return nil
}

func (ss *stagedStore) SetInterval(blockHash *externalapi.DomainHash, interval *model.ReachabilityInterval) error {
	return mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		return setInterval(data, interval)
	})
}

func (ss *stagedStore) SetParent(blockHash, newParent *externalapi.DomainHash) error {
	return mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		return setParent(data, newParent)
	})
}

func (ss *stagedStore) AppendChild(blockHash, child *externalapi.DomainHash) (uint64, error) {
	var height uint64
	err := mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		height = data.Height
		return appendChild(data, child)
	})
	return height, err
}

func (ss *stagedStore) ReplaceChild(blockHash, replacedChild *externalapi.DomainHash, replaceIndex int,
	replaceWith []*externalapi.DomainHash) error {

	return mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		return replaceChild(blockHash, data, replacedChild, replaceIndex, replaceWith)
	})
}

func (ss *stagedStore) InsertFutureCoveringItem(blockHash, futureCoveringItem *externalapi.DomainHash,
	insertionIndex int) error {

	return mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		return insertFutureCoveringItem(blockHash, data, futureCoveringItem, insertionIndex)
	})
}

func (ss *stagedStore) ReplaceFutureCoveringItem(blockHash, replacedItem *externalapi.DomainHash, replaceIndex int,
	replaceWith []*externalapi.DomainHash) error {

	return mutate(ss.get, ss.put, blockHash, func(data *model.ReachabilityData) error {
		return replaceFutureCoveringItem(blockHash, data, replacedItem, replaceIndex, replaceWith)
	})
}

func (ss *stagedStore) Delete(blockHash *externalapi.DomainHash) error {
	if ss.shard == nil {
		return errReadOnlyView
	}
	exists, err := ss.Has(blockHash)
	if err != nil {
		return err
	}
	if !exists {
		return notFoundError(blockHash)
	}
	delete(ss.shard.toAdd, *blockHash)
	ss.shard.toDelete[*blockHash] = struct{}{}
	ss.shard.countDelta--
	return nil
}

func (ss *stagedStore) SetReindexRoot(reindexRoot *externalapi.DomainHash) error {
	if ss.shard == nil {
		return errReadOnlyView
	}
	ss.shard.reindexRoot = reindexRoot
	return nil
}
