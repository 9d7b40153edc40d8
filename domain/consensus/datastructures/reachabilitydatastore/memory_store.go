package reachabilitydatastore

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

type memoryStore struct {
	entries     map[externalapi.DomainHash]*model.ReachabilityData
	reindexRoot *externalapi.DomainHash
}

// NewMemoryStore returns a ReachabilityStore that lives entirely in memory.
func NewMemoryStore() model.ReachabilityStore {
	return &memoryStore{
		entries: make(map[externalapi.DomainHash]*model.ReachabilityData),
	}
}

func (ms *memoryStore) get(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	data, ok := ms.entries[*blockHash]
	if !ok {
		return nil, notFoundError(blockHash)
	}
	return data, nil
}

func (ms *memoryStore) put(blockHash *externalapi.DomainHash, data *model.ReachabilityData) error {
	ms.entries[*blockHash] = data
	return nil
}

func (ms *memoryStore) Has(blockHash *externalapi.DomainHash) (bool, error) {
	_, ok := ms.entries[*blockHash]
	return ok, nil
}

func (ms *memoryStore) Count() (int, error) {
	return len(ms.entries), nil
}

func (ms *memoryStore) ReachabilityData(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	return readData(ms.get, blockHash)
}

func (ms *memoryStore) Interval(blockHash *externalapi.DomainHash) (*model.ReachabilityInterval, error) {
	return readInterval(ms.get, blockHash)
}

func (ms *memoryStore) Parent(blockHash *externalapi.DomainHash) (*externalapi.DomainHash, error) {
	return readParent(ms.get, blockHash)
}

func (ms *memoryStore) Children(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	return readChildren(ms.get, blockHash)
}

func (ms *memoryStore) FutureCoveringSet(blockHash *externalapi.DomainHash) (model.FutureCoveringTreeNodeSet, error) {
	return readFutureCoveringSet(ms.get, blockHash)
}

func (ms *memoryStore) Height(blockHash *externalapi.DomainHash) (uint64, error) {
	return readHeight(ms.get, blockHash)
}

func (ms *memoryStore) ReindexRoot() (*externalapi.DomainHash, error) {
	if ms.reindexRoot == nil {
		return nil, reindexRootNotFoundError()
	}
	return ms.reindexRoot, nil
}

func (ms *memoryStore) Init(origin *externalapi.DomainHash, capacity *model.ReachabilityInterval) error {
	err := ms.Insert(origin, nil, capacity, 0)
	if err != nil {
		return err
	}
	return ms.SetReindexRoot(origin)
}

func (ms *memoryStore) Insert(blockHash, parent *externalapi.DomainHash,
	interval *model.ReachabilityInterval, height uint64) error {

	if _, ok := ms.entries[*blockHash]; ok {
		return alreadyExistsError(blockHash)
	}
	return ms.put(blockHash, newReachabilityData(parent, interval, height))
}

func (ms *memoryStore) SetInterval(blockHash *externalapi.DomainHash, interval *model.ReachabilityInterval) error {
	return mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		return setInterval(data, interval)
	})
}

func (ms *memoryStore) SetParent(blockHash, newParent *externalapi.DomainHash) error {
	return mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		return setParent(data, newParent)
	})
}

func (ms *memoryStore) AppendChild(blockHash, child *externalapi.DomainHash) (uint64, error) {
	var height uint64
	err := mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		height = data.Height
		return appendChild(data, child)
	})
	return height, err
}

func (ms *memoryStore) ReplaceChild(blockHash, replacedChild *externalapi.DomainHash, replaceIndex int,
	replaceWith []*externalapi.DomainHash) error {

	return mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		return replaceChild(blockHash, data, replacedChild, replaceIndex, replaceWith)
	})
}

func (ms *memoryStore) InsertFutureCoveringItem(blockHash, futureCoveringItem *externalapi.DomainHash,
	insertionIndex int) error {

	return mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		return insertFutureCoveringItem(blockHash, data, futureCoveringItem, insertionIndex)
	})
}

func (ms *memoryStore) ReplaceFutureCoveringItem(blockHash, replacedItem *externalapi.DomainHash, replaceIndex int,
	replaceWith []*externalapi.DomainHash) error {

	return mutate(ms.get, ms.put, blockHash, func(data *model.ReachabilityData) error {
		return replaceFutureCoveringItem(blockHash, data, replacedItem, replaceIndex, replaceWith)
	})
}

func (ms *memoryStore) Delete(blockHash *externalapi.DomainHash) error {
	if _, ok := ms.entries[*blockHash]; !ok {
		return notFoundError(blockHash)
	}
	delete(ms.entries, *blockHash)
	return nil
}

func (ms *memoryStore) SetReindexRoot(reindexRoot *externalapi.DomainHash) error {
	ms.reindexRoot = reindexRoot
	return nil
}
