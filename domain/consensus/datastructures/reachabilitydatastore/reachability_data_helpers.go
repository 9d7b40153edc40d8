package reachabilitydatastore

import (
	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// Stored ReachabilityData values are never modified in place. Every
// mutation works on a shallow copy and replaces the slices it changes, so
// slices handed out by readers stay valid. Callers must not modify them.

type getFunc func(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error)
type putFunc func(blockHash *externalapi.DomainHash, data *model.ReachabilityData) error

func notFoundError(blockHash *externalapi.DomainHash) error {
	return errors.Wrapf(database.ErrNotFound, "reachability data for block %s not found", blockHash)
}

func reindexRootNotFoundError() error {
	return errors.Wrap(database.ErrNotFound, "reindex root not found")
}

func alreadyExistsError(blockHash *externalapi.DomainHash) error {
	return errors.Wrapf(database.ErrKeyAlreadyExists, "reachability data for block %s already exists", blockHash)
}

func newReachabilityData(parent *externalapi.DomainHash, interval *model.ReachabilityInterval,
	height uint64) *model.ReachabilityData {

	return &model.ReachabilityData{
		Children:          []*externalapi.DomainHash{},
		Parent:            parent,
		Interval:          interval.Clone(),
		Height:            height,
		FutureCoveringSet: model.FutureCoveringTreeNodeSet{},
	}
}

func mutate(get getFunc, put putFunc, blockHash *externalapi.DomainHash,
	mutation func(data *model.ReachabilityData) error) error {

	data, err := get(blockHash)
	if err != nil {
		return err
	}
	dataCopy := *data
	err = mutation(&dataCopy)
	if err != nil {
		return err
	}
	return put(blockHash, &dataCopy)
}

func readData(get getFunc, blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	data, err := get(blockHash)
	if err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

func readInterval(get getFunc, blockHash *externalapi.DomainHash) (*model.ReachabilityInterval, error) {
	data, err := get(blockHash)
	if err != nil {
		return nil, err
	}
	return data.Interval.Clone(), nil
}

func readParent(get getFunc, blockHash *externalapi.DomainHash) (*externalapi.DomainHash, error) {
	data, err := get(blockHash)
	if err != nil {
		return nil, err
	}
	return data.Parent, nil
}

func readChildren(get getFunc, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	data, err := get(blockHash)
	if err != nil {
		return nil, err
	}
	return data.Children, nil
}

func readFutureCoveringSet(get getFunc, blockHash *externalapi.DomainHash) (model.FutureCoveringTreeNodeSet, error) {
	data, err := get(blockHash)
	if err != nil {
		return nil, err
	}
	return data.FutureCoveringSet, nil
}

func readHeight(get getFunc, blockHash *externalapi.DomainHash) (uint64, error) {
	data, err := get(blockHash)
	if err != nil {
		return 0, err
	}
	return data.Height, nil
}

func setInterval(data *model.ReachabilityData, interval *model.ReachabilityInterval) error {
	data.Interval = interval.Clone()
	return nil
}

func setParent(data *model.ReachabilityData, newParent *externalapi.DomainHash) error {
	data.Parent = newParent
	return nil
}

func appendChild(data *model.ReachabilityData, child *externalapi.DomainHash) error {
	children := make([]*externalapi.DomainHash, len(data.Children), len(data.Children)+1)
	copy(children, data.Children)
	data.Children = append(children, child)
	return nil
}

func replaceChild(blockHash *externalapi.DomainHash, data *model.ReachabilityData,
	replacedChild *externalapi.DomainHash, replaceIndex int, replaceWith []*externalapi.DomainHash) error {

	children, err := splice(data.Children, replacedChild, replaceIndex, replaceWith)
	if err != nil {
		return errors.Wrapf(err, "failed to replace child %s of block %s", replacedChild, blockHash)
	}
	data.Children = children
	return nil
}

func insertFutureCoveringItem(blockHash *externalapi.DomainHash, data *model.ReachabilityData,
	futureCoveringItem *externalapi.DomainHash, insertionIndex int) error {

	if insertionIndex < 0 || insertionIndex > len(data.FutureCoveringSet) {
		return errors.Wrapf(ruleerrors.ErrDataInconsistency, "insertion index %d is out of the "+
			"bounds of the future covering set of block %s (length %d)",
			insertionIndex, blockHash, len(data.FutureCoveringSet))
	}
	futureCoveringSet := make(model.FutureCoveringTreeNodeSet, 0, len(data.FutureCoveringSet)+1)
	futureCoveringSet = append(futureCoveringSet, data.FutureCoveringSet[:insertionIndex]...)
	futureCoveringSet = append(futureCoveringSet, futureCoveringItem)
	futureCoveringSet = append(futureCoveringSet, data.FutureCoveringSet[insertionIndex:]...)
	data.FutureCoveringSet = futureCoveringSet
	return nil
}

func replaceFutureCoveringItem(blockHash *externalapi.DomainHash, data *model.ReachabilityData,
	replacedItem *externalapi.DomainHash, replaceIndex int, replaceWith []*externalapi.DomainHash) error {

	futureCoveringSet, err := splice(data.FutureCoveringSet, replacedItem, replaceIndex, replaceWith)
	if err != nil {
		return errors.Wrapf(err, "failed to replace future covering item %s of block %s", replacedItem, blockHash)
	}
	data.FutureCoveringSet = futureCoveringSet
	return nil
}

// splice returns a copy of hashes where hashes[index], which must equal
// replaced, is substituted by the replaceWith list.
func splice(hashes []*externalapi.DomainHash, replaced *externalapi.DomainHash, index int,
	replaceWith []*externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	if index < 0 || index >= len(hashes) || !hashes[index].Equal(replaced) {
		return nil, errors.Wrapf(ruleerrors.ErrDataInconsistency,
			"expected %s at index %d", replaced, index)
	}
	result := make([]*externalapi.DomainHash, 0, len(hashes)-1+len(replaceWith))
	result = append(result, hashes[:index]...)
	result = append(result, replaceWith...)
	result = append(result, hashes[index+1:]...)
	return result, nil
}
