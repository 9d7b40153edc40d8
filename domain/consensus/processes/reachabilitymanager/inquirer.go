package reachabilitymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// IsChainAncestorOf returns true if blockHashA is an ancestor of
// blockHashB in the reachability tree, i.e. on the selected parent chain
// of blockHashB. Every block is a chain ancestor of itself.
func (rt *reachabilityManager) IsChainAncestorOf(store model.ReachabilityStoreReader,
	blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {

	return isChainAncestorOf(store, blockHashA, blockHashB)
}

// IsStrictChainAncestorOf is IsChainAncestorOf excluding the case where
// both blocks are the same.
func (rt *reachabilityManager) IsStrictChainAncestorOf(store model.ReachabilityStoreReader,
	blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {

	return isStrictChainAncestorOf(store, blockHashA, blockHashB)
}

// IsDAGAncestorOf returns true if blockHashA is an ancestor of blockHashB
// in the DAG. Every block is a DAG ancestor of itself.
//
// blockHashA is a DAG ancestor of blockHashB if it is a chain ancestor of
// it, or if some block in the future covering set of blockHashA is a chain
// ancestor of blockHashB.
func (rt *reachabilityManager) IsDAGAncestorOf(store model.ReachabilityStoreReader,
	blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {

	return isDAGAncestorOf(store, blockHashA, blockHashB)
}

// IsDAGAncestorOfAny returns true if blockHash is a DAG ancestor of any
// of potentialDescendants.
func (rt *reachabilityManager) IsDAGAncestorOfAny(store model.ReachabilityStoreReader,
	blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash) (bool, error) {

	for _, potentialDescendant := range potentialDescendants {
		isAncestor, err := isDAGAncestorOf(store, blockHash, potentialDescendant)
		if err != nil {
			return false, err
		}
		if isAncestor {
			return true, nil
		}
	}
	return false, nil
}

// IsAnyDAGAncestorOf returns true if any of potentialAncestors is a DAG
// ancestor of blockHash.
func (rt *reachabilityManager) IsAnyDAGAncestorOf(store model.ReachabilityStoreReader,
	potentialAncestors []*externalapi.DomainHash, blockHash *externalapi.DomainHash) (bool, error) {

	for _, potentialAncestor := range potentialAncestors {
		isAncestor, err := isDAGAncestorOf(store, potentialAncestor, blockHash)
		if err != nil {
			return false, err
		}
		if isAncestor {
			return true, nil
		}
	}
	return false, nil
}

// FindNextChainAncestor finds the child of ancestor that lies on the
// selected chain of descendant. ancestor must be a strict chain ancestor
// of descendant.
func (rt *reachabilityManager) FindNextChainAncestor(store model.ReachabilityStoreReader,
	descendant, ancestor *externalapi.DomainHash) (*externalapi.DomainHash, error) {

	if descendant.Equal(ancestor) {
		return nil, errors.Wrapf(ruleerrors.ErrBadQuery,
			"cannot find the next chain ancestor of %s from itself", descendant)
	}
	isStrictAncestor, err := isStrictChainAncestorOf(store, ancestor, descendant)
	if err != nil {
		return nil, err
	}
	if !isStrictAncestor {
		return nil, errors.Wrapf(ruleerrors.ErrBadQuery,
			"%s is not a chain ancestor of %s", ancestor, descendant)
	}
	return findNextChainAncestorUnchecked(store, descendant, ancestor)
}

// InsertToFutureCoveringSet adds descendant to the future covering set of
// ancestor, keeping the set ordered by interval start.
func (rt *reachabilityManager) InsertToFutureCoveringSet(store model.ReachabilityStore,
	ancestor, descendant *externalapi.DomainHash) error {

	futureCoveringSet, err := store.FutureCoveringSet(ancestor)
	if err != nil {
		return err
	}
	index, found, err := binarySearchDescendant(store, futureCoveringSet, descendant)
	if err != nil {
		return err
	}
	if found {
		return errors.Wrapf(ruleerrors.ErrDataInconsistency,
			"%s is already covered by the future covering set of %s", descendant, ancestor)
	}
	return store.InsertFutureCoveringItem(ancestor, descendant, index)
}

func isChainAncestorOf(store model.ReachabilityStoreReader, this, queried *externalapi.DomainHash) (bool, error) {
	thisInterval, err := store.Interval(this)
	if err != nil {
		return false, err
	}
	queriedInterval, err := store.Interval(queried)
	if err != nil {
		return false, err
	}
	return intervalContains(thisInterval, queriedInterval), nil
}

func isStrictChainAncestorOf(store model.ReachabilityStoreReader, this, queried *externalapi.DomainHash) (bool, error) {
	thisInterval, err := store.Interval(this)
	if err != nil {
		return false, err
	}
	queriedInterval, err := store.Interval(queried)
	if err != nil {
		return false, err
	}
	return intervalStrictlyContains(thisInterval, queriedInterval), nil
}

func isDAGAncestorOf(store model.ReachabilityStoreReader, this, queried *externalapi.DomainHash) (bool, error) {
	isChainAncestor, err := isChainAncestorOf(store, this, queried)
	if err != nil {
		return false, err
	}
	if isChainAncestor {
		return true, nil
	}

	futureCoveringSet, err := store.FutureCoveringSet(this)
	if err != nil {
		return false, err
	}
	_, found, err := binarySearchDescendant(store, futureCoveringSet, queried)
	return found, err
}

// binarySearchDescendant looks for the block in orderedHashes, which must
// be ordered by interval start and non-overlapping, that is a chain
// ancestor of descendant.
//
// If one exists its index is returned with found=true. Otherwise the
// returned index is the position at which descendant should be inserted
// to keep orderedHashes ordered.
func binarySearchDescendant(store model.ReachabilityStoreReader, orderedHashes []*externalapi.DomainHash,
	descendant *externalapi.DomainHash) (index int, found bool, err error) {

	descendantInterval, err := store.Interval(descendant)
	if err != nil {
		return 0, false, err
	}
	point := descendantInterval.End

	// Find the first block whose interval starts at or after point
	low, high := 0, len(orderedHashes)
	for low < high {
		middle := low + (high-low)/2
		middleInterval, err := store.Interval(orderedHashes[middle])
		if err != nil {
			return 0, false, err
		}
		if middleInterval.Start < point {
			low = middle + 1
		} else {
			high = middle
		}
	}

	if low < len(orderedHashes) {
		candidateInterval, err := store.Interval(orderedHashes[low])
		if err != nil {
			return 0, false, err
		}
		if candidateInterval.Start == point {
			return low, true, nil
		}
	}

	// The only block that may still contain descendant is the last one
	// starting before point
	if low > 0 {
		isAncestor, err := isChainAncestorOf(store, orderedHashes[low-1], descendant)
		if err != nil {
			return 0, false, err
		}
		if isAncestor {
			return low - 1, true, nil
		}
	}
	return low, false, nil
}

func findNextChainAncestorUnchecked(store model.ReachabilityStoreReader,
	descendant, ancestor *externalapi.DomainHash) (*externalapi.DomainHash, error) {

	children, err := store.Children(ancestor)
	if err != nil {
		return nil, err
	}
	index, found, err := binarySearchDescendant(store, children, descendant)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ruleerrors.ErrBadQuery,
			"none of the children of %s is a chain ancestor of %s", ancestor, descendant)
	}
	return children[index], nil
}

// findCommonTreeAncestor climbs the selected chain of block until it
// reaches a chain ancestor of reindexRoot.
func findCommonTreeAncestor(store model.ReachabilityStoreReader,
	block, reindexRoot *externalapi.DomainHash) (*externalapi.DomainHash, error) {

	current := block
	for {
		isAncestor, err := isChainAncestorOf(store, current, reindexRoot)
		if err != nil {
			return nil, err
		}
		if isAncestor {
			return current, nil
		}

		current, err = store.Parent(current)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, errors.Wrapf(ruleerrors.ErrDataInconsistency,
				"%s and %s have no common tree ancestor", block, reindexRoot)
		}
	}
}
