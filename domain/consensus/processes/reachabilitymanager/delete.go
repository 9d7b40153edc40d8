package reachabilitymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// DeleteBlock removes blockHash from the reachability tree. Its children
// are moved to its parent, taking over its interval, and it is replaced
// by them in the future covering set of every block in mergeSet.
//
// mergeSet must be the merge set blockHash was added with, after any
// relinking done by the caller.
func (rt *reachabilityManager) DeleteBlock(store model.ReachabilityStore, blockHash *externalapi.DomainHash,
	mergeSet []*externalapi.DomainHash) error {

	interval, err := store.Interval(blockHash)
	if err != nil {
		return err
	}
	parent, err := store.Parent(blockHash)
	if err != nil {
		return err
	}
	if parent == nil {
		return errors.Wrapf(ruleerrors.ErrBadQuery, "cannot delete the tree root %s", blockHash)
	}
	children, err := store.Children(blockHash)
	if err != nil {
		return err
	}

	parentChildren, err := store.Children(parent)
	if err != nil {
		return err
	}
	index, found, err := binarySearchDescendant(store, parentChildren, blockHash)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(ruleerrors.ErrDataInconsistency,
			"%s is missing from the children of its parent %s", blockHash, parent)
	}

	// Intervals are changed last, since the binary searches below rely on
	// blockHash still owning its interval
	err = store.ReplaceChild(parent, blockHash, index, children)
	if err != nil {
		return err
	}
	for _, child := range children {
		err = store.SetParent(child, parent)
		if err != nil {
			return err
		}
	}

	for _, merged := range mergeSet {
		futureCoveringSet, err := store.FutureCoveringSet(merged)
		if err != nil {
			return err
		}
		index, found, err := binarySearchDescendant(store, futureCoveringSet, blockHash)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ruleerrors.ErrDataInconsistency,
				"%s is missing from the future covering set of %s", blockHash, merged)
		}
		err = store.ReplaceFutureCoveringItem(merged, blockHash, index, children)
		if err != nil {
			return err
		}
	}

	err = rt.reassignInterval(store, interval, children, parentChildren, index)
	if err != nil {
		return err
	}

	reindexRoot, err := store.ReindexRoot()
	if err != nil {
		return err
	}
	if reindexRoot.Equal(blockHash) {
		err = store.SetReindexRoot(parent)
		if err != nil {
			return err
		}
	}

	return store.Delete(blockHash)
}

// reassignInterval hands the interval of a deleted block to its children,
// or, when it had none, to an adjacent sibling, so that siblings stay
// contiguous.
func (rt *reachabilityManager) reassignInterval(store model.ReachabilityStore, interval *model.ReachabilityInterval,
	children, siblings []*externalapi.DomainHash, index int) error {

	switch len(children) {
	case 0:
		if index > 0 {
			before := siblings[index-1]
			beforeInterval, err := store.Interval(before)
			if err != nil {
				return err
			}
			return store.SetInterval(before, newReachabilityInterval(beforeInterval.Start, interval.End))
		}
		if index < len(siblings)-1 {
			after := siblings[index+1]
			afterInterval, err := store.Interval(after)
			if err != nil {
				return err
			}
			return store.SetInterval(after, newReachabilityInterval(interval.Start, afterInterval.End))
		}
		// An only child leaves its interval to the parent's free capacity
		return nil

	case 1:
		return store.SetInterval(children[0], interval)

	default:
		first := children[0]
		firstInterval, err := store.Interval(first)
		if err != nil {
			return err
		}
		err = store.SetInterval(first, newReachabilityInterval(interval.Start, firstInterval.End))
		if err != nil {
			return err
		}

		last := children[len(children)-1]
		lastInterval, err := store.Interval(last)
		if err != nil {
			return err
		}
		return store.SetInterval(last, newReachabilityInterval(lastInterval.Start, interval.End))
	}
}
