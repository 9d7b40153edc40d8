package reachabilitymanager

import (
	"fmt"
	"strings"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// ValidateIntervals checks the interval invariants over the subtree of
// root: intervals are non-empty, strictly contain the intervals of their
// children, siblings are contiguous, and future covering sets are ordered
// and non-overlapping.
func (rt *reachabilityManager) ValidateIntervals(store model.ReachabilityStoreReader,
	root *externalapi.DomainHash) error {

	queue := []*externalapi.DomainHash{root}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]

		currentInterval, err := store.Interval(current)
		if err != nil {
			return err
		}
		if intervalIsEmpty(currentInterval) {
			return errors.Wrapf(ruleerrors.ErrDataInconsistency, "%s has an empty interval %s",
				current, currentInterval)
		}

		children, err := store.Children(current)
		if err != nil {
			return err
		}
		var previousInterval *model.ReachabilityInterval
		for _, child := range children {
			childInterval, err := store.Interval(child)
			if err != nil {
				return err
			}
			if !intervalStrictlyContains(currentInterval, childInterval) {
				return errors.Wrapf(ruleerrors.ErrDataInconsistency,
					"the interval %s of %s does not strictly contain the interval %s of its child %s",
					currentInterval, current, childInterval, child)
			}
			if previousInterval != nil && previousInterval.End+1 != childInterval.Start {
				return errors.Wrapf(ruleerrors.ErrDataInconsistency,
					"the children of %s are not contiguous: %s is followed by %s",
					current, previousInterval, childInterval)
			}
			previousInterval = childInterval
		}

		futureCoveringSet, err := store.FutureCoveringSet(current)
		if err != nil {
			return err
		}
		previousInterval = nil
		for _, item := range futureCoveringSet {
			itemInterval, err := store.Interval(item)
			if err != nil {
				return err
			}
			if intervalIsEmpty(itemInterval) {
				return errors.Wrapf(ruleerrors.ErrDataInconsistency,
					"future covering item %s of %s has an empty interval", item, current)
			}
			if previousInterval != nil && previousInterval.End >= itemInterval.Start {
				return errors.Wrapf(ruleerrors.ErrDataInconsistency,
					"the future covering set of %s is not ordered: %s is followed by %s",
					current, previousInterval, itemInterval)
			}
			previousInterval = itemInterval
		}

		queue = append(queue, children...)
	}
	return nil
}

// TreeString renders the subtree of root one level per line, deepest
// level first.
func (rt *reachabilityManager) TreeString(store model.ReachabilityStoreReader,
	root *externalapi.DomainHash) (string, error) {

	rootInterval, err := store.Interval(root)
	if err != nil {
		return "", err
	}
	lines := []string{treeNodeString(root, rootInterval)}

	level := []*externalapi.DomainHash{root}
	for len(level) > 0 {
		var nextLevel []*externalapi.DomainHash
		var line strings.Builder
		for _, current := range level {
			children, err := store.Children(current)
			if err != nil {
				return "", err
			}
			for _, child := range children {
				childInterval, err := store.Interval(child)
				if err != nil {
					return "", err
				}
				if line.Len() > 0 {
					line.WriteString(" ")
				}
				line.WriteString(treeNodeString(child, childInterval))
			}
			nextLevel = append(nextLevel, children...)
		}
		if line.Len() > 0 {
			lines = append([]string{line.String()}, lines...)
		}
		level = nextLevel
	}
	return strings.Join(lines, "\n"), nil
}

func treeNodeString(blockHash *externalapi.DomainHash, interval *model.ReachabilityInterval) string {
	return fmt.Sprintf("%s%s", blockHash.ShortString(), interval)
}
