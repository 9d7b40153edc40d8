package reachabilitymanager

import (
	"math/bits"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// reindexContext holds the state of a single reindex operation. Subtree
// sizes are cached for the lifetime of the context only, since any
// insertion outside of it invalidates them.
type reindexContext struct {
	store        model.ReachabilityStore
	subtreeSizes map[externalapi.DomainHash]uint64
	slack        uint64
	metrics      *Metrics
}

func newReindexContext(store model.ReachabilityStore, slack uint64, metrics *Metrics) *reindexContext {
	return &reindexContext{
		store:        store,
		subtreeSizes: make(map[externalapi.DomainHash]uint64),
		slack:        slack,
		metrics:      metrics,
	}
}

// reindexIntervals climbs from newChild until it finds an ancestor whose
// interval is large enough for its subtree, and redistributes that
// ancestor's interval over the subtree.
//
// Climbing past reindexRoot is not allowed. If the climb reaches a block
// whose parent is on the chain of reindexRoot, space is reclaimed from
// that chain instead. See reindexIntervalsEarlierThanRoot.
func (rc *reindexContext) reindexIntervals(newChild, reindexRoot *externalapi.DomainHash) error {
	current := newChild
	for {
		currentInterval, err := rc.store.Interval(current)
		if err != nil {
			return err
		}
		err = rc.countSubtrees(current)
		if err != nil {
			return err
		}
		if intervalSize(currentInterval) >= rc.subtreeSizes[*current] {
			break
		}

		parent, err := rc.store.Parent(current)
		if err != nil {
			return err
		}
		if parent == nil {
			// This means there are more than 2^64 blocks, which shouldn't
			// ever happen.
			return errors.Wrapf(ruleerrors.ErrDataOverflow,
				"missing tree parent of %s during reindexing", current)
		}

		if current.Equal(reindexRoot) {
			// The reindex root holds enough space as long as there are less
			// than ~2^52 blocks, as each chain block below it is allocated a
			// slack of 2^12.
			return errors.Wrapf(ruleerrors.ErrDataOverflow,
				"reindex root %s is out of capacity", reindexRoot)
		}

		isParentStrictAncestorOfRoot, err := isStrictChainAncestorOf(rc.store, parent, reindexRoot)
		if err != nil {
			return err
		}
		if isParentStrictAncestorOfRoot {
			return rc.reindexIntervalsEarlierThanRoot(current, reindexRoot, parent, rc.subtreeSizes[*current])
		}

		current = parent
	}

	return rc.propagateInterval(current)
}

// countSubtrees counts the size of each subtree under block, and caches
// the results in rc.subtreeSizes.
// It is equivalent to the following recursive implementation:
//
// func (rc *reindexContext) countSubtrees(block *externalapi.DomainHash) uint64 {
//     subtreeSize := uint64(0)
//     for _, child := range children(block) {
//         subtreeSize += rc.countSubtrees(child)
//     }
//     return subtreeSize + 1
// }
//
// Trees are expected to be (linearly) deep, so recursion would be both
// slow and limited. Instead, a queue-based BFS reaches all leaves, and
// sizes are pushed up along parent chains until they all arrive at block.
func (rc *reindexContext) countSubtrees(block *externalapi.DomainHash) error {
	if _, ok := rc.subtreeSizes[*block]; ok {
		return nil
	}

	queue := []*externalapi.DomainHash{block}
	calculatedChildrenCount := make(map[externalapi.DomainHash]uint64)
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		currentChildren, err := rc.store.Children(current)
		if err != nil {
			return err
		}

		if len(currentChildren) == 0 {
			// We reached a leaf
			rc.subtreeSizes[*current] = 1
		} else if _, ok := rc.subtreeSizes[*current]; !ok {
			// Not calculated yet, go down to its children
			queue = append(queue, currentChildren...)
			continue
		}

		// We reached a leaf or a pre-calculated subtree.
		// Push information up
		for !current.Equal(block) {
			current, err = rc.store.Parent(current)
			if err != nil {
				return err
			}

			calculatedChildrenCount[*current]++
			currentChildren, err := rc.store.Children(current)
			if err != nil {
				return err
			}
			if calculatedChildrenCount[*current] < uint64(len(currentChildren)) {
				// Not all subtrees of the current block are ready
				break
			}

			childSubtreeSizeSum := uint64(0)
			for _, child := range currentChildren {
				childSubtreeSizeSum += rc.subtreeSizes[*child]
			}
			rc.subtreeSizes[*current] = childSubtreeSizeSum + 1
		}
	}

	return nil
}

// propagateInterval redistributes the interval of block over its
// subtree using a BFS traversal. The children capacity of every block is
// split between its children by intervalSplitWithExponentialBias,
// weighted by their subtree sizes.
func (rc *reindexContext) propagateInterval(block *externalapi.DomainHash) error {
	err := rc.countSubtrees(block)
	if err != nil {
		return err
	}

	queue := []*externalapi.DomainHash{block}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]

		currentChildren, err := rc.store.Children(current)
		if err != nil {
			return err
		}
		if len(currentChildren) == 0 {
			continue
		}

		sizes := make([]uint64, len(currentChildren))
		for i, child := range currentChildren {
			sizes[i] = rc.subtreeSizes[*child]
		}
		capacity, err := intervalChildrenCapacity(rc.store, current)
		if err != nil {
			return err
		}
		intervals, err := intervalSplitWithExponentialBias(capacity, sizes)
		if err != nil {
			return err
		}
		for i, child := range currentChildren {
			err = rc.store.SetInterval(child, intervals[i])
			if err != nil {
				return err
			}
		}
		queue = append(queue, currentChildren...)
	}
	return nil
}

// reindexIntervalsEarlierThanRoot allocates requiredAllocation to
// allocationBlock, a child of commonAncestor that is not on the chain of
// reindexRoot, by reclaiming unused space from that chain. The space is
// taken from the side of the chain that faces allocationBlock.
func (rc *reindexContext) reindexIntervalsEarlierThanRoot(allocationBlock, reindexRoot,
	commonAncestor *externalapi.DomainHash, requiredAllocation uint64) error {

	// The chosen child is the child of commonAncestor on the chain of
	// reindexRoot
	chosenChild, err := findNextChainAncestorUnchecked(rc.store, reindexRoot, commonAncestor)
	if err != nil {
		return err
	}

	allocationInterval, err := rc.store.Interval(allocationBlock)
	if err != nil {
		return err
	}
	chosenInterval, err := rc.store.Interval(chosenChild)
	if err != nil {
		return err
	}

	if allocationInterval.Start < chosenInterval.Start {
		// allocationBlock is in the subtree before the chosen child
		rc.metrics.observeReclaim("before")
		return rc.reclaimIntervalBefore(allocationBlock, commonAncestor, chosenChild, reindexRoot, requiredAllocation)
	}

	// allocationBlock is in the subtree after the chosen child
	rc.metrics.observeReclaim("after")
	return rc.reclaimIntervalAfter(allocationBlock, commonAncestor, chosenChild, reindexRoot, requiredAllocation)
}

func (rc *reindexContext) reclaimIntervalBefore(allocationBlock, commonAncestor, chosenChild,
	reindexRoot *externalapi.DomainHash, requiredAllocation uint64) error {

	var slackSum, pathLen, pathSlackAlloc uint64
	current := chosenChild

	// Walk up the chain from the chosen child towards the reindex root
	for {
		if current.Equal(reindexRoot) {
			// The root is expected to have plenty of space. Take whatever
			// is still missing from it, and on top of that allocate new
			// slack for every chain block we passed on the way up.
			offset, err := rc.reindexRootOffset(current, requiredAllocation-slackSum, pathLen)
			if err != nil {
				return err
			}
			err = rc.shiftStart(current, offset)
			if err != nil {
				return err
			}
			err = rc.propagateInterval(current)
			if err != nil {
				return err
			}
			err = rc.offsetSiblingsBefore(allocationBlock, current, offset)
			if err != nil {
				return err
			}

			// Reserved for each chain block on the walk down
			pathSlackAlloc = rc.slack
			break
		}

		slackBeforeCurrent, err := remainingSlackBefore(rc.store, current)
		if err != nil {
			return err
		}
		slackSum += slackBeforeCurrent

		if slackSum >= requiredAllocation {
			// Take just enough to satisfy the required allocation
			offset := slackBeforeCurrent - (slackSum - requiredAllocation)
			err := rc.shiftStart(current, offset)
			if err != nil {
				return err
			}
			err = rc.offsetSiblingsBefore(allocationBlock, current, offset)
			if err != nil {
				return err
			}
			break
		}

		current, err = findNextChainAncestorUnchecked(rc.store, reindexRoot, current)
		if err != nil {
			return err
		}
		pathLen++
	}

	// Walk back down to the common ancestor, passing the reclaimed space
	// from every chain block to the siblings before it
	for {
		var err error
		current, err = rc.store.Parent(current)
		if err != nil {
			return err
		}
		if current.Equal(commonAncestor) {
			break
		}

		slackBeforeCurrent, err := remainingSlackBefore(rc.store, current)
		if err != nil {
			return err
		}
		offset := checkedSub(slackBeforeCurrent, pathSlackAlloc)
		err = rc.shiftStart(current, offset)
		if err != nil {
			return err
		}
		err = rc.offsetSiblingsBefore(allocationBlock, current, offset)
		if err != nil {
			return err
		}
	}

	return nil
}

func (rc *reindexContext) reclaimIntervalAfter(allocationBlock, commonAncestor, chosenChild,
	reindexRoot *externalapi.DomainHash, requiredAllocation uint64) error {

	var slackSum, pathLen, pathSlackAlloc uint64
	current := chosenChild

	for {
		if current.Equal(reindexRoot) {
			offset, err := rc.reindexRootOffset(current, requiredAllocation-slackSum, pathLen)
			if err != nil {
				return err
			}
			err = rc.shiftEnd(current, offset)
			if err != nil {
				return err
			}
			err = rc.propagateInterval(current)
			if err != nil {
				return err
			}
			err = rc.offsetSiblingsAfter(allocationBlock, current, offset)
			if err != nil {
				return err
			}

			pathSlackAlloc = rc.slack
			break
		}

		slackAfterCurrent, err := remainingSlackAfter(rc.store, current)
		if err != nil {
			return err
		}
		slackSum += slackAfterCurrent

		if slackSum >= requiredAllocation {
			offset := slackAfterCurrent - (slackSum - requiredAllocation)
			err := rc.shiftEnd(current, offset)
			if err != nil {
				return err
			}
			err = rc.offsetSiblingsAfter(allocationBlock, current, offset)
			if err != nil {
				return err
			}
			break
		}

		current, err = findNextChainAncestorUnchecked(rc.store, reindexRoot, current)
		if err != nil {
			return err
		}
		pathLen++
	}

	for {
		var err error
		current, err = rc.store.Parent(current)
		if err != nil {
			return err
		}
		if current.Equal(commonAncestor) {
			break
		}

		slackAfterCurrent, err := remainingSlackAfter(rc.store, current)
		if err != nil {
			return err
		}
		offset := checkedSub(slackAfterCurrent, pathSlackAlloc)
		err = rc.shiftEnd(current, offset)
		if err != nil {
			return err
		}
		err = rc.offsetSiblingsAfter(allocationBlock, current, offset)
		if err != nil {
			return err
		}
	}

	return nil
}

// reindexRootOffset returns how much to take from reindexRoot's interval
// when reclaiming: the missing part of the allocation plus slack for each
// of the pathLen chain blocks below it. The root must still hold its own
// subtree afterwards.
func (rc *reindexContext) reindexRootOffset(reindexRoot *externalapi.DomainHash,
	missing, pathLen uint64) (uint64, error) {

	rootInterval, err := rc.store.Interval(reindexRoot)
	if err != nil {
		return 0, err
	}
	err = rc.countSubtrees(reindexRoot)
	if err != nil {
		return 0, err
	}

	pathSlackHigh, pathSlack := bits.Mul64(rc.slack, pathLen)
	offset, offsetFits := sumWithoutOverflow(missing, pathSlack)
	required, requiredFits := sumWithoutOverflow(offset, rc.subtreeSizes[*reindexRoot])
	if pathSlackHigh != 0 || !offsetFits || !requiredFits || intervalSize(rootInterval) < required {
		return 0, errors.Wrapf(ruleerrors.ErrDataOverflow, "reindex root %s with interval %s cannot "+
			"give up %d along with a slack of %d for each of %d chain blocks",
			reindexRoot, rootInterval, missing, rc.slack, pathLen)
	}
	return offset, nil
}

// shiftStart moves the start of block's interval up by offset.
func (rc *reindexContext) shiftStart(block *externalapi.DomainHash, offset uint64) error {
	interval, err := rc.store.Interval(block)
	if err != nil {
		return err
	}
	return rc.store.SetInterval(block, intervalIncreaseStart(interval, offset))
}

// shiftEnd moves the end of block's interval down by offset.
func (rc *reindexContext) shiftEnd(block *externalapi.DomainHash, offset uint64) error {
	interval, err := rc.store.Interval(block)
	if err != nil {
		return err
	}
	return rc.store.SetInterval(block, intervalDecreaseEnd(interval, offset))
}

// offsetSiblingsBefore moves every sibling between allocationBlock and
// current up by offset, and grows allocationBlock by offset at its end.
func (rc *reindexContext) offsetSiblingsBefore(allocationBlock, current *externalapi.DomainHash, offset uint64) error {
	parent, err := rc.store.Parent(current)
	if err != nil {
		return err
	}
	siblingsBefore, _, err := splitChildren(rc.store, parent, current)
	if err != nil {
		return err
	}

	// Iterate in reverse so that we stop once reaching allocationBlock
	for i := len(siblingsBefore) - 1; i >= 0; i-- {
		sibling := siblingsBefore[i]
		siblingInterval, err := rc.store.Interval(sibling)
		if err != nil {
			return err
		}

		if sibling.Equal(allocationBlock) {
			err = rc.store.SetInterval(sibling, intervalIncreaseEnd(siblingInterval, offset))
			if err != nil {
				return err
			}
			return rc.propagateInterval(sibling)
		}

		err = rc.store.SetInterval(sibling, intervalIncrease(siblingInterval, offset))
		if err != nil {
			return err
		}
		err = rc.propagateInterval(sibling)
		if err != nil {
			return err
		}
	}

	return nil
}

// offsetSiblingsAfter moves every sibling between current and
// allocationBlock down by offset, and grows allocationBlock by offset at
// its start.
func (rc *reindexContext) offsetSiblingsAfter(allocationBlock, current *externalapi.DomainHash, offset uint64) error {
	parent, err := rc.store.Parent(current)
	if err != nil {
		return err
	}
	_, siblingsAfter, err := splitChildren(rc.store, parent, current)
	if err != nil {
		return err
	}

	for _, sibling := range siblingsAfter {
		siblingInterval, err := rc.store.Interval(sibling)
		if err != nil {
			return err
		}

		if sibling.Equal(allocationBlock) {
			err = rc.store.SetInterval(sibling, intervalDecreaseStart(siblingInterval, offset))
			if err != nil {
				return err
			}
			return rc.propagateInterval(sibling)
		}

		err = rc.store.SetInterval(sibling, intervalDecrease(siblingInterval, offset))
		if err != nil {
			return err
		}
		err = rc.propagateInterval(sibling)
		if err != nil {
			return err
		}
	}

	return nil
}

// concentrateInterval packs the children of parent other than child
// tightly around parent's bounds, keeping slack on both ends, and gives
// child everything in between. This keeps the free space on the chain of
// the reindex root, where new blocks are expected.
//
// Nothing is written if parent cannot hold the packed children along with
// the slack on both ends.
func (rc *reindexContext) concentrateInterval(parent, child *externalapi.DomainHash, isFinalReindexRoot bool) error {
	childrenBefore, childrenAfter, err := splitChildren(rc.store, parent, child)
	if err != nil {
		return err
	}
	sizesBefore, sizesBeforeSum, err := rc.subtreeSizesOf(childrenBefore)
	if err != nil {
		return err
	}
	sizesAfter, sizesAfterSum, err := rc.subtreeSizesOf(childrenAfter)
	if err != nil {
		return err
	}

	err = rc.countSubtrees(child)
	if err != nil {
		return err
	}
	parentInterval, err := rc.store.Interval(parent)
	if err != nil {
		return err
	}

	// The parent keeps its last unit, see intervalChildrenCapacity
	requiredSize, ok := sumWithoutOverflow(sizesBeforeSum, rc.subtreeSizes[*child], sizesAfterSum,
		rc.slack, rc.slack, 1)
	if !ok || intervalSize(parentInterval) < requiredSize {
		return errors.Wrapf(ruleerrors.ErrDataOverflow, "interval %s of %s cannot hold its children "+
			"(%d blocks before %s, %d in its subtree, %d after) along with a slack of %d on both sides",
			parentInterval, parent, sizesBeforeSum, child, rc.subtreeSizes[*child], sizesAfterSum, rc.slack)
	}

	err = rc.tightenIntervalsBefore(parentInterval, childrenBefore, sizesBefore, sizesBeforeSum)
	if err != nil {
		return err
	}
	err = rc.tightenIntervalsAfter(parentInterval, childrenAfter, sizesAfter, sizesAfterSum)
	if err != nil {
		return err
	}

	return rc.expandIntervalToChosen(parentInterval, child, sizesBeforeSum, sizesAfterSum, isFinalReindexRoot)
}

func (rc *reindexContext) tightenIntervalsBefore(parentInterval *model.ReachabilityInterval,
	childrenBefore []*externalapi.DomainHash, sizes []uint64, sizesSum uint64) error {

	// [parent.Start+slack, parent.Start+slack+sizesSum-1]
	interval := intervalIncreaseStart(parentInterval, rc.slack)
	interval = newReachabilityInterval(interval.Start, checkedSub(checkedAdd(interval.Start, sizesSum), 1))
	return rc.propagateChildrenIntervals(interval, childrenBefore, sizes)
}

func (rc *reindexContext) tightenIntervalsAfter(parentInterval *model.ReachabilityInterval,
	childrenAfter []*externalapi.DomainHash, sizes []uint64, sizesSum uint64) error {

	// [parent.End-slack-sizesSum, parent.End-slack-1]
	interval := intervalDecreaseEnd(parentInterval, rc.slack)
	interval = newReachabilityInterval(checkedSub(interval.End, sizesSum), checkedSub(interval.End, 1))
	return rc.propagateChildrenIntervals(interval, childrenAfter, sizes)
}

func (rc *reindexContext) expandIntervalToChosen(parentInterval *model.ReachabilityInterval,
	chosenChild *externalapi.DomainHash, childrenBeforeSizesSum, childrenAfterSizesSum uint64,
	isFinalReindexRoot bool) error {

	allocation := intervalIncreaseStart(parentInterval, checkedAdd(childrenBeforeSizesSum, rc.slack))
	allocation = intervalDecreaseEnd(allocation, checkedAdd(checkedAdd(childrenAfterSizesSum, rc.slack), 1))
	currentInterval, err := rc.store.Interval(chosenChild)
	if err != nil {
		return err
	}

	// Only the final reindex root is propagated, the intermediate chain
	// blocks are handled by the next concentration hop.
	if isFinalReindexRoot && !intervalContains(allocation, currentInterval) {
		subtreeSize := rc.subtreeSizes[*chosenChild]
		allocationSize := intervalSize(allocation)

		// Propagate a narrower interval when there's room for one, so that
		// the next time the reindex root moves the allocation is likely to
		// contain it and no propagation is required.
		propagated := allocation
		if rc.slack < allocationSize/2 && allocationSize-2*rc.slack >= subtreeSize {
			propagated = intervalDecreaseEnd(intervalIncreaseStart(allocation, rc.slack), rc.slack)
		}
		err = rc.store.SetInterval(chosenChild, propagated)
		if err != nil {
			return err
		}
		err = rc.propagateInterval(chosenChild)
		if err != nil {
			return err
		}
	}

	return rc.store.SetInterval(chosenChild, allocation)
}

func (rc *reindexContext) subtreeSizesOf(blocks []*externalapi.DomainHash) (sizes []uint64, sum uint64, err error) {
	sizes = make([]uint64, len(blocks))
	for i, block := range blocks {
		err := rc.countSubtrees(block)
		if err != nil {
			return nil, 0, err
		}
		sizes[i] = rc.subtreeSizes[*block]
		sum += sizes[i]
	}
	return sizes, sum, nil
}

func (rc *reindexContext) propagateChildrenIntervals(interval *model.ReachabilityInterval,
	children []*externalapi.DomainHash, sizes []uint64) error {

	childIntervals, err := intervalSplitExact(interval, sizes)
	if err != nil {
		return err
	}
	for i, child := range children {
		err := rc.store.SetInterval(child, childIntervals[i])
		if err != nil {
			return err
		}
		err = rc.propagateInterval(child)
		if err != nil {
			return err
		}
	}
	return nil
}

// splitChildren returns the children of parent that come before and after
// child.
func splitChildren(store model.ReachabilityStoreReader, parent, child *externalapi.DomainHash) (
	childrenBefore, childrenAfter []*externalapi.DomainHash, err error) {

	parentChildren, err := store.Children(parent)
	if err != nil {
		return nil, nil, err
	}
	for i, candidate := range parentChildren {
		if candidate.Equal(child) {
			return parentChildren[:i], parentChildren[i+1:], nil
		}
	}
	return nil, nil, errors.Wrapf(ruleerrors.ErrDataInconsistency,
		"%s is not a child of %s", child, parent)
}

// intervalChildrenCapacity returns the part of block's interval that may
// be allocated to its children. The last unit is kept so that block's
// interval strictly contains the intervals of its children.
func intervalChildrenCapacity(store model.ReachabilityStoreReader,
	block *externalapi.DomainHash) (*model.ReachabilityInterval, error) {

	interval, err := store.Interval(block)
	if err != nil {
		return nil, err
	}
	return newReachabilityInterval(interval.Start, interval.End-1), nil
}

func remainingIntervalBefore(store model.ReachabilityStoreReader,
	block *externalapi.DomainHash) (*model.ReachabilityInterval, error) {

	capacity, err := intervalChildrenCapacity(store, block)
	if err != nil {
		return nil, err
	}
	children, err := store.Children(block)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return capacity, nil
	}

	firstChildInterval, err := store.Interval(children[0])
	if err != nil {
		return nil, err
	}
	return newReachabilityInterval(capacity.Start, firstChildInterval.Start-1), nil
}

func remainingIntervalAfter(store model.ReachabilityStoreReader,
	block *externalapi.DomainHash) (*model.ReachabilityInterval, error) {

	capacity, err := intervalChildrenCapacity(store, block)
	if err != nil {
		return nil, err
	}
	children, err := store.Children(block)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return capacity, nil
	}

	lastChildInterval, err := store.Interval(children[len(children)-1])
	if err != nil {
		return nil, err
	}
	return newReachabilityInterval(lastChildInterval.End+1, capacity.End), nil
}

func remainingSlackBefore(store model.ReachabilityStoreReader, block *externalapi.DomainHash) (uint64, error) {
	interval, err := remainingIntervalBefore(store, block)
	if err != nil {
		return 0, err
	}
	return intervalSize(interval), nil
}

func remainingSlackAfter(store model.ReachabilityStoreReader, block *externalapi.DomainHash) (uint64, error) {
	interval, err := remainingIntervalAfter(store, block)
	if err != nil {
		return 0, err
	}
	return intervalSize(interval), nil
}
