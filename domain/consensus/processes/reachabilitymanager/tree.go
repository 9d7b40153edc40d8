package reachabilitymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// TryAdvancingReindexRoot moves the reindex root towards hint, so that it
// stays about reindexDepth blocks below it. On the way, the interval space
// of every chain block between the old and the new root is concentrated
// on the child leading to the new root, which is where new blocks are
// expected to arrive.
func (rt *reachabilityManager) TryAdvancingReindexRoot(store model.ReachabilityStore,
	hint *externalapi.DomainHash, reindexDepth, reindexSlack uint64) error {

	currentReindexRoot, err := store.ReindexRoot()
	if err != nil {
		return err
	}

	// ancestor is the last chain block shared by the current and the next
	// reindex roots
	ancestor, next, err := findNextReindexRoot(store, currentReindexRoot, hint, reindexDepth, reindexSlack)
	if err != nil {
		return err
	}
	if currentReindexRoot.Equal(next) {
		return nil
	}

	for !ancestor.Equal(next) {
		child, err := findNextChainAncestorUnchecked(store, next, ancestor)
		if err != nil {
			return err
		}
		err = newReindexContext(store, reindexSlack, rt.metrics).concentrateInterval(ancestor, child, child.Equal(next))
		if err != nil {
			return err
		}
		rt.metrics.observeConcentration()
		ancestor = child
	}

	log.Debugf("Advancing the reindex root from %s to %s", currentReindexRoot, next)
	rt.metrics.observeReindexRootMove()
	return store.SetReindexRoot(next)
}

// findNextReindexRoot finds the block that should become the reindex root
// given that hint is the selected tip. It returns the new root along with
// its common chain ancestor with currentReindexRoot.
func findNextReindexRoot(store model.ReachabilityStoreReader, currentReindexRoot, hint *externalapi.DomainHash,
	reindexDepth, reindexSlack uint64) (ancestor, next *externalapi.DomainHash, err error) {

	ancestor = currentReindexRoot
	next = currentReindexRoot

	if currentReindexRoot.Equal(hint) {
		return ancestor, next, nil
	}

	hintHeight, err := store.Height(hint)
	if err != nil {
		return nil, nil, err
	}

	isRootAncestorOfHint, err := isChainAncestorOf(store, currentReindexRoot, hint)
	if err != nil {
		return nil, nil, err
	}
	if !isRootAncestorOfHint {
		// The selected tip moved to a different chain (a reorg). Switch
		// chains only once the new chain is reindexSlack blocks higher, so
		// that alternating reorgs can't make us reindex over and over.
		// The hint may also be lower than the current root, in which case
		// the root stays where it is.
		currentHeight, err := store.Height(currentReindexRoot)
		if err != nil {
			return nil, nil, err
		}
		if hintHeight < currentHeight || hintHeight-currentHeight < reindexSlack {
			return ancestor, next, nil
		}

		commonAncestor, err := findCommonTreeAncestor(store, hint, currentReindexRoot)
		if err != nil {
			return nil, nil, err
		}
		ancestor = commonAncestor
		next = commonAncestor
	}

	// Walk from ancestor towards hint until reindexDepth is passed
	for {
		child, err := findNextChainAncestorUnchecked(store, hint, next)
		if err != nil {
			return nil, nil, err
		}
		childHeight, err := store.Height(child)
		if err != nil {
			return nil, nil, err
		}

		if hintHeight < childHeight {
			return nil, nil, errors.Wrapf(ruleerrors.ErrDataInconsistency,
				"chain block %s is higher than its descendant %s", child, hint)
		}
		if hintHeight-childHeight < reindexDepth {
			break
		}
		next = child
	}

	return ancestor, next, nil
}
