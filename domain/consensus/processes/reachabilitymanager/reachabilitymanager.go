package reachabilitymanager

import (
	"time"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const (
	// DefaultReindexDepth is the distance, in tree heights, that the
	// reindex root is kept below the selected tip.
	DefaultReindexDepth uint64 = 100

	// DefaultReindexSlack is the interval slack allocated to every chain
	// block below the reindex root when reclaiming, and kept around the
	// children of chain blocks when concentrating.
	DefaultReindexSlack uint64 = 1 << 12

	// MaxReindexSlack bounds the reindex slack so that the maximal interval
	// can hold the slack of at least 2^32 chain blocks.
	MaxReindexSlack uint64 = 1 << 32
)

// reachabilityManager maintains a structure that allows to answer
// reachability queries in sub-linear time.
//
// It keeps no state of its own apart from its parameters. All data lives
// in the store passed to each call, and callers are responsible for
// serializing writes against reads.
type reachabilityManager struct {
	reindexDepth uint64
	reindexSlack uint64
	metrics      *Metrics
}

// New instantiates a new reachabilityManager. metrics may be nil.
func New(reindexDepth, reindexSlack uint64, metrics *Metrics) model.ReachabilityManager {
	return &reachabilityManager{
		reindexDepth: reindexDepth,
		reindexSlack: reindexSlack,
		metrics:      metrics,
	}
}

// Init inserts the origin into an empty store, owning the entire interval
// space, and makes it the reindex root. It does nothing if the origin
// already exists.
func (rt *reachabilityManager) Init(store model.ReachabilityStore) error {
	return InitWithParams(store, model.OriginHash, maximalInterval())
}

// InitWithParams is Init with a custom origin and capacity, which lets
// tests exercise reindexing with small intervals.
func InitWithParams(store model.ReachabilityStore, origin *externalapi.DomainHash,
	capacity *model.ReachabilityInterval) error {

	exists, err := store.Has(origin)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return store.Init(origin, capacity)
}

// AddTreeBlock adds blockHash to the reachability tree as a child of
// selectedParent. If selectedParent has no interval space left for it, a
// reindex is triggered.
//
// If the reindex fails with ErrDataOverflow, blockHash is removed again and
// store is left as it was before the call. Any other error may leave store
// partially reindexed.
func (rt *reachabilityManager) AddTreeBlock(store model.ReachabilityStore,
	blockHash, selectedParent *externalapi.DomainHash) error {

	remaining, err := remainingIntervalAfter(store, selectedParent)
	if err != nil {
		return err
	}

	parentHeight, err := store.AppendChild(selectedParent, blockHash)
	if err != nil {
		return err
	}

	if intervalIsEmpty(remaining) {
		// No allocation space left: insert with the empty interval, which
		// sits right after the last child, and reindex
		err = store.Insert(blockHash, selectedParent, remaining, parentHeight+1)
		if err != nil {
			return rt.undoAddTreeBlock(store, blockHash, selectedParent, false, err)
		}
		reindexRoot, err := store.ReindexRoot()
		if err != nil {
			return err
		}

		reindexStartTime := time.Now()
		err = newReindexContext(store, rt.reindexSlack, rt.metrics).reindexIntervals(blockHash, reindexRoot)
		if err != nil {
			return rt.undoAddTreeBlock(store, blockHash, selectedParent, true, err)
		}
		reindexTimeElapsed := time.Since(reindexStartTime)
		rt.metrics.observeReindex(reindexTimeElapsed)
		log.Debugf("Reachability reindex triggered for block %s. Took %dms.",
			blockHash, reindexTimeElapsed.Milliseconds())
		return nil
	}

	allocated, _, err := intervalSplitInHalf(remaining)
	if err != nil {
		return err
	}
	err = store.Insert(blockHash, selectedParent, allocated, parentHeight+1)
	if err != nil {
		return rt.undoAddTreeBlock(store, blockHash, selectedParent, false, err)
	}
	return nil
}

// undoAddTreeBlock detaches blockHash, the last child of selectedParent,
// and deletes it if it was inserted. It returns cause, or the error that
// prevented the undo.
func (rt *reachabilityManager) undoAddTreeBlock(store model.ReachabilityStore,
	blockHash, selectedParent *externalapi.DomainHash, inserted bool, cause error) error {

	children, err := store.Children(selectedParent)
	if err != nil {
		return errors.Wrapf(err, "failed to undo the insertion of %s after: %s", blockHash, cause)
	}
	err = store.ReplaceChild(selectedParent, blockHash, len(children)-1, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to undo the insertion of %s after: %s", blockHash, cause)
	}
	if inserted {
		err = store.Delete(blockHash)
		if err != nil {
			return errors.Wrapf(err, "failed to undo the insertion of %s after: %s", blockHash, cause)
		}
	}
	log.Debugf("Undid the insertion of %s: %s", blockHash, cause)
	return cause
}

// AddBlock adds blockHash to the reachability tree, and to the future
// covering set of every block in its merge set.
func (rt *reachabilityManager) AddBlock(store model.ReachabilityStore, blockHash,
	selectedParent *externalapi.DomainHash, mergeSet []*externalapi.DomainHash) error {

	err := rt.AddTreeBlock(store, blockHash, selectedParent)
	if err != nil {
		return err
	}

	for _, merged := range mergeSet {
		err = rt.InsertToFutureCoveringSet(store, merged, blockHash)
		if err != nil {
			return err
		}
	}
	return nil
}

// HintVirtualSelectedParent informs the manager of the current selected
// tip, allowing it to move the reindex root along. It has no effect on
// query results.
func (rt *reachabilityManager) HintVirtualSelectedParent(store model.ReachabilityStore,
	hint *externalapi.DomainHash) error {

	return rt.TryAdvancingReindexRoot(store, hint, rt.reindexDepth, rt.reindexSlack)
}
