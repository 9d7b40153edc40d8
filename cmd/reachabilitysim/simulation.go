package main

import (
	"math/rand"
	"time"

	"github.com/kaspanet/reachability/domain/consensus"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/utils/hashes"
	"github.com/pkg/errors"
)

const progressLogInterval = 10 * time.Second

// simulation grows a random blockDAG on top of a consensus. Every new
// block picks its parents among the most recent live blocks, so that the
// DAG has some width without the tips piling up.
type simulation struct {
	consensus  consensus.Consensus
	metrics    *simulationMetrics
	rng        *rand.Rand
	maxParents int
	pruneDepth uint64

	// live holds the non-pruned blocks, origin excluded, in the order
	// they were added
	live      []*externalapi.DomainHash
	maxHeight uint64
}

func newSimulation(c consensus.Consensus, metrics *simulationMetrics, seed int64,
	maxParents int, pruneDepth uint64) (*simulation, error) {

	sim := &simulation{
		consensus:  c,
		metrics:    metrics,
		rng:        rand.New(rand.NewSource(seed)),
		maxParents: maxParents,
		pruneDepth: pruneDepth,
	}

	// Pick up where a previous run left off
	tips, err := c.Tips()
	if err != nil {
		return nil, err
	}
	for _, tip := range tips {
		if tip.Equal(model.OriginHash) {
			continue
		}
		data, err := c.ReachabilityData(tip)
		if err != nil {
			return nil, err
		}
		if data.Height > sim.maxHeight {
			sim.maxHeight = data.Height
		}
		sim.live = append(sim.live, tip)
	}
	return sim, nil
}

// run adds blockCount blocks, or keeps adding blocks until interrupt is
// closed if blockCount is 0
func (sim *simulation) run(blockCount uint64, interrupt <-chan struct{}) error {
	lastLogTime := time.Now()
	var added uint64
	for blockCount == 0 || added < blockCount {
		select {
		case <-interrupt:
			log.Infof("Simulation interrupted after %d blocks", added)
			return nil
		default:
		}

		_, err := sim.addBlock()
		if err != nil {
			return err
		}
		added++

		if sim.pruneDepth > 0 {
			err = sim.prune()
			if err != nil {
				return err
			}
		}

		if time.Since(lastLogTime) >= progressLogInterval {
			lastLogTime = time.Now()
			reindexRoot, err := sim.consensus.ReindexRoot()
			if err != nil {
				return err
			}
			log.Infof("Added %d blocks. Live blocks: %d, selected tip height: %d, reindex root: %s",
				added, len(sim.live), sim.maxHeight, reindexRoot)
		}
	}
	log.Infof("Done adding %d blocks", added)
	return nil
}

func (sim *simulation) addBlock() (*externalapi.DomainHash, error) {
	parents := sim.pickParents()
	blockHash := hashes.BlockHash(parents, sim.rng.Uint64())

	start := time.Now()
	err := sim.consensus.AddBlock(blockHash, parents)
	if err != nil {
		return nil, errors.Wrapf(err, "failed adding block %s", blockHash)
	}
	sim.metrics.addDuration.Observe(time.Since(start).Seconds())
	sim.metrics.blocksAdded.Inc()

	data, err := sim.consensus.ReachabilityData(blockHash)
	if err != nil {
		return nil, err
	}
	if data.Height > sim.maxHeight {
		sim.maxHeight = data.Height
	}
	sim.live = append(sim.live, blockHash)
	log.Tracef("Added block %s at height %d with parents %s", blockHash, data.Height, parents)
	return blockHash, nil
}

// pickParents picks 1 to maxParents distinct parents among the last
// 2*maxParents live blocks
func (sim *simulation) pickParents() []*externalapi.DomainHash {
	if len(sim.live) == 0 {
		return []*externalapi.DomainHash{model.OriginHash}
	}

	candidates := sim.live
	window := 2 * sim.maxParents
	if len(candidates) > window {
		candidates = candidates[len(candidates)-window:]
	}
	parentCount := 1 + sim.rng.Intn(sim.maxParents)
	if parentCount > len(candidates) {
		parentCount = len(candidates)
	}
	parents := make([]*externalapi.DomainHash, 0, parentCount)
	for _, index := range sim.rng.Perm(len(candidates))[:parentCount] {
		parents = append(parents, candidates[index])
	}
	return parents
}

// prune deletes the oldest live blocks for as long as they are more than
// pruneDepth tree heights below the selected tip. The newest block is
// never pruned.
func (sim *simulation) prune() error {
	for len(sim.live) > 1 {
		oldest := sim.live[0]
		data, err := sim.consensus.ReachabilityData(oldest)
		if err != nil {
			return err
		}
		if data.Height+sim.pruneDepth >= sim.maxHeight {
			return nil
		}

		err = sim.consensus.DeleteBlock(oldest)
		if err != nil {
			return errors.Wrapf(err, "failed pruning block %s", oldest)
		}
		sim.live = sim.live[1:]
		sim.metrics.blocksPruned.Inc()
		log.Tracef("Pruned block %s at height %d", oldest, data.Height)
	}
	return nil
}

// blocks returns the live blocks along with the origin
func (sim *simulation) blocks() []*externalapi.DomainHash {
	blocks := make([]*externalapi.DomainHash, 0, len(sim.live)+1)
	blocks = append(blocks, model.OriginHash)
	return append(blocks, sim.live...)
}
