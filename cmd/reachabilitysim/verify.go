package main

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"time"

	"github.com/kaspanet/reachability/domain/consensus"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/utils/hashset"
	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// verifier checks the answers of the oracle against explicit traversals
// of the DAG and of the selected parent chains
type verifier struct {
	consensus consensus.Consensus
	metrics   *simulationMetrics
	blocks    []*externalapi.DomainHash
}

// verify validates the stored reachability data and then runs queryCount
// random queries split between as many workers as there are CPUs
func (v *verifier) verify(ctx context.Context, queryCount int, seed int64) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "verify")
	defer onEnd()

	err := v.consensus.ValidateReachability()
	if err != nil {
		return errors.Wrap(err, "reachability data is invalid")
	}
	log.Infof("Reachability data of %d blocks is valid", len(v.blocks))

	workerCount := runtime.NumCPU()
	if workerCount > queryCount {
		workerCount = queryCount
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		workerQueries := queryCount / workerCount
		if i < queryCount%workerCount {
			workerQueries++
		}
		rng := rand.New(rand.NewSource(seed + int64(i)))
		group.Go(func() error {
			return v.runQueries(groupCtx, rng, workerQueries)
		})
	}
	err = group.Wait()
	if err != nil {
		return err
	}
	log.Infof("All %d queries agree with the DAG traversal", queryCount)
	return nil
}

func (v *verifier) runQueries(ctx context.Context, rng *rand.Rand, queryCount int) error {
	for i := 0; i < queryCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		blockA := v.blocks[rng.Intn(len(v.blocks))]
		blockB := v.blocks[rng.Intn(len(v.blocks))]
		err := v.checkPair(blockA, blockB)
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) checkPair(blockA, blockB *externalapi.DomainHash) error {
	start := time.Now()
	isDAGAncestor, err := v.consensus.IsDAGAncestorOf(blockA, blockB)
	if err != nil {
		return err
	}
	v.metrics.queryDuration.Observe(time.Since(start).Seconds())
	v.metrics.queriesRun.WithLabelValues(strconv.FormatBool(isDAGAncestor)).Inc()

	expectedDAGAncestor, err := v.isInInclusivePast(blockA, blockB)
	if err != nil {
		return err
	}
	if isDAGAncestor != expectedDAGAncestor {
		return errors.Errorf("IsDAGAncestorOf(%s, %s) returned %t while the DAG traversal says %t",
			blockA, blockB, isDAGAncestor, expectedDAGAncestor)
	}

	isChainAncestor, err := v.consensus.IsChainAncestorOf(blockA, blockB)
	if err != nil {
		return err
	}
	expectedChainAncestor, err := v.isInSelectedParentChain(blockA, blockB)
	if err != nil {
		return err
	}
	if isChainAncestor != expectedChainAncestor {
		return errors.Errorf("IsChainAncestorOf(%s, %s) returned %t while the chain traversal says %t",
			blockA, blockB, isChainAncestor, expectedChainAncestor)
	}
	return nil
}

// isInInclusivePast walks the DAG parents of block looking for candidate
func (v *verifier) isInInclusivePast(candidate, block *externalapi.DomainHash) (bool, error) {
	if candidate.Equal(block) {
		return true, nil
	}
	visited := hashset.NewFromSlice(block)
	queue := []*externalapi.DomainHash{block}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		parents, err := v.consensus.Parents(current)
		if err != nil {
			return false, err
		}
		for _, parent := range parents {
			if parent.Equal(candidate) {
				return true, nil
			}
			if visited.Contains(parent) {
				continue
			}
			visited.Add(parent)
			queue = append(queue, parent)
		}
	}
	return false, nil
}

// isInSelectedParentChain walks the selected parents of block looking
// for candidate
func (v *verifier) isInSelectedParentChain(candidate, block *externalapi.DomainHash) (bool, error) {
	current := block
	for current != nil {
		if current.Equal(candidate) {
			return true, nil
		}
		data, err := v.consensus.ReachabilityData(current)
		if err != nil {
			return false, err
		}
		current = data.Parent
	}
	return false, nil
}
