package consensus

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/model/testapi"
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	hashespkg "github.com/kaspanet/reachability/domain/consensus/utils/hashes"
)

// TestConsensus wraps the Consensus interface with some methods that are needed by tests only
type TestConsensus interface {
	Consensus

	// AddBlockWithParents adds a block with a hash derived from its
	// parents, and returns that hash
	AddBlockWithParents(parentHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error)
	AddBlockWithHash(blockHash *externalapi.DomainHash, parentHashes ...*externalapi.DomainHash) error

	// ReachabilityManager allows tests to change the reindex params of a
	// running consensus. Changing them concurrently with other calls is
	// not safe.
	ReachabilityManager() testapi.TestReachabilityManager
	ReachabilityStore() model.ReachabilityStoreReader
}

type testConsensus struct {
	*consensus
	nonce uint64
}

func (tc *testConsensus) AddBlockWithParents(parentHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error) {
	tc.nonce++
	blockHash := hashespkg.BlockHash(parentHashes, tc.nonce)
	err := tc.AddBlock(blockHash, parentHashes)
	if err != nil {
		return nil, err
	}
	return blockHash, nil
}

func (tc *testConsensus) AddBlockWithHash(blockHash *externalapi.DomainHash,
	parentHashes ...*externalapi.DomainHash) error {

	return tc.AddBlock(blockHash, parentHashes)
}

func (tc *testConsensus) ReachabilityManager() testapi.TestReachabilityManager {
	return reachabilitymanager.NewTestReachabilityManager(tc.reachabilityManager)
}

func (tc *testConsensus) ReachabilityStore() model.ReachabilityStoreReader {
	return tc.reachabilityDataStore.Reader()
}
