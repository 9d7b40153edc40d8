package reachabilitymanager

import (
	"math"
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/kaspanet/reachability/domain/consensus/utils/testutils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testReindexDepth = 10

type treeTestContext struct {
	t       *testing.T
	name    string
	store   model.ReachabilityStore
	manager *reachabilityManager
	metrics *Metrics
	dag     *testutils.DAGBuilder
}

func newTreeTestContext(t *testing.T, name string, reindexSlack uint64) *treeTestContext {
	metrics, err := NewMetrics("test", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("%s: NewMetrics: %s", name, err)
	}
	store := reachabilitydatastore.NewMemoryStore()
	manager := New(testReindexDepth, reindexSlack, metrics).(*reachabilityManager)
	dag := testutils.NewDAGBuilder(manager, store)
	err = dag.Init()
	if err != nil {
		t.Fatalf("%s: Init: %s", name, err)
	}
	return &treeTestContext{
		t:       t,
		name:    name,
		store:   store,
		manager: manager,
		metrics: metrics,
		dag:     dag,
	}
}

func (tc *treeTestContext) addBlock(word uint64, parents ...*externalapi.DomainHash) *externalapi.DomainHash {
	blockHash := hash(word)
	err := tc.dag.AddBlock(testutils.DAGBlock{Hash: blockHash, Parents: parents})
	if err != nil {
		tc.t.Fatalf("%s: AddBlock: %+v", tc.name, err)
	}
	return blockHash
}

// addChain adds length blocks on top of tip, numbered from firstWord, and
// returns the new tip
func (tc *treeTestContext) addChain(tip *externalapi.DomainHash, firstWord uint64, length uint64) *externalapi.DomainHash {
	for i := uint64(0); i < length; i++ {
		tip = tc.addBlock(firstWord+i, tip)
	}
	return tip
}

func (tc *treeTestContext) reindexRoot() *externalapi.DomainHash {
	reindexRoot, err := tc.store.ReindexRoot()
	if err != nil {
		tc.t.Fatalf("%s: ReindexRoot: %s", tc.name, err)
	}
	return reindexRoot
}

func (tc *treeTestContext) interval(blockHash *externalapi.DomainHash) *model.ReachabilityInterval {
	interval, err := tc.store.Interval(blockHash)
	if err != nil {
		tc.t.Fatalf("%s: Interval: %s", tc.name, err)
	}
	return interval
}

func (tc *treeTestContext) intervalSize(blockHash *externalapi.DomainHash) uint64 {
	return intervalSize(tc.interval(blockHash))
}

func (tc *treeTestContext) validate() {
	err := tc.manager.ValidateIntervals(tc.store, tc.dag.Origin())
	if err != nil {
		tc.t.Fatalf("%s: ValidateIntervals: %s", tc.name, err)
	}
}

func TestAddChildThatPointsDirectlyToTheSelectedParentChainBelowReindexRoot(t *testing.T) {
	tc := newTreeTestContext(t, "TestAddChildThatPointsDirectlyToTheSelectedParentChainBelowReindexRoot",
		DefaultReindexSlack)
	origin := tc.dag.Origin()

	if !tc.reindexRoot().Equal(origin) {
		t.Fatalf("%s: reindex root is expected to initially be the origin", tc.name)
	}

	// Add a chain of testReindexDepth blocks above chainRootBlock. This
	// should move the reindex root
	chainRootBlock := tc.addBlock(1, origin)
	tc.addChain(chainRootBlock, 2, testReindexDepth)

	if tc.reindexRoot().Equal(origin) {
		t.Fatalf("%s: reindex root is expected to change", tc.name)
	}

	// Add another block over the origin
	sideBlock := tc.addBlock(100, origin)
	tc.validate()

	isAncestor, err := tc.manager.IsDAGAncestorOf(tc.store, chainRootBlock, sideBlock)
	if err != nil {
		t.Fatalf("%s: IsDAGAncestorOf: %s", tc.name, err)
	}
	if isAncestor {
		t.Fatalf("%s: a block on a side chain is unexpectedly in the future of the main chain", tc.name)
	}
}

func TestUpdateReindexRoot(t *testing.T) {
	tc := newTreeTestContext(t, "TestUpdateReindexRoot", DefaultReindexSlack)
	origin := tc.dag.Origin()

	chain1RootBlock := tc.addBlock(1, origin)
	chain2RootBlock := tc.addBlock(2, origin)

	// Make two chains of size testReindexDepth and check that the reindex
	// root is not changed
	chain1Tip, chain2Tip := chain1RootBlock, chain2RootBlock
	for i := uint64(0); i < testReindexDepth-1; i++ {
		chain1Tip = tc.addBlock(100+i, chain1Tip)
		chain2Tip = tc.addBlock(200+i, chain2Tip)

		if !tc.reindexRoot().Equal(origin) {
			t.Fatalf("%s: reindex root unexpectedly moved", tc.name)
		}
	}

	// Add another block over chain1. This will move the reindex root to
	// chain1RootBlock
	tc.addBlock(300, chain1Tip)

	if !tc.reindexRoot().Equal(chain1RootBlock) {
		t.Fatalf("%s: chain1RootBlock is not the reindex root after reindex", tc.name)
	}

	// Tight intervals have been applied to chain2. Since we added
	// testReindexDepth-1 blocks to chain2, the size of the interval at
	// its root should be equal to testReindexDepth
	if tc.intervalSize(chain2RootBlock) != testReindexDepth {
		t.Fatalf("%s: got unexpected chain2RootBlock interval. Want: %d, got: %d",
			tc.name, testReindexDepth, tc.intervalSize(chain2RootBlock))
	}

	// The rest of the interval has been allocated to chain1RootBlock,
	// minus slack from both sides
	expectedChain1RootIntervalSize := tc.intervalSize(origin) - 1 -
		tc.intervalSize(chain2RootBlock) - 2*tc.manager.reindexSlack
	if tc.intervalSize(chain1RootBlock) != expectedChain1RootIntervalSize {
		t.Fatalf("%s: got unexpected chain1RootBlock interval. Want: %d, got: %d",
			tc.name, expectedChain1RootIntervalSize, tc.intervalSize(chain1RootBlock))
	}

	if testutil.ToFloat64(tc.metrics.reindexRootMoves) != 1 {
		t.Fatalf("%s: expected a single reindex root move, got %f",
			tc.name, testutil.ToFloat64(tc.metrics.reindexRootMoves))
	}
	if testutil.ToFloat64(tc.metrics.concentrations) != 1 {
		t.Fatalf("%s: expected a single concentration, got %f",
			tc.name, testutil.ToFloat64(tc.metrics.concentrations))
	}
	tc.validate()
}

func TestReindexIntervalsEarlierThanReindexRoot(t *testing.T) {
	tc := newTreeTestContext(t, "TestReindexIntervalsEarlierThanReindexRoot", DefaultReindexSlack)
	origin := tc.dag.Origin()
	slack := tc.manager.reindexSlack

	// Add three children to the origin: leftBlock, centerBlock, rightBlock
	leftBlock := tc.addBlock(1, origin)
	centerBlock := tc.addBlock(2, origin)
	rightBlock := tc.addBlock(3, origin)

	// Add a chain of testReindexDepth blocks above centerBlock. This will
	// move the reindex root to centerBlock
	tc.addChain(centerBlock, 100, testReindexDepth)

	if !tc.reindexRoot().Equal(centerBlock) {
		t.Fatalf("%s: centerBlock is not the reindex root after reindex", tc.name)
	}

	// The concentration resulted in tight intervals for leftBlock and
	// rightBlock
	if tc.intervalSize(leftBlock) != 1 {
		t.Fatalf("%s: leftBlock interval not tight after reindex", tc.name)
	}
	if tc.intervalSize(rightBlock) != 1 {
		t.Fatalf("%s: rightBlock interval not tight after reindex", tc.name)
	}

	// centerBlock gets originInterval - 1 - leftInterval - leftSlack -
	// rightInterval - rightSlack
	expectedCenterIntervalSize := tc.intervalSize(origin) - 1 -
		tc.intervalSize(leftBlock) - slack -
		tc.intervalSize(rightBlock) - slack
	if tc.intervalSize(centerBlock) != expectedCenterIntervalSize {
		t.Fatalf("%s: unexpected centerBlock interval. Want: %d, got: %d",
			tc.name, expectedCenterIntervalSize, tc.intervalSize(centerBlock))
	}

	// A child of leftBlock has no room, so the two units required by the
	// subtree of leftBlock are reclaimed from the start of centerBlock
	leftChild := tc.addBlock(200, leftBlock)
	expectedCenterIntervalSize -= 2
	if tc.intervalSize(centerBlock) != expectedCenterIntervalSize {
		t.Fatalf("%s: unexpected centerBlock interval. Want: %d, got: %d",
			tc.name, expectedCenterIntervalSize, tc.intervalSize(centerBlock))
	}
	if tc.intervalSize(leftBlock) != 3 {
		t.Fatalf("%s: unexpected leftBlock interval size. Want: 3, got: %d",
			tc.name, tc.intervalSize(leftBlock))
	}
	if tc.interval(leftBlock).End+1 != tc.interval(centerBlock).Start {
		t.Fatalf("%s: leftBlock %s and centerBlock %s are not contiguous",
			tc.name, tc.interval(leftBlock), tc.interval(centerBlock))
	}
	if testutil.ToFloat64(tc.metrics.reclaims.WithLabelValues("before")) != 1 {
		t.Fatalf("%s: expected a single reclaim before the reindex root chain", tc.name)
	}
	tc.validate()

	// Likewise, a child of rightBlock is served from the end of centerBlock
	rightChild := tc.addBlock(300, rightBlock)
	expectedCenterIntervalSize -= 2
	if tc.intervalSize(centerBlock) != expectedCenterIntervalSize {
		t.Fatalf("%s: unexpected centerBlock interval. Want: %d, got: %d",
			tc.name, expectedCenterIntervalSize, tc.intervalSize(centerBlock))
	}
	if tc.interval(centerBlock).End+1 != tc.interval(rightBlock).Start {
		t.Fatalf("%s: centerBlock %s and rightBlock %s are not contiguous",
			tc.name, tc.interval(centerBlock), tc.interval(rightBlock))
	}
	if testutil.ToFloat64(tc.metrics.reclaims.WithLabelValues("after")) != 1 {
		t.Fatalf("%s: expected a single reclaim after the reindex root chain", tc.name)
	}
	if testutil.ToFloat64(tc.metrics.reindexes) != 2 {
		t.Fatalf("%s: expected two reindexes, got %f", tc.name, testutil.ToFloat64(tc.metrics.reindexes))
	}
	tc.validate()

	tests := []struct {
		ancestor, descendant *externalapi.DomainHash
		expectedResult       bool
	}{
		{ancestor: leftBlock, descendant: leftChild, expectedResult: true},
		{ancestor: rightBlock, descendant: rightChild, expectedResult: true},
		{ancestor: centerBlock, descendant: leftChild, expectedResult: false},
		{ancestor: centerBlock, descendant: rightChild, expectedResult: false},
		{ancestor: leftChild, descendant: rightChild, expectedResult: false},
		{ancestor: origin, descendant: rightChild, expectedResult: true},
	}
	for _, test := range tests {
		isAncestor, err := tc.manager.IsDAGAncestorOf(tc.store, test.ancestor, test.descendant)
		if err != nil {
			t.Fatalf("%s: IsDAGAncestorOf: %s", tc.name, err)
		}
		if isAncestor != test.expectedResult {
			t.Fatalf("%s: IsDAGAncestorOf(%s, %s): want: %t, got: %t",
				tc.name, test.ancestor, test.descendant, test.expectedResult, isAncestor)
		}
	}
}

func TestTipsAfterReindexIntervalsEarlierThanReindexRoot(t *testing.T) {
	tc := newTreeTestContext(t, "TestTipsAfterReindexIntervalsEarlierThanReindexRoot", 1)
	origin := tc.dag.Origin()
	originEnd := uint64(math.MaxUint64 - 1)

	// Add a chain of testReindexDepth + 1 blocks above the origin. This
	// will set the reindex root to the child of the origin
	chainRootBlock := tc.addBlock(1, origin)
	chainTip := tc.addChain(chainRootBlock, 2, testReindexDepth)
	if !tc.reindexRoot().Equal(chainRootBlock) {
		t.Fatalf("%s: chainRootBlock is not the reindex root", tc.name)
	}
	expectedChainRootInterval := newReachabilityInterval(2, originEnd-2)
	if !tc.interval(chainRootBlock).Equal(expectedChainRootInterval) {
		t.Fatalf("%s: unexpected chainRootBlock interval. Want: %s, got: %s",
			tc.name, expectedChainRootInterval, tc.interval(chainRootBlock))
	}

	// A side block above the origin still fits in the slack
	sideBlock := tc.addBlock(100, origin)
	if testutil.ToFloat64(tc.metrics.reindexes) != 0 {
		t.Fatalf("%s: unexpected reindex", tc.name)
	}

	// Its child doesn't, which triggers an earlier-than-reindex-root reindex
	sideChild := tc.addBlock(101, sideBlock)
	if testutil.ToFloat64(tc.metrics.reclaims.WithLabelValues("after")) != 1 {
		t.Fatalf("%s: expected a single reclaim after the reindex root chain", tc.name)
	}

	expectedIntervals := []struct {
		blockHash *externalapi.DomainHash
		interval  *model.ReachabilityInterval
	}{
		{blockHash: chainRootBlock, interval: newReachabilityInterval(2, originEnd-4)},
		{blockHash: sideBlock, interval: newReachabilityInterval(originEnd-3, originEnd-1)},
		{blockHash: sideChild, interval: newReachabilityInterval(originEnd-3, originEnd-2)},
	}
	for _, expected := range expectedIntervals {
		if !tc.interval(expected.blockHash).Equal(expected.interval) {
			t.Fatalf("%s: unexpected interval of %s. Want: %s, got: %s",
				tc.name, expected.blockHash, expected.interval, tc.interval(expected.blockHash))
		}
	}

	// sideChild is higher than the reindex root by the slack, which makes
	// it switch to the common ancestor of both chains
	if !tc.reindexRoot().Equal(origin) {
		t.Fatalf("%s: expected the reindex root to move back to the origin, got %s",
			tc.name, tc.reindexRoot())
	}

	// A block merging both tips must be accepted
	mergingBlock := tc.addBlock(102, chainTip, sideChild)
	tc.validate()

	for _, ancestor := range []*externalapi.DomainHash{chainTip, sideChild, sideBlock, chainRootBlock} {
		isAncestor, err := tc.manager.IsDAGAncestorOf(tc.store, ancestor, mergingBlock)
		if err != nil {
			t.Fatalf("%s: IsDAGAncestorOf: %s", tc.name, err)
		}
		if !isAncestor {
			t.Fatalf("%s: %s is expected to be in the past of the merging block", tc.name, ancestor)
		}
	}
}

func TestFindNextReindexRoot(t *testing.T) {
	const (
		depth = 5
		slack = 5
	)
	tc := newTreeTestContext(t, "TestFindNextReindexRoot", DefaultReindexSlack)
	tc.manager.reindexDepth = 1000
	origin := tc.dag.Origin()

	// Main chain: 1..20, at heights 1..20
	tc.addChain(origin, 1, 20)
	// Side chain: 111..125, forking from 10, at heights 11..25
	tc.addChain(hash(10), 111, 15)

	tests := []struct {
		name             string
		currentRoot      *externalapi.DomainHash
		hint             *externalapi.DomainHash
		expectedAncestor *externalapi.DomainHash
		expectedNext     *externalapi.DomainHash
	}{
		{
			name:             "advance along the chain",
			currentRoot:      origin,
			hint:             hash(20),
			expectedAncestor: origin,
			expectedNext:     hash(15),
		},
		{
			name:             "hint is the current root",
			currentRoot:      hash(15),
			hint:             hash(15),
			expectedAncestor: hash(15),
			expectedNext:     hash(15),
		},
		{
			name:             "hint is too close",
			currentRoot:      hash(15),
			hint:             hash(19),
			expectedAncestor: hash(15),
			expectedNext:     hash(15),
		},
		{
			name:             "side chain is not high enough",
			currentRoot:      hash(15),
			hint:             hash(116),
			expectedAncestor: hash(15),
			expectedNext:     hash(15),
		},
		{
			name:             "hint is lower than the current root",
			currentRoot:      hash(15),
			hint:             hash(12),
			expectedAncestor: hash(15),
			expectedNext:     hash(15),
		},
		{
			name:             "switch to the side chain",
			currentRoot:      hash(15),
			hint:             hash(120),
			expectedAncestor: hash(10),
			expectedNext:     hash(115),
		},
	}

	for _, test := range tests {
		ancestor, next, err := findNextReindexRoot(tc.store, test.currentRoot, test.hint, depth, slack)
		if err != nil {
			t.Fatalf("TestFindNextReindexRoot: %s: %s", test.name, err)
		}
		if !ancestor.Equal(test.expectedAncestor) {
			t.Fatalf("TestFindNextReindexRoot: %s: unexpected ancestor. Want: %s, got: %s",
				test.name, test.expectedAncestor, ancestor)
		}
		if !next.Equal(test.expectedNext) {
			t.Fatalf("TestFindNextReindexRoot: %s: unexpected next reindex root. Want: %s, got: %s",
				test.name, test.expectedNext, next)
		}
	}

	// Switching to the side chain concentrates every hop from the common
	// ancestor to the new root
	err := tc.store.SetReindexRoot(hash(15))
	if err != nil {
		t.Fatalf("TestFindNextReindexRoot: SetReindexRoot: %s", err)
	}
	concentrationsBefore := testutil.ToFloat64(tc.metrics.concentrations)
	err = tc.manager.TryAdvancingReindexRoot(tc.store, hash(120), depth, slack)
	if err != nil {
		t.Fatalf("TestFindNextReindexRoot: TryAdvancingReindexRoot: %s", err)
	}
	if !tc.reindexRoot().Equal(hash(115)) {
		t.Fatalf("TestFindNextReindexRoot: unexpected reindex root %s", tc.reindexRoot())
	}
	concentrations := testutil.ToFloat64(tc.metrics.concentrations) - concentrationsBefore
	if concentrations != 5 {
		t.Fatalf("TestFindNextReindexRoot: expected 5 concentrations, got %f", concentrations)
	}
	tc.validate()
}

// TestReindexSlackCloseToIntervalSize makes sure that a slack too large
// for the interval space is reported as ErrDataOverflow once the space runs
// out, instead of wrapping intervals around.
func TestReindexSlackCloseToIntervalSize(t *testing.T) {
	tc := newTreeTestContext(t, "TestReindexSlackCloseToIntervalSize", 1<<60)

	// Every move of the reindex root costs twice the slack, so the
	// maximal interval is exhausted after less than 8 moves
	const chainLength = 400
	tip := tc.dag.Origin()
	var overflowErr error
	for i := uint64(1); i <= chainLength; i++ {
		blockHash := hash(i)
		err := tc.dag.AddBlock(testutils.DAGBlock{Hash: blockHash, Parents: []*externalapi.DomainHash{tip}})
		if err != nil {
			overflowErr = err
			break
		}
		tip = blockHash
		tc.validate()
	}

	if overflowErr == nil {
		t.Fatalf("%s: expected a chain of %d blocks to exhaust the interval space", tc.name, chainLength)
	}
	if !errors.Is(overflowErr, ruleerrors.ErrDataOverflow) {
		t.Fatalf("%s: expected ErrDataOverflow, got: %+v", tc.name, overflowErr)
	}
	tc.validate()
}
