package reachabilitymanager

import (
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/utils/testutils"
)

func hash(word uint64) *externalapi.DomainHash {
	return externalapi.NewDomainHashFromUint64(word)
}

func TestCountSubtreesAndPropagateInterval(t *testing.T) {
	store := reachabilitydatastore.NewMemoryStore()
	builder := testutils.NewStoreBuilder(store)

	// 1 <- 2 <- 3 <- 5 <- 6 <- 8
	//      2 <- 4
	// 1 <- 7
	relations := []struct {
		block, parent uint64
	}{
		{block: 1, parent: 0},
		{block: 2, parent: 1},
		{block: 3, parent: 2},
		{block: 4, parent: 2},
		{block: 5, parent: 3},
		{block: 6, parent: 5},
		{block: 7, parent: 1},
		{block: 8, parent: 6},
	}
	for _, relation := range relations {
		var parent *externalapi.DomainHash
		if relation.parent != 0 {
			parent = hash(relation.parent)
		}
		err := builder.AddBlock(hash(relation.block), parent)
		if err != nil {
			t.Fatalf("TestCountSubtreesAndPropagateInterval: AddBlock: %s", err)
		}
	}

	context := newReindexContext(store, 16, nil)
	err := context.countSubtrees(hash(1))
	if err != nil {
		t.Fatalf("TestCountSubtreesAndPropagateInterval: countSubtrees: %s", err)
	}

	expectedSizes := map[uint64]uint64{1: 8, 2: 6, 3: 4, 4: 1, 5: 3, 6: 2, 7: 1, 8: 1}
	if len(context.subtreeSizes) != len(expectedSizes) {
		t.Fatalf("TestCountSubtreesAndPropagateInterval: expected %d subtree sizes, got %d",
			len(expectedSizes), len(context.subtreeSizes))
	}
	for block, expectedSize := range expectedSizes {
		size := context.subtreeSizes[*hash(block)]
		if size != expectedSize {
			t.Fatalf("TestCountSubtreesAndPropagateInterval: unexpected subtree size of %d. "+
				"Want: %d, got: %d", block, expectedSize, size)
		}
	}

	err = store.SetInterval(hash(1), newReachabilityInterval(1, 8))
	if err != nil {
		t.Fatalf("TestCountSubtreesAndPropagateInterval: SetInterval: %s", err)
	}
	err = context.propagateInterval(hash(1))
	if err != nil {
		t.Fatalf("TestCountSubtreesAndPropagateInterval: propagateInterval: %s", err)
	}

	expectedIntervals := map[uint64]*model.ReachabilityInterval{
		1: newReachabilityInterval(1, 8),
		2: newReachabilityInterval(1, 6),
		3: newReachabilityInterval(1, 4),
		4: newReachabilityInterval(5, 5),
		5: newReachabilityInterval(1, 3),
		6: newReachabilityInterval(1, 2),
		7: newReachabilityInterval(7, 7),
		8: newReachabilityInterval(1, 1),
	}
	for block, expectedInterval := range expectedIntervals {
		interval, err := store.Interval(hash(block))
		if err != nil {
			t.Fatalf("TestCountSubtreesAndPropagateInterval: Interval: %s", err)
		}
		if !interval.Equal(expectedInterval) {
			t.Fatalf("TestCountSubtreesAndPropagateInterval: unexpected interval of %d. "+
				"Want: %s, got: %s", block, expectedInterval, interval)
		}
	}

	manager := New(DefaultReindexDepth, DefaultReindexSlack, nil)
	err = manager.ValidateIntervals(store, hash(1))
	if err != nil {
		t.Fatalf("TestCountSubtreesAndPropagateInterval: ValidateIntervals: %s", err)
	}
}

func TestCountSubtreesOfDeepChain(t *testing.T) {
	const chainLength = 100_000

	store := reachabilitydatastore.NewMemoryStore()
	builder := testutils.NewStoreBuilder(store)
	err := builder.AddBlock(hash(1), nil)
	if err != nil {
		t.Fatalf("TestCountSubtreesOfDeepChain: AddBlock: %s", err)
	}
	for i := uint64(2); i <= chainLength; i++ {
		err := builder.AddBlock(hash(i), hash(i-1))
		if err != nil {
			t.Fatalf("TestCountSubtreesOfDeepChain: AddBlock: %s", err)
		}
	}

	context := newReindexContext(store, DefaultReindexSlack, nil)
	err = context.countSubtrees(hash(1))
	if err != nil {
		t.Fatalf("TestCountSubtreesOfDeepChain: countSubtrees: %s", err)
	}
	if context.subtreeSizes[*hash(1)] != chainLength {
		t.Fatalf("TestCountSubtreesOfDeepChain: unexpected subtree size. Want: %d, got: %d",
			chainLength, context.subtreeSizes[*hash(1)])
	}
	if context.subtreeSizes[*hash(chainLength/2)] != chainLength/2+1 {
		t.Fatalf("TestCountSubtreesOfDeepChain: unexpected subtree size of the middle block. Want: %d, got: %d",
			chainLength/2+1, context.subtreeSizes[*hash(chainLength/2)])
	}
}
