package reachabilitymanager_test

import (
	"io/ioutil"
	"math/rand"
	"os"
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/database"
	"github.com/kaspanet/reachability/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/kaspanet/reachability/domain/consensus/utils/testutils"
	"github.com/kaspanet/reachability/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

const testPrefix = 3

func hash(word uint64) *externalapi.DomainHash {
	return externalapi.NewDomainHashFromUint64(word)
}

// storeFactory creates a writable store. commit makes the writes
// durable, and returns a reader over them.
type storeFactory func(t *testing.T, testName string) (
	store model.ReachabilityStore, commit func() model.ReachabilityStoreReader, teardown func())

func memoryStoreFactory(*testing.T, string) (model.ReachabilityStore, func() model.ReachabilityStoreReader, func()) {
	store := reachabilitydatastore.NewMemoryStore()
	return store, func() model.ReachabilityStoreReader { return store }, func() {}
}

func levelDBStoreFactory(t *testing.T, testName string) (
	model.ReachabilityStore, func() model.ReachabilityStoreReader, func()) {

	path, err := ioutil.TempDir("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir: %s", testName, err)
	}
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB: %s", testName, err)
	}
	dbManager := database.New(db)

	// A small cache makes most reads reach the database
	dataStore, err := reachabilitydatastore.New(dbManager, testPrefix, 16)
	if err != nil {
		t.Fatalf("%s: reachabilitydatastore.New: %s", testName, err)
	}
	stagingArea := model.NewStagingArea()
	view := &stagingView{ReachabilityStore: dataStore.Staging(stagingArea)}

	commit := func() model.ReachabilityStoreReader {
		dbTx, err := dbManager.Begin()
		if err != nil {
			t.Fatalf("%s: Begin: %s", testName, err)
		}
		err = stagingArea.Commit(dbTx)
		if err != nil {
			t.Fatalf("%s: Commit: %s", testName, err)
		}
		err = dbTx.Commit()
		if err != nil {
			t.Fatalf("%s: Commit: %s", testName, err)
		}
		dataStore.ClearCache()

		stagingArea = model.NewStagingArea()
		view.ReachabilityStore = dataStore.Staging(stagingArea)
		return dataStore.Reader()
	}
	teardown := func() {
		err := db.Close()
		if err != nil {
			t.Fatalf("%s: Close: %s", testName, err)
		}
		_ = os.RemoveAll(path)
	}
	return view, commit, teardown
}

// stagingView keeps a single store handle valid across commits, each of
// which needs a fresh staging area
type stagingView struct {
	model.ReachabilityStore
}

func forAllStores(t *testing.T, testFunc func(t *testing.T, factory storeFactory)) {
	factories := map[string]storeFactory{
		"memory":  memoryStoreFactory,
		"leveldb": levelDBStoreFactory,
	}
	for name, factory := range factories {
		factory := factory
		t.Run(name, func(t *testing.T) {
			testFunc(t, factory)
		})
	}
}

// addRandomBlocks adds blockCount blocks to dag. Every block picks up to
// maxParents distinct parents among the last window blocks of blocks.
// The new blocks are appended to blocks, which is returned.
func addRandomBlocks(t *testing.T, testName string, dag *testutils.DAGBuilder, rng *rand.Rand,
	blocks []*externalapi.DomainHash, firstWord uint64, blockCount, window, maxParents int) []*externalapi.DomainHash {

	for i := 0; i < blockCount; i++ {
		candidates := blocks
		if len(candidates) > window {
			candidates = candidates[len(candidates)-window:]
		}
		parentCount := 1 + rng.Intn(maxParents)
		if parentCount > len(candidates) {
			parentCount = len(candidates)
		}
		parents := make([]*externalapi.DomainHash, parentCount)
		for j, index := range rng.Perm(len(candidates))[:parentCount] {
			parents[j] = candidates[index]
		}

		blockHash := hash(firstWord + uint64(i))
		err := dag.AddBlock(testutils.DAGBlock{Hash: blockHash, Parents: parents})
		if err != nil {
			t.Fatalf("%s: AddBlock: %+v", testName, err)
		}
		blocks = append(blocks, blockHash)
	}
	return blocks
}

// checkDAGReachability compares every pair of blocks against the past
// sets computed by traversing the DAG relations
func checkDAGReachability(t *testing.T, testName string, manager model.ReachabilityManager,
	store model.ReachabilityStoreReader, dag *testutils.DAGBuilder, blocks []*externalapi.DomainHash) {

	closure := dag.TransitiveClosure()
	for _, descendant := range blocks {
		past := closure[*descendant]
		for _, ancestor := range blocks {
			isAncestor, err := manager.IsDAGAncestorOf(store, ancestor, descendant)
			if err != nil {
				t.Fatalf("%s: IsDAGAncestorOf: %+v", testName, err)
			}
			if isAncestor != past.Contains(ancestor) {
				t.Fatalf("%s: IsDAGAncestorOf(%s, %s): want: %t, got: %t",
					testName, ancestor, descendant, past.Contains(ancestor), isAncestor)
			}

			if ancestor.Equal(descendant) || !isAncestor {
				continue
			}
			isReverseAncestor, err := manager.IsDAGAncestorOf(store, descendant, ancestor)
			if err != nil {
				t.Fatalf("%s: IsDAGAncestorOf: %+v", testName, err)
			}
			if isReverseAncestor {
				t.Fatalf("%s: %s and %s are each in the past of the other", testName, ancestor, descendant)
			}
		}
	}
}

// checkChainReachability compares every pair of blocks against the
// reachability tree subtrees
func checkChainReachability(t *testing.T, testName string, manager model.ReachabilityManager,
	store model.ReachabilityStoreReader, blocks []*externalapi.DomainHash) {

	for _, ancestor := range blocks {
		subtree, err := testutils.Subtree(store, ancestor)
		if err != nil {
			t.Fatalf("%s: Subtree: %+v", testName, err)
		}
		for _, descendant := range blocks {
			isAncestor, err := manager.IsChainAncestorOf(store, ancestor, descendant)
			if err != nil {
				t.Fatalf("%s: IsChainAncestorOf: %+v", testName, err)
			}
			if isAncestor != subtree.Contains(descendant) {
				t.Fatalf("%s: IsChainAncestorOf(%s, %s): want: %t, got: %t",
					testName, ancestor, descendant, subtree.Contains(descendant), isAncestor)
			}

			isStrictAncestor, err := manager.IsStrictChainAncestorOf(store, ancestor, descendant)
			if err != nil {
				t.Fatalf("%s: IsStrictChainAncestorOf: %+v", testName, err)
			}
			if isStrictAncestor != (isAncestor && !ancestor.Equal(descendant)) {
				t.Fatalf("%s: IsStrictChainAncestorOf(%s, %s): unexpected result %t",
					testName, ancestor, descendant, isStrictAncestor)
			}
		}
	}
}

func validate(t *testing.T, testName string, manager model.ReachabilityManager,
	store model.ReachabilityStoreReader, origin *externalapi.DomainHash) {

	err := manager.ValidateIntervals(store, origin)
	if err != nil {
		t.Fatalf("%s: ValidateIntervals: %+v", testName, err)
	}
	err = testutils.ValidateRelations(store, origin)
	if err != nil {
		t.Fatalf("%s: ValidateRelations: %+v", testName, err)
	}
}

func TestReachabilityIsDAGAncestorOf(t *testing.T) {
	forAllStores(t, func(t *testing.T, factory storeFactory) {
		const testName = "TestReachabilityIsDAGAncestorOf"
		store, commit, teardown := factory(t, testName)
		defer teardown()

		manager := reachabilitymanager.New(reachabilitymanager.DefaultReindexDepth,
			reachabilitymanager.DefaultReindexSlack, nil)
		dag := testutils.NewDAGBuilder(manager, store)
		err := dag.Init()
		if err != nil {
			t.Fatalf("%s: Init: %+v", testName, err)
		}
		origin := dag.Origin()

		addBlock := func(word uint64, parents ...*externalapi.DomainHash) *externalapi.DomainHash {
			err := dag.AddBlock(testutils.DAGBlock{Hash: hash(word), Parents: parents})
			if err != nil {
				t.Fatalf("%s: AddBlock: %+v", testName, err)
			}
			return hash(word)
		}

		blockHashA := addBlock(1, origin)
		blockHashB := addBlock(2, blockHashA)
		blockHashC := addBlock(3, origin)
		blockHashD := addBlock(4, blockHashA, blockHashC)
		sharedBlockHash := addBlock(5, blockHashB, blockHashD)

		reader := commit()

		tests := []struct {
			firstBlockHash  *externalapi.DomainHash
			secondBlockHash *externalapi.DomainHash
			expectedResult  bool
		}{
			{firstBlockHash: blockHashA, secondBlockHash: blockHashA, expectedResult: true},
			{firstBlockHash: origin, secondBlockHash: blockHashA, expectedResult: true},
			{firstBlockHash: origin, secondBlockHash: sharedBlockHash, expectedResult: true},
			{firstBlockHash: blockHashC, secondBlockHash: blockHashD, expectedResult: true},
			{firstBlockHash: blockHashA, secondBlockHash: blockHashD, expectedResult: true},
			{firstBlockHash: blockHashC, secondBlockHash: sharedBlockHash, expectedResult: true},
			{firstBlockHash: blockHashD, secondBlockHash: blockHashA, expectedResult: false},
			{firstBlockHash: blockHashB, secondBlockHash: blockHashC, expectedResult: false},
			{firstBlockHash: blockHashC, secondBlockHash: blockHashB, expectedResult: false},
			{firstBlockHash: blockHashD, secondBlockHash: blockHashB, expectedResult: false},
			{firstBlockHash: sharedBlockHash, secondBlockHash: origin, expectedResult: false},
		}

		for _, test := range tests {
			isDAGAncestorOf, err := manager.IsDAGAncestorOf(reader, test.firstBlockHash, test.secondBlockHash)
			if err != nil {
				t.Fatalf("%s: IsDAGAncestorOf: %+v", testName, err)
			}
			if isDAGAncestorOf != test.expectedResult {
				t.Fatalf("%s: IsDAGAncestorOf(%s, %s): want: %t, got: %t", testName,
					test.firstBlockHash, test.secondBlockHash, test.expectedResult, isDAGAncestorOf)
			}
		}

		isAncestorOfAny, err := manager.IsDAGAncestorOfAny(reader, blockHashC,
			[]*externalapi.DomainHash{blockHashB, blockHashD})
		if err != nil {
			t.Fatalf("%s: IsDAGAncestorOfAny: %+v", testName, err)
		}
		if !isAncestorOfAny {
			t.Fatalf("%s: expected C to be in the past of D", testName)
		}
		isAncestorOfAny, err = manager.IsDAGAncestorOfAny(reader, blockHashB,
			[]*externalapi.DomainHash{blockHashC, blockHashD})
		if err != nil {
			t.Fatalf("%s: IsDAGAncestorOfAny: %+v", testName, err)
		}
		if isAncestorOfAny {
			t.Fatalf("%s: B is unexpectedly in the past of C or D", testName)
		}

		isAnyAncestorOf, err := manager.IsAnyDAGAncestorOf(reader,
			[]*externalapi.DomainHash{blockHashB, blockHashC}, blockHashD)
		if err != nil {
			t.Fatalf("%s: IsAnyDAGAncestorOf: %+v", testName, err)
		}
		if !isAnyAncestorOf {
			t.Fatalf("%s: expected C to be in the past of D", testName)
		}
		isAnyAncestorOf, err = manager.IsAnyDAGAncestorOf(reader, nil, blockHashD)
		if err != nil {
			t.Fatalf("%s: IsAnyDAGAncestorOf: %+v", testName, err)
		}
		if isAnyAncestorOf {
			t.Fatalf("%s: an empty set is unexpectedly in the past of D", testName)
		}

	})
}

func TestFindNextChainAncestor(t *testing.T) {
	const testName = "TestFindNextChainAncestor"
	store := reachabilitydatastore.NewMemoryStore()
	manager := reachabilitymanager.New(reachabilitymanager.DefaultReindexDepth,
		reachabilitymanager.DefaultReindexSlack, nil)
	tree := testutils.NewTreeBuilder(manager, store)
	err := tree.InitWithParams(hash(1), &model.ReachabilityInterval{Start: 1, End: 15})
	if err != nil {
		t.Fatalf("%s: InitWithParams: %+v", testName, err)
	}

	// 1 <- 2 <- 3 <- 5 <- 6 <- {8, 9, 10, 11}
	//      2 <- 4
	// 1 <- 7
	relations := []struct {
		block, parent uint64
	}{
		{block: 2, parent: 1},
		{block: 3, parent: 2},
		{block: 4, parent: 2},
		{block: 5, parent: 3},
		{block: 6, parent: 5},
		{block: 7, parent: 1},
		{block: 8, parent: 6},
		{block: 9, parent: 6},
		{block: 10, parent: 6},
		{block: 11, parent: 6},
	}
	blocks := []*externalapi.DomainHash{hash(1)}
	for _, relation := range relations {
		err := tree.AddBlock(hash(relation.block), hash(relation.parent))
		if err != nil {
			t.Fatalf("%s: AddBlock: %+v", testName, err)
		}
		blocks = append(blocks, hash(relation.block))
	}
	validate(t, testName, manager, store, hash(1))
	checkChainReachability(t, testName, manager, store, blocks)

	tests := []struct {
		descendant, ancestor uint64
		expectedNext         uint64
		expectedError        error
	}{
		{descendant: 10, ancestor: 2, expectedNext: 3},
		{descendant: 10, ancestor: 1, expectedNext: 2},
		{descendant: 10, ancestor: 6, expectedNext: 10},
		{descendant: 4, ancestor: 1, expectedNext: 2},
		{descendant: 10, ancestor: 10, expectedError: ruleerrors.ErrBadQuery},
		{descendant: 10, ancestor: 7, expectedError: ruleerrors.ErrBadQuery},
		{descendant: 2, ancestor: 10, expectedError: ruleerrors.ErrBadQuery},
	}
	for _, test := range tests {
		next, err := manager.FindNextChainAncestor(store, hash(test.descendant), hash(test.ancestor))
		if test.expectedError != nil {
			if !errors.Is(err, test.expectedError) {
				t.Fatalf("%s: FindNextChainAncestor(%d, %d): expected %s, got: %v",
					testName, test.descendant, test.ancestor, test.expectedError, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: FindNextChainAncestor: %+v", testName, err)
		}
		if !next.Equal(hash(test.expectedNext)) {
			t.Fatalf("%s: FindNextChainAncestor(%d, %d): want: %d, got: %s",
				testName, test.descendant, test.ancestor, test.expectedNext, next)
		}
	}

	treeString, err := manager.TreeString(store, hash(1))
	if err != nil {
		t.Fatalf("%s: TreeString: %+v", testName, err)
	}
	if treeString == "" {
		t.Fatalf("%s: TreeString returned an empty string", testName)
	}
}

func TestReindexOutOfCapacity(t *testing.T) {
	const testName = "TestReindexOutOfCapacity"
	store := reachabilitydatastore.NewMemoryStore()
	manager := reachabilitymanager.New(reachabilitymanager.DefaultReindexDepth,
		reachabilitymanager.DefaultReindexSlack, nil)
	tree := testutils.NewTreeBuilder(manager, store)
	err := tree.InitWithParams(hash(1), &model.ReachabilityInterval{Start: 1, End: 3})
	if err != nil {
		t.Fatalf("%s: InitWithParams: %+v", testName, err)
	}

	// The root can hold a chain of 3 blocks, itself included
	for block := uint64(2); block <= 3; block++ {
		err := tree.AddBlock(hash(block), hash(block-1))
		if err != nil {
			t.Fatalf("%s: AddBlock: %+v", testName, err)
		}
	}
	validate(t, testName, manager, store, hash(1))

	err = tree.AddBlock(hash(4), hash(3))
	if !errors.Is(err, ruleerrors.ErrDataOverflow) {
		t.Fatalf("%s: expected ErrDataOverflow, got: %v", testName, err)
	}

	// The failed insertion must leave nothing behind
	has, err := store.Has(hash(4))
	if err != nil {
		t.Fatalf("%s: Has: %+v", testName, err)
	}
	if has {
		t.Fatalf("%s: block 4 is unexpectedly in the store", testName)
	}
	children, err := store.Children(hash(3))
	if err != nil {
		t.Fatalf("%s: Children: %+v", testName, err)
	}
	if len(children) != 0 {
		t.Fatalf("%s: expected block 3 to have no children, got: %v", testName, children)
	}
	validate(t, testName, manager, store, hash(1))

	// The tree is still usable once the failure is handled
	err = tree.AddBlock(hash(5), hash(1))
	if !errors.Is(err, ruleerrors.ErrDataOverflow) {
		t.Fatalf("%s: expected ErrDataOverflow for a second child of the root, got: %v", testName, err)
	}
	validate(t, testName, manager, store, hash(1))
}

func TestReachabilityOfRandomDAGs(t *testing.T) {
	tests := []struct {
		name         string
		reindexDepth uint64
		reindexSlack uint64
		blockCount   int
		window       int
		maxParents   int
	}{
		{
			name:         "default parameters",
			reindexDepth: reachabilitymanager.DefaultReindexDepth,
			reindexSlack: reachabilitymanager.DefaultReindexSlack,
			blockCount:   250,
			window:       8,
			maxParents:   3,
		},
		{
			name:         "short reindex window",
			reindexDepth: 10,
			reindexSlack: 16,
			blockCount:   250,
			window:       12,
			maxParents:   4,
		},
		{
			name:         "wide DAG",
			reindexDepth: 20,
			reindexSlack: 1 << 8,
			blockCount:   200,
			window:       30,
			maxParents:   6,
		},
	}

	forAllStores(t, func(t *testing.T, factory storeFactory) {
		for i, test := range tests {
			i, test := i, test
			t.Run(test.name, func(t *testing.T) {
				testName := "TestReachabilityOfRandomDAGs: " + test.name
				store, commit, teardown := factory(t, "TestReachabilityOfRandomDAGs")
				defer teardown()

				manager := reachabilitymanager.New(test.reindexDepth, test.reindexSlack, nil)
				dag := testutils.NewDAGBuilder(manager, store)
				err := dag.Init()
				if err != nil {
					t.Fatalf("%s: Init: %+v", testName, err)
				}

				rng := rand.New(rand.NewSource(int64(i)))
				blocks := addRandomBlocks(t, testName, dag, rng, []*externalapi.DomainHash{dag.Origin()},
					1, test.blockCount, test.window, test.maxParents)

				reader := commit()
				validate(t, testName, manager, reader, dag.Origin())
				checkDAGReachability(t, testName, manager, reader, dag, blocks)
				checkChainReachability(t, testName, manager, reader, blocks)
			})
		}
	})
}

func TestReachabilityAfterDeletion(t *testing.T) {
	forAllStores(t, func(t *testing.T, factory storeFactory) {
		const testName = "TestReachabilityAfterDeletion"
		store, commit, teardown := factory(t, testName)
		defer teardown()

		manager := reachabilitymanager.New(20, 1<<6, nil)
		dag := testutils.NewDAGBuilder(manager, store)
		err := dag.Init()
		if err != nil {
			t.Fatalf("%s: Init: %+v", testName, err)
		}

		rng := rand.New(rand.NewSource(42))
		blocks := addRandomBlocks(t, testName, dag, rng, []*externalapi.DomainHash{dag.Origin()},
			1, 200, 10, 3)

		// Prune the oldest blocks, as a node would
		const deletedCount = 80
		for i, blockHash := range blocks[1 : deletedCount+1] {
			err := dag.DeleteBlock(blockHash)
			if err != nil {
				t.Fatalf("%s: DeleteBlock(%s): %+v", testName, blockHash, err)
			}
			if i%10 == 0 {
				validate(t, testName, manager, store, dag.Origin())
			}

			has, err := store.Has(blockHash)
			if err != nil {
				t.Fatalf("%s: Has: %+v", testName, err)
			}
			if has {
				t.Fatalf("%s: %s was not deleted", testName, blockHash)
			}
		}
		remaining := append([]*externalapi.DomainHash{dag.Origin()}, blocks[deletedCount+1:]...)

		reader := commit()
		validate(t, testName, manager, reader, dag.Origin())
		checkDAGReachability(t, testName, manager, reader, dag, remaining)
		checkChainReachability(t, testName, manager, reader, remaining)

		// The DAG keeps growing on top of what's left
		remaining = addRandomBlocks(t, testName, dag, rng, remaining, 1000, 100, 10, 3)
		reader = commit()
		validate(t, testName, manager, reader, dag.Origin())
		checkDAGReachability(t, testName, manager, reader, dag, remaining)
	})
}

func TestDeleteBlockErrors(t *testing.T) {
	const testName = "TestDeleteBlockErrors"
	store := reachabilitydatastore.NewMemoryStore()
	manager := reachabilitymanager.New(reachabilitymanager.DefaultReindexDepth,
		reachabilitymanager.DefaultReindexSlack, nil)
	dag := testutils.NewDAGBuilder(manager, store)
	err := dag.Init()
	if err != nil {
		t.Fatalf("%s: Init: %+v", testName, err)
	}

	err = manager.DeleteBlock(store, dag.Origin(), nil)
	if !errors.Is(err, ruleerrors.ErrBadQuery) {
		t.Fatalf("%s: expected ErrBadQuery when deleting the origin, got: %v", testName, err)
	}

	err = dag.AddBlock(testutils.DAGBlock{Hash: hash(1), Parents: []*externalapi.DomainHash{dag.Origin()}})
	if err != nil {
		t.Fatalf("%s: AddBlock: %+v", testName, err)
	}
	err = manager.DeleteBlock(store, hash(2), nil)
	if !database.IsNotFoundError(err) {
		t.Fatalf("%s: expected NotFound when deleting a missing block, got: %v", testName, err)
	}

	// A merge set the block was never added with is inconsistent
	err = dag.AddBlock(testutils.DAGBlock{Hash: hash(3), Parents: []*externalapi.DomainHash{dag.Origin()}})
	if err != nil {
		t.Fatalf("%s: AddBlock: %+v", testName, err)
	}
	err = manager.DeleteBlock(store, hash(1), []*externalapi.DomainHash{hash(3)})
	if !errors.Is(err, ruleerrors.ErrDataInconsistency) {
		t.Fatalf("%s: expected ErrDataInconsistency, got: %v", testName, err)
	}
}

func TestQueriesArePure(t *testing.T) {
	const testName = "TestQueriesArePure"
	store := reachabilitydatastore.NewMemoryStore()
	manager := reachabilitymanager.New(10, 8, nil)
	dag := testutils.NewDAGBuilder(manager, store)
	err := dag.Init()
	if err != nil {
		t.Fatalf("%s: Init: %+v", testName, err)
	}
	rng := rand.New(rand.NewSource(7))
	blocks := addRandomBlocks(t, testName, dag, rng, []*externalapi.DomainHash{dag.Origin()}, 1, 60, 6, 3)

	snapshot := func() map[externalapi.DomainHash]*model.ReachabilityData {
		result := make(map[externalapi.DomainHash]*model.ReachabilityData, len(blocks))
		for _, blockHash := range blocks {
			data, err := store.ReachabilityData(blockHash)
			if err != nil {
				t.Fatalf("%s: ReachabilityData: %+v", testName, err)
			}
			result[*blockHash] = data
		}
		return result
	}

	before := snapshot()
	for round := 0; round < 2; round++ {
		checkDAGReachability(t, testName, manager, store, dag, blocks)
	}
	after := snapshot()
	for blockHash, data := range before {
		if !data.Equal(after[blockHash]) {
			t.Fatalf("%s: the data of %s changed during queries", testName, &blockHash)
		}
	}
}
