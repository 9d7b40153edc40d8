package testutils

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/utils/hashset"
	"github.com/pkg/errors"
)

// StoreBuilder inserts raw tree data into a store, bypassing interval
// allocation. Blocks are inserted with empty intervals.
type StoreBuilder struct {
	store model.ReachabilityStore
}

// NewStoreBuilder returns a StoreBuilder over store
func NewStoreBuilder(store model.ReachabilityStore) *StoreBuilder {
	return &StoreBuilder{store: store}
}

// AddBlock inserts blockHash as a child of parent. A nil parent makes
// blockHash a root.
func (sb *StoreBuilder) AddBlock(blockHash, parent *externalapi.DomainHash) error {
	height := uint64(0)
	if parent != nil {
		parentHeight, err := sb.store.AppendChild(parent, blockHash)
		if err != nil {
			return err
		}
		height = parentHeight + 1
	}
	return sb.store.Insert(blockHash, parent, &model.ReachabilityInterval{Start: 1, End: 0}, height)
}

// TreeBuilder grows a reachability tree through a ReachabilityManager,
// hinting every new block as the selected tip.
type TreeBuilder struct {
	manager model.ReachabilityManager
	store   model.ReachabilityStore
}

// NewTreeBuilder returns a TreeBuilder over store
func NewTreeBuilder(manager model.ReachabilityManager, store model.ReachabilityStore) *TreeBuilder {
	return &TreeBuilder{manager: manager, store: store}
}

// Init initializes the tree with the origin
func (tb *TreeBuilder) Init() error {
	return tb.manager.Init(tb.store)
}

// InitWithParams initializes the tree with a custom root and capacity
func (tb *TreeBuilder) InitWithParams(origin *externalapi.DomainHash, capacity *model.ReachabilityInterval) error {
	return tb.store.Init(origin, capacity)
}

// AddBlock adds blockHash as a tree child of parent
func (tb *TreeBuilder) AddBlock(blockHash, parent *externalapi.DomainHash) error {
	err := tb.manager.AddTreeBlock(tb.store, blockHash, parent)
	if err != nil {
		return err
	}
	return tb.manager.HintVirtualSelectedParent(tb.store, blockHash)
}

// DAGBlock is a block hash along with its DAG parents
type DAGBlock struct {
	Hash    *externalapi.DomainHash
	Parents []*externalapi.DomainHash
}

// DAGBuilder grows a blockDAG through a ReachabilityManager while keeping
// the DAG relations needed to compute merge sets and reference answers.
type DAGBuilder struct {
	manager model.ReachabilityManager
	store   model.ReachabilityStore
	origin  *externalapi.DomainHash

	parents  map[externalapi.DomainHash][]*externalapi.DomainHash
	children map[externalapi.DomainHash][]*externalapi.DomainHash
}

// NewDAGBuilder returns a DAGBuilder over store
func NewDAGBuilder(manager model.ReachabilityManager, store model.ReachabilityStore) *DAGBuilder {
	return &DAGBuilder{
		manager:  manager,
		store:    store,
		origin:   model.OriginHash,
		parents:  make(map[externalapi.DomainHash][]*externalapi.DomainHash),
		children: make(map[externalapi.DomainHash][]*externalapi.DomainHash),
	}
}

// Init initializes the DAG with the origin
func (db *DAGBuilder) Init() error {
	err := db.manager.Init(db.store)
	if err != nil {
		return err
	}
	db.parents[*db.origin] = nil
	return nil
}

// InitWithParams initializes the DAG with a custom root and capacity
func (db *DAGBuilder) InitWithParams(origin *externalapi.DomainHash, capacity *model.ReachabilityInterval) error {
	err := db.store.Init(origin, capacity)
	if err != nil {
		return err
	}
	db.origin = origin
	db.parents[*origin] = nil
	return nil
}

// Origin returns the root of the DAG
func (db *DAGBuilder) Origin() *externalapi.DomainHash {
	return db.origin
}

// AddBlock adds block to the DAG. Its selected parent is its highest
// parent in the reachability tree.
func (db *DAGBuilder) AddBlock(block DAGBlock) error {
	if len(block.Parents) == 0 {
		return errors.Errorf("block %s has no parents", block.Hash)
	}
	selectedParent, err := SelectedParent(db.store, block.Parents)
	if err != nil {
		return err
	}
	mergeSet, err := db.mergeSetWithoutSelectedParent(selectedParent, block.Parents)
	if err != nil {
		return err
	}

	err = db.manager.AddBlock(db.store, block.Hash, selectedParent, mergeSet)
	if err != nil {
		return err
	}
	err = db.manager.HintVirtualSelectedParent(db.store, block.Hash)
	if err != nil {
		return err
	}

	db.parents[*block.Hash] = externalapi.CloneHashes(block.Parents)
	for _, parent := range block.Parents {
		db.children[*parent] = append(db.children[*parent], block.Hash)
	}
	return nil
}

// DeleteBlock removes blockHash from the DAG. Each of its children
// inherits the parents of blockHash that are not already in the past of
// the child's other parents.
func (db *DAGBuilder) DeleteBlock(blockHash *externalapi.DomainHash) error {
	selectedParent, err := db.store.Parent(blockHash)
	if err != nil {
		return err
	}
	parents := db.parents[*blockHash]
	mergeSet, err := db.mergeSetWithoutSelectedParent(selectedParent, parents)
	if err != nil {
		return err
	}

	for _, child := range db.children[*blockHash] {
		var otherParents []*externalapi.DomainHash
		for _, childParent := range db.parents[*child] {
			if !childParent.Equal(blockHash) {
				otherParents = append(otherParents, childParent)
			}
		}
		newParents := otherParents
		for _, grandparent := range parents {
			isCovered, err := db.manager.IsDAGAncestorOfAny(db.store, grandparent, otherParents)
			if err != nil {
				return err
			}
			if !isCovered {
				newParents = append(newParents, grandparent)
				db.children[*grandparent] = append(db.children[*grandparent], child)
			}
		}
		db.parents[*child] = newParents
	}

	for _, parent := range parents {
		db.children[*parent] = removeHash(db.children[*parent], blockHash)
	}
	delete(db.parents, *blockHash)
	delete(db.children, *blockHash)

	return db.manager.DeleteBlock(db.store, blockHash, mergeSet)
}

// Parents returns the DAG parents of blockHash
func (db *DAGBuilder) Parents(blockHash *externalapi.DomainHash) []*externalapi.DomainHash {
	return db.parents[*blockHash]
}

// Blocks returns all blocks of the DAG, origin included
func (db *DAGBuilder) Blocks() []*externalapi.DomainHash {
	blocks := make([]*externalapi.DomainHash, 0, len(db.parents))
	for hash := range db.parents {
		hash := hash
		blocks = append(blocks, &hash)
	}
	return blocks
}

// InclusivePast returns blockHash and all of its DAG ancestors, computed
// by an explicit traversal of the DAG relations.
func (db *DAGBuilder) InclusivePast(blockHash *externalapi.DomainHash) hashset.HashSet {
	past := hashset.NewFromSlice(blockHash)
	queue := []*externalapi.DomainHash{blockHash}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		for _, parent := range db.parents[*current] {
			if past.Contains(parent) {
				continue
			}
			past.Add(parent)
			queue = append(queue, parent)
		}
	}
	return past
}

// TransitiveClosure returns the inclusive past of every block of the DAG
func (db *DAGBuilder) TransitiveClosure() map[externalapi.DomainHash]hashset.HashSet {
	closure := make(map[externalapi.DomainHash]hashset.HashSet, len(db.parents))
	for blockHash := range db.parents {
		blockHash := blockHash
		closure[blockHash] = db.InclusivePast(&blockHash)
	}
	return closure
}

func (db *DAGBuilder) mergeSetWithoutSelectedParent(selectedParent *externalapi.DomainHash,
	parents []*externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	mergeSet := hashset.New()
	selectedParentPast := hashset.New()
	var queue []*externalapi.DomainHash

	// visit adds candidate to the merge set unless it's in the past of
	// the selected parent
	visit := func(candidate *externalapi.DomainHash) error {
		if mergeSet.Contains(candidate) || selectedParentPast.Contains(candidate) {
			return nil
		}
		isInSelectedParentPast, err := db.manager.IsDAGAncestorOf(db.store, candidate, selectedParent)
		if err != nil {
			return err
		}
		if isInSelectedParentPast {
			selectedParentPast.Add(candidate)
			return nil
		}
		mergeSet.Add(candidate)
		queue = append(queue, candidate)
		return nil
	}

	for _, parent := range parents {
		err := visit(parent)
		if err != nil {
			return nil, err
		}
	}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		for _, parent := range db.parents[*current] {
			err := visit(parent)
			if err != nil {
				return nil, err
			}
		}
	}
	return mergeSet.ToSlice(), nil
}

// SelectedParent returns the parent with the greatest tree height, the
// greater hash winning ties.
func SelectedParent(store model.ReachabilityStoreReader,
	parents []*externalapi.DomainHash) (*externalapi.DomainHash, error) {

	var selectedParent *externalapi.DomainHash
	var selectedHeight uint64
	for _, parent := range parents {
		height, err := store.Height(parent)
		if err != nil {
			return nil, err
		}
		if selectedParent == nil || height > selectedHeight ||
			(height == selectedHeight && selectedParent.Less(parent)) {
			selectedParent = parent
			selectedHeight = height
		}
	}
	return selectedParent, nil
}

// Subtree returns root and all of its descendants in the reachability
// tree.
func Subtree(store model.ReachabilityStoreReader, root *externalapi.DomainHash) (hashset.HashSet, error) {
	subtree := hashset.NewFromSlice(root)
	queue := []*externalapi.DomainHash{root}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		children, err := store.Children(current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			subtree.Add(child)
			queue = append(queue, child)
		}
	}
	return subtree, nil
}

// ValidateRelations checks that every tree child under root points back
// to its parent and appears once, and that no stored block is detached
// from the tree.
func ValidateRelations(store model.ReachabilityStoreReader, root *externalapi.DomainHash) error {
	queue := []*externalapi.DomainHash{root}
	visited := hashset.NewFromSlice(root)
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		children, err := store.Children(current)
		if err != nil {
			return err
		}
		for _, child := range children {
			if visited.Contains(child) {
				return errors.Errorf("%s appears more than once in the tree", child)
			}
			visited.Add(child)

			parent, err := store.Parent(child)
			if err != nil {
				return err
			}
			if !parent.Equal(current) {
				return errors.Errorf("%s is a child of %s but its parent is %s", child, current, parent)
			}
			queue = append(queue, child)
		}
	}

	count, err := store.Count()
	if err != nil {
		return err
	}
	if count != len(visited) {
		return errors.Errorf("the store holds %d blocks but only %d are reachable from %s",
			count, len(visited), root)
	}
	return nil
}

func removeHash(hashes []*externalapi.DomainHash, toRemove *externalapi.DomainHash) []*externalapi.DomainHash {
	result := make([]*externalapi.DomainHash, 0, len(hashes))
	for _, hash := range hashes {
		if !hash.Equal(toRemove) {
			result = append(result, hash)
		}
	}
	return result
}
