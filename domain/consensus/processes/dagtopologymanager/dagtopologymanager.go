package dagtopologymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// dagTopologyManager exposes methods for querying relationships
// between blocks in the DAG
type dagTopologyManager struct {
	reachabilityManager   model.ReachabilityManager
	reachabilityDataStore model.ReachabilityDataStore
	blockRelationStore    model.BlockRelationStore
	tipsStore             model.TipsStore
}

// New instantiates a new DAGTopologyManager
func New(
	reachabilityManager model.ReachabilityManager,
	reachabilityDataStore model.ReachabilityDataStore,
	blockRelationStore model.BlockRelationStore,
	tipsStore model.TipsStore) model.DAGTopologyManager {

	return &dagTopologyManager{
		reachabilityManager:   reachabilityManager,
		reachabilityDataStore: reachabilityDataStore,
		blockRelationStore:    blockRelationStore,
		tipsStore:             tipsStore,
	}
}

// Parents returns the DAG parents of the given blockHash
func (dtm *dagTopologyManager) Parents(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	blockRelations, err := dtm.blockRelationStore.BlockRelation(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return blockRelations.Parents, nil
}

// Children returns the DAG children of the given blockHash
func (dtm *dagTopologyManager) Children(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	blockRelations, err := dtm.blockRelationStore.BlockRelation(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return blockRelations.Children, nil
}

// IsParentOf returns true if blockHashA is a direct DAG parent of blockHashB
func (dtm *dagTopologyManager) IsParentOf(stagingArea *model.StagingArea,
	blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {

	blockRelations, err := dtm.blockRelationStore.BlockRelation(stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	return isHashInSlice(blockHashA, blockRelations.Parents), nil
}

// IsChildOf returns true if blockHashA is a direct DAG child of blockHashB
func (dtm *dagTopologyManager) IsChildOf(stagingArea *model.StagingArea,
	blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {

	blockRelations, err := dtm.blockRelationStore.BlockRelation(stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	return isHashInSlice(blockHashA, blockRelations.Children), nil
}

// IsAncestorOf returns true if blockHashA is a DAG ancestor of blockHashB.
// Every block is considered an ancestor of itself.
func (dtm *dagTopologyManager) IsAncestorOf(stagingArea *model.StagingArea,
	blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {

	return dtm.reachabilityManager.IsDAGAncestorOf(dtm.reachabilityStore(stagingArea), blockHashA, blockHashB)
}

// IsAncestorOfAny returns true if `blockHash` is an ancestor of at least one of `potentialDescendants`
func (dtm *dagTopologyManager) IsAncestorOfAny(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	potentialDescendants []*externalapi.DomainHash) (bool, error) {

	return dtm.reachabilityManager.IsDAGAncestorOfAny(dtm.reachabilityStore(stagingArea), blockHash,
		potentialDescendants)
}

// IsDescendantOf returns true if blockHashA is a DAG descendant of blockHashB
func (dtm *dagTopologyManager) IsDescendantOf(stagingArea *model.StagingArea,
	blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {

	return dtm.reachabilityManager.IsDAGAncestorOf(dtm.reachabilityStore(stagingArea), blockHashB, blockHashA)
}

// IsInSelectedParentChainOf returns true if blockHashA is in the selected parent chain of blockHashB
func (dtm *dagTopologyManager) IsInSelectedParentChainOf(stagingArea *model.StagingArea,
	blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {

	return dtm.reachabilityManager.IsChainAncestorOf(dtm.reachabilityStore(stagingArea), blockHashA, blockHashB)
}

// SelectedParent returns the parent with the greatest tree height. Ties
// go to the greater hash.
func (dtm *dagTopologyManager) SelectedParent(stagingArea *model.StagingArea,
	parents []*externalapi.DomainHash) (*externalapi.DomainHash, error) {

	if len(parents) == 0 {
		return nil, errors.New("cannot select a parent out of an empty set")
	}

	store := dtm.reachabilityStore(stagingArea)
	selectedParent := parents[0]
	selectedParentHeight, err := store.Height(selectedParent)
	if err != nil {
		return nil, err
	}
	for _, parent := range parents[1:] {
		height, err := store.Height(parent)
		if err != nil {
			return nil, err
		}
		if height > selectedParentHeight ||
			(height == selectedParentHeight && selectedParent.Less(parent)) {
			selectedParent = parent
			selectedParentHeight = height
		}
	}
	return selectedParent, nil
}

// Tips returns the blocks that currently have no children
func (dtm *dagTopologyManager) Tips(stagingArea *model.StagingArea) ([]*externalapi.DomainHash, error) {
	return dtm.tipsStore.Tips(stagingArea)
}

// SetParents stages the relations of a new block and makes it a tip in
// place of its parents.
func (dtm *dagTopologyManager) SetParents(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	parentHashes []*externalapi.DomainHash) error {

	err := dtm.blockRelationStore.StageBlockRelation(stagingArea, blockHash, parentHashes)
	if err != nil {
		return err
	}

	hasTips, err := dtm.tipsStore.HasTips(stagingArea)
	if err != nil {
		return err
	}
	var tips []*externalapi.DomainHash
	if hasTips {
		tips, err = dtm.tipsStore.Tips(stagingArea)
		if err != nil {
			return err
		}
	}

	newTips := make([]*externalapi.DomainHash, 0, len(tips)+1)
	for _, tip := range tips {
		if !isHashInSlice(tip, parentHashes) {
			newTips = append(newTips, tip)
		}
	}
	newTips = append(newTips, blockHash)
	dtm.tipsStore.Stage(stagingArea, newTips)
	return nil
}

func (dtm *dagTopologyManager) reachabilityStore(stagingArea *model.StagingArea) model.ReachabilityStore {
	return dtm.reachabilityDataStore.Staging(stagingArea)
}

func isHashInSlice(hash *externalapi.DomainHash, hashes []*externalapi.DomainHash) bool {
	for _, h := range hashes {
		if h.Equal(hash) {
			return true
		}
	}
	return false
}
