package dagtopologymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

// RemoveBlock detaches blockHash from the DAG. Each child of blockHash
// inherits the parents of blockHash it does not already reach through its
// other parents. The merge set of blockHash is returned so that the caller
// can remove the block from reachability.
//
// Reachability data is read but not modified, so blockHash must still be
// present in it.
func (dtm *dagTopologyManager) RemoveBlock(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	blockRelations, err := dtm.blockRelationStore.BlockRelation(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	selectedParent, err := dtm.reachabilityStore(stagingArea).Parent(blockHash)
	if err != nil {
		return nil, err
	}
	mergeSet, err := dtm.MergeSetWithoutSelectedParent(stagingArea, selectedParent, blockRelations.Parents)
	if err != nil {
		return nil, err
	}

	for _, child := range blockRelations.Children {
		childParents, err := dtm.Parents(stagingArea, child)
		if err != nil {
			return nil, err
		}
		otherParents := make([]*externalapi.DomainHash, 0, len(childParents))
		for _, childParent := range childParents {
			if !childParent.Equal(blockHash) {
				otherParents = append(otherParents, childParent)
			}
		}

		inherited := make([]*externalapi.DomainHash, 0, len(blockRelations.Parents))
		for _, parent := range blockRelations.Parents {
			isReachable, err := dtm.IsAncestorOfAny(stagingArea, parent, otherParents)
			if err != nil {
				return nil, err
			}
			if !isReachable {
				inherited = append(inherited, parent)
			}
		}

		err = dtm.blockRelationStore.StageReplaceParent(stagingArea, child, blockHash, inherited)
		if err != nil {
			return nil, err
		}
	}

	err = dtm.blockRelationStore.Delete(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}

	err = dtm.removeFromTips(stagingArea, blockHash, blockRelations.Parents)
	if err != nil {
		return nil, err
	}
	return mergeSet, nil
}

// removeFromTips drops blockHash from the tips, replacing it with those of
// its parents that were left without children.
func (dtm *dagTopologyManager) removeFromTips(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error {

	tips, err := dtm.tipsStore.Tips(stagingArea)
	if err != nil {
		return err
	}
	if !isHashInSlice(blockHash, tips) {
		return nil
	}

	newTips := make([]*externalapi.DomainHash, 0, len(tips)+len(parents))
	for _, tip := range tips {
		if !tip.Equal(blockHash) {
			newTips = append(newTips, tip)
		}
	}
	for _, parent := range parents {
		children, err := dtm.Children(stagingArea, parent)
		if err != nil {
			return err
		}
		if len(children) == 0 && !isHashInSlice(parent, newTips) {
			newTips = append(newTips, parent)
		}
	}
	dtm.tipsStore.Stage(stagingArea, newTips)
	return nil
}
