package dagtopologymanager

import (
	"sort"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/utils/hashset"
)

// MergeSetWithoutSelectedParent returns the blocks in the past of parents
// that are not in the past of selectedParent, ordered by hash.
func (dtm *dagTopologyManager) MergeSetWithoutSelectedParent(stagingArea *model.StagingArea,
	selectedParent *externalapi.DomainHash, parents []*externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	mergeSet := hashset.New()
	selectedParentPast := hashset.New()
	queue := []*externalapi.DomainHash{}

	// visit queues candidate for processing unless it is already known, or
	// is in the past of the selected parent
	visit := func(candidate *externalapi.DomainHash) error {
		if mergeSet.Contains(candidate) || selectedParentPast.Contains(candidate) {
			return nil
		}
		isAncestorOfSelectedParent, err := dtm.IsAncestorOf(stagingArea, candidate, selectedParent)
		if err != nil {
			return err
		}
		if isAncestorOfSelectedParent {
			selectedParentPast.Add(candidate)
			return nil
		}
		mergeSet.Add(candidate)
		queue = append(queue, candidate)
		return nil
	}

	// Queueing all parents (other than the selected parent itself) for processing.
	for _, parent := range parents {
		if parent.Equal(selectedParent) {
			continue
		}
		err := visit(parent)
		if err != nil {
			return nil, err
		}
	}

	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]
		currentParents, err := dtm.Parents(stagingArea, current)
		if err != nil {
			return nil, err
		}
		for _, parent := range currentParents {
			err := visit(parent)
			if err != nil {
				return nil, err
			}
		}
	}

	mergeSetSlice := mergeSet.ToSlice()
	sort.Slice(mergeSetSlice, func(i, j int) bool {
		return mergeSetSlice[i].Less(mergeSetSlice[j])
	})
	return mergeSetSlice, nil
}
