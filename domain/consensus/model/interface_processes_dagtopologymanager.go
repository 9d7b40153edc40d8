package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// DAGTopologyManager exposes methods for querying relationships
// between blocks in the DAG
type DAGTopologyManager interface {
	Parents(stagingArea *StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	Children(stagingArea *StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	IsParentOf(stagingArea *StagingArea, blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsChildOf(stagingArea *StagingArea, blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsAncestorOf(stagingArea *StagingArea, blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsAncestorOfAny(stagingArea *StagingArea, blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash) (bool, error)
	IsDescendantOf(stagingArea *StagingArea, blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsInSelectedParentChainOf(stagingArea *StagingArea, blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)

	SelectedParent(stagingArea *StagingArea, parents []*externalapi.DomainHash) (*externalapi.DomainHash, error)
	MergeSetWithoutSelectedParent(stagingArea *StagingArea, selectedParent *externalapi.DomainHash,
		parents []*externalapi.DomainHash) ([]*externalapi.DomainHash, error)

	Tips(stagingArea *StagingArea) ([]*externalapi.DomainHash, error)

	SetParents(stagingArea *StagingArea, blockHash *externalapi.DomainHash, parentHashes []*externalapi.DomainHash) error
	// RemoveBlock detaches blockHash from the DAG, re-linking each of its
	// children to those of its parents that the child does not already
	// reach through its other parents.
	RemoveBlock(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (mergeSet []*externalapi.DomainHash, err error)
}
