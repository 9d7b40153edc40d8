package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// BlockRelationStore represents a store of BlockRelations
type BlockRelationStore interface {
	Store

	// StageBlockRelation stages the parents of blockHash and registers
	// blockHash as a child of each of them.
	StageBlockRelation(stagingArea *StagingArea, blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error

	// StageReplaceParent replaces replacedParent among the parents of
	// blockHash with replaceWith, skipping hashes that are already parents,
	// and updates the children lists accordingly.
	StageReplaceParent(stagingArea *StagingArea, blockHash, replacedParent *externalapi.DomainHash,
		replaceWith []*externalapi.DomainHash) error

	// Delete removes blockHash. It must not have children.
	Delete(stagingArea *StagingArea, blockHash *externalapi.DomainHash) error

	IsStaged(stagingArea *StagingArea) bool
	BlockRelation(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*BlockRelations, error)
	Has(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
}
