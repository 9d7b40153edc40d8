package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// ReachabilityManager maintains a structure that allows to answer
// reachability queries in sub-linear time
type ReachabilityManager interface {
	Init(store ReachabilityStore) error
	AddTreeBlock(store ReachabilityStore, blockHash, selectedParent *externalapi.DomainHash) error
	AddBlock(store ReachabilityStore, blockHash, selectedParent *externalapi.DomainHash,
		mergeSet []*externalapi.DomainHash) error
	DeleteBlock(store ReachabilityStore, blockHash *externalapi.DomainHash, mergeSet []*externalapi.DomainHash) error
	InsertToFutureCoveringSet(store ReachabilityStore, ancestor, descendant *externalapi.DomainHash) error
	HintVirtualSelectedParent(store ReachabilityStore, hint *externalapi.DomainHash) error
	TryAdvancingReindexRoot(store ReachabilityStore, hint *externalapi.DomainHash, depth, slack uint64) error

	IsChainAncestorOf(store ReachabilityStoreReader, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsStrictChainAncestorOf(store ReachabilityStoreReader, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOf(store ReachabilityStoreReader, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOfAny(store ReachabilityStoreReader, blockHash *externalapi.DomainHash,
		potentialDescendants []*externalapi.DomainHash) (bool, error)
	IsAnyDAGAncestorOf(store ReachabilityStoreReader, potentialAncestors []*externalapi.DomainHash,
		blockHash *externalapi.DomainHash) (bool, error)
	FindNextChainAncestor(store ReachabilityStoreReader, descendant, ancestor *externalapi.DomainHash) (*externalapi.DomainHash, error)

	ValidateIntervals(store ReachabilityStoreReader, root *externalapi.DomainHash) error
	TreeString(store ReachabilityStoreReader, root *externalapi.DomainHash) (string, error)
}
