package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// ReachabilityStoreReader is the read half of a reachability store.
// Reads of an absent block return an error wrapping database.ErrNotFound.
type ReachabilityStoreReader interface {
	Has(blockHash *externalapi.DomainHash) (bool, error)
	ReachabilityData(blockHash *externalapi.DomainHash) (*ReachabilityData, error)
	Interval(blockHash *externalapi.DomainHash) (*ReachabilityInterval, error)
	Parent(blockHash *externalapi.DomainHash) (*externalapi.DomainHash, error)
	Children(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	FutureCoveringSet(blockHash *externalapi.DomainHash) (FutureCoveringTreeNodeSet, error)
	Height(blockHash *externalapi.DomainHash) (uint64, error)
	ReindexRoot() (*externalapi.DomainHash, error)
	Count() (int, error)
}

// ReachabilityStore is the storage abstraction the reachability algorithms
// operate on. Implementations do no locking of their own.
type ReachabilityStore interface {
	ReachabilityStoreReader

	// Init inserts origin with the given capacity as the root of the tree,
	// and makes it the reindex root.
	Init(origin *externalapi.DomainHash, capacity *ReachabilityInterval) error

	// Insert adds a new block. Inserting an existing block returns an
	// error wrapping database.ErrKeyAlreadyExists.
	Insert(blockHash, parent *externalapi.DomainHash, interval *ReachabilityInterval, height uint64) error

	SetInterval(blockHash *externalapi.DomainHash, interval *ReachabilityInterval) error
	SetParent(blockHash, newParent *externalapi.DomainHash) error

	// AppendChild appends child to the children of blockHash and returns the
	// height of blockHash.
	AppendChild(blockHash, child *externalapi.DomainHash) (uint64, error)

	// ReplaceChild replaces the child at replaceIndex, which must be
	// replacedChild, with the ordered replaceWith list.
	ReplaceChild(blockHash, replacedChild *externalapi.DomainHash, replaceIndex int,
		replaceWith []*externalapi.DomainHash) error

	InsertFutureCoveringItem(blockHash, futureCoveringItem *externalapi.DomainHash, insertionIndex int) error

	// ReplaceFutureCoveringItem is the future covering set counterpart of
	// ReplaceChild.
	ReplaceFutureCoveringItem(blockHash, replacedItem *externalapi.DomainHash, replaceIndex int,
		replaceWith []*externalapi.DomainHash) error

	Delete(blockHash *externalapi.DomainHash) error
	SetReindexRoot(reindexRoot *externalapi.DomainHash) error
}

// ReachabilityDataStore is a persistent reachability store. Writes go
// through a StagingArea and reach the database when it is committed.
type ReachabilityDataStore interface {
	Store
	Staging(stagingArea *StagingArea) ReachabilityStore
	Reader() ReachabilityStoreReader
	IsStaged(stagingArea *StagingArea) bool
}
