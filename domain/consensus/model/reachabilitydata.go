package model

import (
	"fmt"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

// OriginHash is the hash of the virtual genesis every block descends from.
// It is never a real block and serves as the root of the reachability tree.
var OriginHash = externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
})

// ReachabilityData holds the set of data required to answer
// reachability queries for a single block.
//
// The reachability tree is the selected-parent tree of the DAG. Each node
// owns an index interval containing the intervals of every block in its
// subtree, so the query B ∈ subtree(A) simply becomes
// B.Interval ⊆ A.Interval.
//
// The tree grows forever, so pre-allocated intervals may run out. When
// that happens the reindexing algorithm redistributes the interval space
// of a large enough ancestor. The initial root interval spans almost all
// of uint64, so reindexing can only fail once more than 2^64 blocks exist.
type ReachabilityData struct {
	Children []*externalapi.DomainHash

	// Parent is the selected parent. It is nil only for the origin.
	Parent *externalapi.DomainHash

	// Interval contains the intervals of all blocks in this
	// block's subtree.
	Interval *ReachabilityInterval

	// Height is the depth of the block in the reachability tree.
	Height uint64

	FutureCoveringSet FutureCoveringTreeNodeSet
}

// If this doesn't compile, it means the type definition has been changed, so it's
// an indication to update Equal and Clone accordingly.
var _ = &ReachabilityData{
	Children:          []*externalapi.DomainHash{},
	Parent:            &externalapi.DomainHash{},
	Interval:          &ReachabilityInterval{},
	Height:            0,
	FutureCoveringSet: FutureCoveringTreeNodeSet{},
}

// Equal returns whether rd equals to other
func (rd *ReachabilityData) Equal(other *ReachabilityData) bool {
	if rd == nil || other == nil {
		return rd == other
	}

	if !externalapi.HashesEqual(rd.Children, other.Children) {
		return false
	}
	if !rd.Parent.Equal(other.Parent) {
		return false
	}
	if !rd.Interval.Equal(other.Interval) {
		return false
	}
	if rd.Height != other.Height {
		return false
	}
	return rd.FutureCoveringSet.Equal(other.FutureCoveringSet)
}

// Clone returns a deep copy of rd. Hashes are shared since they are
// read-only.
func (rd *ReachabilityData) Clone() *ReachabilityData {
	if rd == nil {
		return nil
	}
	return &ReachabilityData{
		Children:          externalapi.CloneHashes(rd.Children),
		Parent:            rd.Parent,
		Interval:          rd.Interval.Clone(),
		Height:            rd.Height,
		FutureCoveringSet: rd.FutureCoveringSet.Clone(),
	}
}

// ReachabilityInterval represents an inclusive interval [Start, End] of
// the reachability index space. An interval with End = Start-1 is empty.
type ReachabilityInterval struct {
	Start uint64
	End   uint64
}

// Equal returns whether ri equals to other
func (ri *ReachabilityInterval) Equal(other *ReachabilityInterval) bool {
	if ri == nil || other == nil {
		return ri == other
	}
	return ri.Start == other.Start && ri.End == other.End
}

// Clone returns a copy of ri
func (ri *ReachabilityInterval) Clone() *ReachabilityInterval {
	if ri == nil {
		return nil
	}
	return &ReachabilityInterval{Start: ri.Start, End: ri.End}
}

func (ri *ReachabilityInterval) String() string {
	return fmt.Sprintf("[%d,%d]", ri.Start, ri.End)
}

// FutureCoveringTreeNodeSet represents a collection of blocks in the future of
// a certain block. Once a block B is added to the DAG, every block A_i in
// B's selected parent anticone must register B in its FutureCoveringTreeNodeSet. This allows
// to relatively quickly (O(log(|FutureCoveringTreeNodeSet|))) query whether B
// is a descendent (is in the "future") of any block that previously
// registered it.
//
// The set is kept ordered by interval start, and no item in it is a tree
// ancestor of another.
type FutureCoveringTreeNodeSet []*externalapi.DomainHash

// Equal returns whether fctns equals to other
func (fctns FutureCoveringTreeNodeSet) Equal(other FutureCoveringTreeNodeSet) bool {
	return externalapi.HashesEqual(fctns, other)
}

// Clone returns a clone of FutureCoveringTreeNodeSet
func (fctns FutureCoveringTreeNodeSet) Clone() FutureCoveringTreeNodeSet {
	return externalapi.CloneHashes(fctns)
}
