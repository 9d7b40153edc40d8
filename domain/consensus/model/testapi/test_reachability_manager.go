package testapi

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
)

// TestReachabilityManager adds to the main ReachabilityManager methods required by tests
type TestReachabilityManager interface {
	model.ReachabilityManager
	SetReachabilityReindexDepth(reindexDepth uint64)
	SetReachabilityReindexSlack(reindexSlack uint64)
	ReachabilityReindexDepth() uint64
	ReachabilityReindexSlack() uint64
}
