package reachabilitymanager

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/testapi"
)

type testReachabilityManager struct {
	*reachabilityManager
}

func (t testReachabilityManager) ReachabilityReindexSlack() uint64 {
	return t.reachabilityManager.reindexSlack
}

func (t testReachabilityManager) SetReachabilityReindexSlack(reindexSlack uint64) {
	t.reachabilityManager.reindexSlack = reindexSlack
}

func (t testReachabilityManager) ReachabilityReindexDepth() uint64 {
	return t.reachabilityManager.reindexDepth
}

func (t testReachabilityManager) SetReachabilityReindexDepth(reindexDepth uint64) {
	t.reachabilityManager.reindexDepth = reindexDepth
}

// NewTestReachabilityManager creates an instance of a TestReachabilityManager
func NewTestReachabilityManager(manager model.ReachabilityManager) testapi.TestReachabilityManager {
	return &testReachabilityManager{reachabilityManager: manager.(*reachabilityManager)}
}
