package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// TipsStore represents a store of the DAG tips, the blocks without
// children
type TipsStore interface {
	Store
	Stage(stagingArea *StagingArea, tips []*externalapi.DomainHash)
	IsStaged(stagingArea *StagingArea) bool
	Tips(stagingArea *StagingArea) ([]*externalapi.DomainHash, error)
	HasTips(stagingArea *StagingArea) (bool, error)
}
