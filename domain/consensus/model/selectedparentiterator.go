package model

import "github.com/kaspanet/reachability/domain/consensus/model/externalapi"

// SelectedChainIterator is an iterator over a segment of the selected
// parent chain.
type SelectedChainIterator interface {
	Next() bool
	Get() (*externalapi.DomainHash, error)
}
