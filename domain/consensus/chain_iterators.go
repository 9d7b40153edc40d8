package consensus

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// chainStepFunc returns the chain block following current, or nil if the
// chain ends at current
type chainStepFunc func(current *externalapi.DomainHash) (*externalapi.DomainHash, error)

// chainIterator walks a segment of a selected chain, one step per call to
// Next. Each step takes the consensus read lock on its own, so the DAG may
// change between steps.
//
// When a step fails, Next returns true once more and Get returns the
// error.
type chainIterator struct {
	from      *externalapi.DomainHash
	to        *externalapi.DomainHash
	inclusive bool
	step      chainStepFunc

	current *externalapi.DomainHash
	err     error
	isDone  bool
}

func (ci *chainIterator) Next() bool {
	if ci.isDone {
		return false
	}

	if ci.current == nil {
		ci.current = ci.from
	} else {
		if ci.to != nil && ci.current.Equal(ci.to) {
			return ci.done()
		}
		next, err := ci.step(ci.current)
		if err != nil {
			ci.err = err
			ci.current = nil
			ci.isDone = true
			return true
		}
		if next == nil {
			return ci.done()
		}
		ci.current = next
	}

	if ci.to != nil && ci.current.Equal(ci.to) && !ci.inclusive {
		return ci.done()
	}
	return true
}

func (ci *chainIterator) Get() (*externalapi.DomainHash, error) {
	if ci.err != nil {
		return nil, ci.err
	}
	if ci.current == nil {
		return nil, errors.New("the iterator is not positioned on a block")
	}
	return ci.current, nil
}

func (ci *chainIterator) done() bool {
	ci.current = nil
	ci.isDone = true
	return false
}

// ForwardChainIterator iterates the selected chain of `to` upwards,
// starting at `from`. `from` must be a chain ancestor of `to`. `to` itself
// is included only when inclusive is set.
func (s *consensus) ForwardChainIterator(from, to *externalapi.DomainHash,
	inclusive bool) (model.SelectedChainIterator, error) {

	isChainAncestor, err := s.IsChainAncestorOf(from, to)
	if err != nil {
		return nil, err
	}
	if !isChainAncestor {
		return nil, errors.Wrapf(ruleerrors.ErrBadQuery, "%s is not a chain ancestor of %s", from, to)
	}

	return &chainIterator{
		from:      from,
		to:        to,
		inclusive: inclusive,
		step: func(current *externalapi.DomainHash) (*externalapi.DomainHash, error) {
			return s.FindNextChainAncestor(to, current)
		},
	}, nil
}

// BackwardChainIterator iterates the selected chain of `from` downwards,
// until `to`, which must be a chain ancestor of `from`. `to` itself is
// included only when inclusive is set.
func (s *consensus) BackwardChainIterator(from, to *externalapi.DomainHash,
	inclusive bool) (model.SelectedChainIterator, error) {

	isChainAncestor, err := s.IsChainAncestorOf(to, from)
	if err != nil {
		return nil, err
	}
	if !isChainAncestor {
		return nil, errors.Wrapf(ruleerrors.ErrBadQuery, "%s is not a chain ancestor of %s", to, from)
	}

	return &chainIterator{
		from:      from,
		to:        to,
		inclusive: inclusive,
		step:      s.selectedParent,
	}, nil
}

// DefaultChainIterator iterates the selected chain of `from` downwards,
// all the way to the origin, which is excluded.
func (s *consensus) DefaultChainIterator(from *externalapi.DomainHash) (model.SelectedChainIterator, error) {
	return s.BackwardChainIterator(from, model.OriginHash, false)
}

func (s *consensus) selectedParent(blockHash *externalapi.DomainHash) (*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlockExists(model.NewStagingArea(), blockHash)
	if err != nil {
		return nil, err
	}
	return s.reachabilityDataStore.Reader().Parent(blockHash)
}
