package consensus

import (
	"sync"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/ruleerrors"
	"github.com/kaspanet/reachability/domain/consensus/utils/hashset"
	"github.com/kaspanet/reachability/domain/consensus/utils/staging"
	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/pkg/errors"
)

// Consensus maintains a blockDAG along with the reachability data needed
// to answer ancestry queries about it. It is safe for concurrent use:
// queries run concurrently with each other, while a block insertion or
// deletion excludes everything else for its whole duration.
type Consensus interface {
	AddBlock(blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error
	DeleteBlock(blockHash *externalapi.DomainHash) error

	HasBlock(blockHash *externalapi.DomainHash) (bool, error)
	Parents(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	Children(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	Tips() ([]*externalapi.DomainHash, error)

	IsChainAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOfAny(blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash) (bool, error)
	FindNextChainAncestor(descendant, ancestor *externalapi.DomainHash) (*externalapi.DomainHash, error)
	ReindexRoot() (*externalapi.DomainHash, error)
	ReachabilityData(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error)
	ValidateReachability() error

	ForwardChainIterator(from, to *externalapi.DomainHash, inclusive bool) (model.SelectedChainIterator, error)
	BackwardChainIterator(from, to *externalapi.DomainHash, inclusive bool) (model.SelectedChainIterator, error)
	DefaultChainIterator(from *externalapi.DomainHash) (model.SelectedChainIterator, error)
}

type consensus struct {
	lock            *sync.RWMutex
	databaseContext model.DBManager

	reachabilityManager model.ReachabilityManager
	dagTopologyManager  model.DAGTopologyManager

	reachabilityDataStore model.ReachabilityDataStore
	blockRelationStore    model.BlockRelationStore
	tipsStore             model.TipsStore
}

// init adds the origin to a fresh database. It does nothing if the
// database was already initialized.
func (s *consensus) init() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	stagingArea := model.NewStagingArea()
	exists, err := s.blockRelationStore.Has(stagingArea, model.OriginHash)
	if err != nil {
		return err
	}
	if exists {
		log.Debugf("Consensus already initialized")
		return nil
	}

	log.Infof("Initializing a new consensus with origin %s", model.OriginHash)
	err = s.reachabilityManager.Init(s.reachabilityDataStore.Staging(stagingArea))
	if err != nil {
		return err
	}
	err = s.dagTopologyManager.SetParents(stagingArea, model.OriginHash, nil)
	if err != nil {
		return err
	}
	return staging.CommitAllChanges(s.databaseContext, stagingArea)
}

// AddBlock adds blockHash to the DAG as a child of parents. Its selected
// parent is the parent of greatest tree height.
func (s *consensus) AddBlock(blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	onEnd := logger.LogAndMeasureExecutionTime(log, "AddBlock")
	defer onEnd()

	if len(parents) == 0 {
		return errors.Wrapf(ruleerrors.ErrNoParents, "block %s has no parents", blockHash)
	}
	parents = uniqueHashes(parents)

	stagingArea := model.NewStagingArea()
	exists, err := s.blockRelationStore.Has(stagingArea, blockHash)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ruleerrors.ErrDuplicateBlock, "block %s already exists", blockHash)
	}

	var missingParents []*externalapi.DomainHash
	for _, parent := range parents {
		exists, err := s.blockRelationStore.Has(stagingArea, parent)
		if err != nil {
			return err
		}
		if !exists {
			missingParents = append(missingParents, parent)
		}
	}
	if len(missingParents) > 0 {
		return ruleerrors.NewErrMissingParents(missingParents)
	}

	selectedParent, err := s.dagTopologyManager.SelectedParent(stagingArea, parents)
	if err != nil {
		return err
	}
	mergeSet, err := s.dagTopologyManager.MergeSetWithoutSelectedParent(stagingArea, selectedParent, parents)
	if err != nil {
		return err
	}

	reachabilityStore := s.reachabilityDataStore.Staging(stagingArea)
	err = s.reachabilityManager.AddBlock(reachabilityStore, blockHash, selectedParent, mergeSet)
	if err != nil {
		return err
	}
	err = s.reachabilityManager.HintVirtualSelectedParent(reachabilityStore, blockHash)
	if err != nil {
		return err
	}
	err = s.dagTopologyManager.SetParents(stagingArea, blockHash, parents)
	if err != nil {
		return err
	}

	err = staging.CommitAllChanges(s.databaseContext, stagingArea)
	if err != nil {
		return err
	}
	log.Tracef("Added block %s with selected parent %s and merge set %s", blockHash, selectedParent, mergeSet)
	return nil
}

// DeleteBlock removes blockHash from the DAG. Its children inherit those
// of its parents they do not already reach.
func (s *consensus) DeleteBlock(blockHash *externalapi.DomainHash) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	onEnd := logger.LogAndMeasureExecutionTime(log, "DeleteBlock")
	defer onEnd()

	if blockHash.Equal(model.OriginHash) {
		return errors.Wrapf(ruleerrors.ErrDeleteOrigin, "cannot delete the origin")
	}

	stagingArea := model.NewStagingArea()
	err := s.validateBlockExists(stagingArea, blockHash)
	if err != nil {
		return err
	}

	mergeSet, err := s.dagTopologyManager.RemoveBlock(stagingArea, blockHash)
	if err != nil {
		return err
	}
	err = s.reachabilityManager.DeleteBlock(s.reachabilityDataStore.Staging(stagingArea), blockHash, mergeSet)
	if err != nil {
		return err
	}

	err = staging.CommitAllChanges(s.databaseContext, stagingArea)
	if err != nil {
		return err
	}
	log.Tracef("Deleted block %s", blockHash)
	return nil
}

func (s *consensus) HasBlock(blockHash *externalapi.DomainHash) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockRelationStore.Has(model.NewStagingArea(), blockHash)
}

func (s *consensus) Parents(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	stagingArea := model.NewStagingArea()
	err := s.validateBlockExists(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return s.dagTopologyManager.Parents(stagingArea, blockHash)
}

func (s *consensus) Children(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	stagingArea := model.NewStagingArea()
	err := s.validateBlockExists(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return s.dagTopologyManager.Children(stagingArea, blockHash)
}

func (s *consensus) Tips() ([]*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.dagTopologyManager.Tips(model.NewStagingArea())
}

func (s *consensus) IsChainAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlocksExist(model.NewStagingArea(), blockHashA, blockHashB)
	if err != nil {
		return false, err
	}
	return s.reachabilityManager.IsChainAncestorOf(s.reachabilityDataStore.Reader(), blockHashA, blockHashB)
}

func (s *consensus) IsDAGAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlocksExist(model.NewStagingArea(), blockHashA, blockHashB)
	if err != nil {
		return false, err
	}
	return s.reachabilityManager.IsDAGAncestorOf(s.reachabilityDataStore.Reader(), blockHashA, blockHashB)
}

func (s *consensus) IsDAGAncestorOfAny(blockHash *externalapi.DomainHash,
	potentialDescendants []*externalapi.DomainHash) (bool, error) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlocksExist(model.NewStagingArea(), append([]*externalapi.DomainHash{blockHash},
		potentialDescendants...)...)
	if err != nil {
		return false, err
	}
	return s.reachabilityManager.IsDAGAncestorOfAny(s.reachabilityDataStore.Reader(), blockHash,
		potentialDescendants)
}

func (s *consensus) FindNextChainAncestor(descendant, ancestor *externalapi.DomainHash) (
	*externalapi.DomainHash, error) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlocksExist(model.NewStagingArea(), descendant, ancestor)
	if err != nil {
		return nil, err
	}
	return s.reachabilityManager.FindNextChainAncestor(s.reachabilityDataStore.Reader(), descendant, ancestor)
}

func (s *consensus) ReindexRoot() (*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.reachabilityDataStore.Reader().ReindexRoot()
}

func (s *consensus) ReachabilityData(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	err := s.validateBlockExists(model.NewStagingArea(), blockHash)
	if err != nil {
		return nil, err
	}
	reachabilityData, err := s.reachabilityDataStore.Reader().ReachabilityData(blockHash)
	if err != nil {
		return nil, err
	}
	return reachabilityData.Clone(), nil
}

// ValidateReachability checks the interval invariants of the whole
// reachability tree
func (s *consensus) ValidateReachability() error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	onEnd := logger.LogAndMeasureExecutionTime(log, "ValidateReachability")
	defer onEnd()

	return s.reachabilityManager.ValidateIntervals(s.reachabilityDataStore.Reader(), model.OriginHash)
}

func (s *consensus) validateBlockExists(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) error {
	exists, err := s.blockRelationStore.Has(stagingArea, blockHash)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ruleerrors.ErrUnknownBlock, "block %s does not exist", blockHash)
	}
	return nil
}

func (s *consensus) validateBlocksExist(stagingArea *model.StagingArea, blockHashes ...*externalapi.DomainHash) error {
	for _, blockHash := range blockHashes {
		err := s.validateBlockExists(stagingArea, blockHash)
		if err != nil {
			return err
		}
	}
	return nil
}

func uniqueHashes(hashes []*externalapi.DomainHash) []*externalapi.DomainHash {
	seen := hashset.New()
	unique := make([]*externalapi.DomainHash, 0, len(hashes))
	for _, hash := range hashes {
		if seen.Contains(hash) {
			continue
		}
		seen.Add(hash)
		unique = append(unique, hash)
	}
	return unique
}
