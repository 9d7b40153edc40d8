package tipsstore

import (
	"github.com/kaspanet/reachability/domain/consensus/database/serialization"
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

type tipsStagingShard struct {
	store   *tipsStore
	newTips []*externalapi.DomainHash
}

func (ts *tipsStore) stagingShard(stagingArea *model.StagingArea) *tipsStagingShard {
	return stagingArea.GetOrCreateShard(model.StagingShardIDTips, func() model.StagingShard {
		return &tipsStagingShard{
			store:   ts,
			newTips: nil,
		}
	}).(*tipsStagingShard)
}

func (tss *tipsStagingShard) Commit(dbTx model.DBTransaction) error {
	if tss.newTips == nil {
		return nil
	}

	err := dbTx.Put(tss.store.tipsKey, serialization.TipsToDBBytes(tss.newTips))
	if err != nil {
		return err
	}
	tss.store.setCache(tss.newTips)

	return nil
}

func (tss *tipsStagingShard) isStaged() bool {
	return tss.newTips != nil
}
