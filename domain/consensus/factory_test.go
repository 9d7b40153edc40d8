package consensus

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/kaspanet/reachability/domain/consensus/processes/reachabilitymanager"
	"github.com/kaspanet/reachability/infrastructure/db/database/ldb"
)

func TestNewConsensus(t *testing.T) {
	f := NewFactory()

	tmpDir, err := ioutil.TempDir("", "TestNewConsensus")
	if err != nil {
		t.Fatalf("error in TempDir: %s", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := ldb.NewLevelDB(tmpDir, 8)
	if err != nil {
		t.Fatalf("error in NewLevelDB: %s", err)
	}

	c, err := f.NewConsensus(DefaultConfig(), db)
	if err != nil {
		t.Fatalf("error in NewConsensus: %+v", err)
	}
	tips, err := c.Tips()
	if err != nil {
		t.Fatalf("error in Tips: %+v", err)
	}
	if !externalapi.HashesEqual(tips, []*externalapi.DomainHash{model.OriginHash}) {
		t.Fatalf("expected the origin to be the only tip, got %v", tips)
	}

	err = c.AddBlock(hash(1), []*externalapi.DomainHash{model.OriginHash})
	if err != nil {
		t.Fatalf("error in AddBlock: %+v", err)
	}
	err = db.Close()
	if err != nil {
		t.Fatalf("error in Close: %s", err)
	}

	// Reopening the database keeps the DAG and does not re-add the origin
	db, err = ldb.NewLevelDB(tmpDir, 8)
	if err != nil {
		t.Fatalf("error in NewLevelDB: %s", err)
	}
	defer db.Close()
	c, err = f.NewConsensus(DefaultConfig(), db)
	if err != nil {
		t.Fatalf("error in NewConsensus: %+v", err)
	}
	tips, err = c.Tips()
	if err != nil {
		t.Fatalf("error in Tips: %+v", err)
	}
	if !externalapi.HashesEqual(tips, hashes(1)) {
		t.Fatalf("unexpected tips after reopening: %v", tips)
	}
	isDAGAncestor, err := c.IsDAGAncestorOf(model.OriginHash, hash(1))
	if err != nil {
		t.Fatalf("error in IsDAGAncestorOf: %+v", err)
	}
	if !isDAGAncestor {
		t.Fatalf("expected the origin to be an ancestor of 1 after reopening")
	}
}

func TestNewConsensusRejectsBadConfig(t *testing.T) {
	for _, reindexSlack := range []uint64{0, reachabilitymanager.MaxReindexSlack + 1, 1 << 60} {
		config := DefaultConfig()
		config.ReindexSlack = reindexSlack
		_, teardown, err := NewFactory().NewTestConsensus(config, "TestNewConsensusRejectsBadConfig")
		if err == nil {
			teardown(false)
			t.Fatalf("expected a reindex slack of %d to be rejected", reindexSlack)
		}
	}
}
