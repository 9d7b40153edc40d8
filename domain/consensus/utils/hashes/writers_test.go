package hashes

import (
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

func TestBlockHash(t *testing.T) {
	parentA := externalapi.NewDomainHashFromUint64(1)
	parentB := externalapi.NewDomainHashFromUint64(2)

	hash := BlockHash([]*externalapi.DomainHash{parentA, parentB}, 7)
	if !hash.Equal(BlockHash([]*externalapi.DomainHash{parentA, parentB}, 7)) {
		t.Fatalf("TestBlockHash: block hashes are not deterministic")
	}
	if hash.Equal(BlockHash([]*externalapi.DomainHash{parentA, parentB}, 8)) {
		t.Fatalf("TestBlockHash: different nonces produced the same hash")
	}
	if hash.Equal(BlockHash([]*externalapi.DomainHash{parentB, parentA}, 7)) {
		t.Fatalf("TestBlockHash: parent order does not affect the hash")
	}
	if hash.Equal(BlockHash(nil, 7)) {
		t.Fatalf("TestBlockHash: parents do not affect the hash")
	}
}
