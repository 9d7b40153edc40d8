package externalapi

import (
	"testing"
)

func TestDomainHashFromUint64(t *testing.T) {
	hash := NewDomainHashFromUint64(0x0102)
	if hash.ShortString() != "0201" {
		t.Fatalf("ShortString: expected 0201, got %s", hash.ShortString())
	}
	roundTrip, err := NewDomainHashFromString(hash.String())
	if err != nil {
		t.Fatalf("NewDomainHashFromString: %s", err)
	}
	if !roundTrip.Equal(hash) {
		t.Fatalf("expected %s, got %s", hash, roundTrip)
	}
	if NewDomainHashFromUint64(0).ShortString() != "00" {
		t.Fatalf("ShortString: unexpected rendering of the zero hash")
	}
}

func TestDomainHashLess(t *testing.T) {
	low := NewDomainHashFromUint64(1)
	high := NewDomainHashFromUint64(2)
	if !low.Less(high) || high.Less(low) || low.Less(low) {
		t.Fatalf("Less: unexpected ordering of %s and %s", low, high)
	}

	var nilHash *DomainHash
	if !nilHash.Equal(nil) || low.Equal(nil) {
		t.Fatalf("Equal: unexpected nil handling")
	}
	if _, err := NewDomainHashFromByteSlice([]byte{1, 2, 3}); err == nil {
		t.Fatalf("NewDomainHashFromByteSlice: expected an error for a short slice")
	}
}

func TestHashesEqualAndClone(t *testing.T) {
	hashes := []*DomainHash{NewDomainHashFromUint64(1), NewDomainHashFromUint64(2)}
	clone := CloneHashes(hashes)
	if !HashesEqual(hashes, clone) {
		t.Fatalf("CloneHashes: clone differs from the original")
	}
	clone[0] = NewDomainHashFromUint64(3)
	if HashesEqual(hashes, clone) || !hashes[0].Equal(NewDomainHashFromUint64(1)) {
		t.Fatalf("CloneHashes: modifying the clone affected the original")
	}
	if CloneHashes(nil) != nil {
		t.Fatalf("CloneHashes: expected nil for nil input")
	}
}
