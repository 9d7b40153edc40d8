package hashset

import (
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

func TestHashSet(t *testing.T) {
	one := externalapi.NewDomainHashFromUint64(1)
	two := externalapi.NewDomainHashFromUint64(2)
	three := externalapi.NewDomainHashFromUint64(3)

	set := NewFromSlice(one, two, one)
	if len(set) != 2 {
		t.Fatalf("TestHashSet: expected 2 hashes, got %d", len(set))
	}
	if !set.Contains(one) || set.Contains(three) {
		t.Fatalf("TestHashSet: unexpected contents %s", set)
	}
	if !set.ContainsAny([]*externalapi.DomainHash{three, two}) {
		t.Fatalf("TestHashSet: ContainsAny unexpectedly returned false")
	}

	slice := set.ToSlice()
	if len(slice) != 2 || slice[0].Equal(slice[1]) {
		t.Fatalf("TestHashSet: ToSlice returned %s", slice)
	}

	set.Remove(one)
	if set.Contains(one) {
		t.Fatalf("TestHashSet: %s was not removed", one)
	}
}
