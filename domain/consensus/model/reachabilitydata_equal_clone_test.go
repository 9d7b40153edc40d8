package model

import (
	"testing"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
)

func TestReachabilityDataEqual(t *testing.T) {
	hash := externalapi.NewDomainHashFromUint64
	base := &ReachabilityData{
		Children:          []*externalapi.DomainHash{hash(2), hash(3)},
		Parent:            hash(1),
		Interval:          &ReachabilityInterval{Start: 100, End: 200},
		Height:            7,
		FutureCoveringSet: FutureCoveringTreeNodeSet{hash(4)},
	}

	tests := []struct {
		name     string
		modify   func(data *ReachabilityData)
		expected bool
	}{
		{"identical", func(data *ReachabilityData) {}, true},
		{"children", func(data *ReachabilityData) { data.Children = data.Children[:1] }, false},
		{"parent", func(data *ReachabilityData) { data.Parent = hash(9) }, false},
		{"nil parent", func(data *ReachabilityData) { data.Parent = nil }, false},
		{"interval", func(data *ReachabilityData) { data.Interval = &ReachabilityInterval{Start: 100, End: 201} }, false},
		{"height", func(data *ReachabilityData) { data.Height = 8 }, false},
		{"future covering set", func(data *ReachabilityData) { data.FutureCoveringSet = nil }, false},
	}

	for _, test := range tests {
		other := base.Clone()
		test.modify(other)
		if base.Equal(other) != test.expected {
			t.Fatalf("%s: Equal returned %t, expected %t", test.name, !test.expected, test.expected)
		}
	}

	var nilData *ReachabilityData
	if !nilData.Equal(nil) || base.Equal(nil) {
		t.Fatalf("Equal: unexpected nil handling")
	}
}

func TestReachabilityDataCloneIsDeep(t *testing.T) {
	hash := externalapi.NewDomainHashFromUint64
	original := &ReachabilityData{
		Children:          []*externalapi.DomainHash{hash(2)},
		Parent:            hash(1),
		Interval:          &ReachabilityInterval{Start: 1, End: 10},
		Height:            1,
		FutureCoveringSet: FutureCoveringTreeNodeSet{hash(3)},
	}
	clone := original.Clone()
	clone.Children[0] = hash(5)
	clone.Interval.End = 11
	clone.FutureCoveringSet[0] = hash(6)

	if !original.Children[0].Equal(hash(2)) || original.Interval.End != 10 ||
		!original.FutureCoveringSet[0].Equal(hash(3)) {
		t.Fatalf("Clone: modifying the clone affected the original: %+v", original)
	}
	if original.Interval.String() != "[1,10]" {
		t.Fatalf("String: unexpected interval rendering %s", original.Interval)
	}
}
