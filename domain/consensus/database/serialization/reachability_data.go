package serialization

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the serialized ReachabilityData message:
//
//	message DbReachabilityData {
//	  repeated bytes children = 1;
//	  bytes parent = 2;
//	  uint64 intervalStart = 3;
//	  uint64 intervalEnd = 4;
//	  uint64 height = 5;
//	  repeated bytes futureCoveringSet = 6;
//	}
const (
	reachabilityDataChildrenField          protowire.Number = 1
	reachabilityDataParentField            protowire.Number = 2
	reachabilityDataIntervalStartField     protowire.Number = 3
	reachabilityDataIntervalEndField       protowire.Number = 4
	reachabilityDataHeightField            protowire.Number = 5
	reachabilityDataFutureCoveringSetField protowire.Number = 6
)

// ReachabilityDataToDBBytes serializes ReachabilityData for storage.
func ReachabilityDataToDBBytes(reachabilityData *model.ReachabilityData) []byte {
	b := appendHashes(nil, reachabilityDataChildrenField, reachabilityData.Children)
	if reachabilityData.Parent != nil {
		b = appendHash(b, reachabilityDataParentField, reachabilityData.Parent)
	}
	b = appendVarint(b, reachabilityDataIntervalStartField, reachabilityData.Interval.Start)
	b = appendVarint(b, reachabilityDataIntervalEndField, reachabilityData.Interval.End)
	b = appendVarint(b, reachabilityDataHeightField, reachabilityData.Height)
	return appendHashes(b, reachabilityDataFutureCoveringSetField, reachabilityData.FutureCoveringSet)
}

// DBBytesToReachabilityData deserializes bytes created by
// ReachabilityDataToDBBytes. Unknown fields are skipped.
func DBBytesToReachabilityData(b []byte) (*model.ReachabilityData, error) {
	reachabilityData := &model.ReachabilityData{
		Children:          []*externalapi.DomainHash{},
		Interval:          &model.ReachabilityInterval{},
		FutureCoveringSet: model.FutureCoveringTreeNodeSet{},
	}

	err := visitFields(b, func(fieldNumber protowire.Number, fieldType protowire.Type, b []byte) (int, error) {
		switch fieldNumber {
		case reachabilityDataChildrenField:
			child, n, err := consumeHash(fieldType, b)
			if err == nil && n > 0 {
				reachabilityData.Children = append(reachabilityData.Children, child)
			}
			return n, err
		case reachabilityDataParentField:
			parent, n, err := consumeHash(fieldType, b)
			reachabilityData.Parent = parent
			return n, err
		case reachabilityDataIntervalStartField:
			start, n, err := consumeVarint(fieldType, b)
			reachabilityData.Interval.Start = start
			return n, err
		case reachabilityDataIntervalEndField:
			end, n, err := consumeVarint(fieldType, b)
			reachabilityData.Interval.End = end
			return n, err
		case reachabilityDataHeightField:
			height, n, err := consumeVarint(fieldType, b)
			reachabilityData.Height = height
			return n, err
		case reachabilityDataFutureCoveringSetField:
			item, n, err := consumeHash(fieldType, b)
			if err == nil && n > 0 {
				reachabilityData.FutureCoveringSet = append(reachabilityData.FutureCoveringSet, item)
			}
			return n, err
		default:
			return protowire.ConsumeFieldValue(fieldNumber, fieldType, b), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return reachabilityData, nil
}
