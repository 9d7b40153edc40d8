package serialization

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"google.golang.org/protobuf/encoding/protowire"
)

//	message DbBlockRelations {
//	  repeated bytes parents = 1;
//	  repeated bytes children = 2;
//	}
const (
	blockRelationsParentsField  protowire.Number = 1
	blockRelationsChildrenField protowire.Number = 2
)

// BlockRelationsToDBBytes serializes BlockRelations for storage.
func BlockRelationsToDBBytes(blockRelations *model.BlockRelations) []byte {
	b := appendHashes(nil, blockRelationsParentsField, blockRelations.Parents)
	return appendHashes(b, blockRelationsChildrenField, blockRelations.Children)
}

// DBBytesToBlockRelations deserializes bytes created by
// BlockRelationsToDBBytes.
func DBBytesToBlockRelations(b []byte) (*model.BlockRelations, error) {
	blockRelations := &model.BlockRelations{
		Parents:  []*externalapi.DomainHash{},
		Children: []*externalapi.DomainHash{},
	}

	err := visitFields(b, func(fieldNumber protowire.Number, fieldType protowire.Type, b []byte) (int, error) {
		var target *[]*externalapi.DomainHash
		switch fieldNumber {
		case blockRelationsParentsField:
			target = &blockRelations.Parents
		case blockRelationsChildrenField:
			target = &blockRelations.Children
		default:
			return protowire.ConsumeFieldValue(fieldNumber, fieldType, b), nil
		}
		hash, n, err := consumeHash(fieldType, b)
		if err == nil && n > 0 {
			*target = append(*target, hash)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return blockRelations, nil
}
