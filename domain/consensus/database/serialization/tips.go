package serialization

import (
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"google.golang.org/protobuf/encoding/protowire"
)

//	message DbTips {
//	  repeated bytes tips = 1;
//	}
const tipsField protowire.Number = 1

// TipsToDBBytes serializes a list of DAG tips for storage.
func TipsToDBBytes(tips []*externalapi.DomainHash) []byte {
	return appendHashes(nil, tipsField, tips)
}

// DBBytesToTips deserializes bytes created by TipsToDBBytes.
func DBBytesToTips(b []byte) ([]*externalapi.DomainHash, error) {
	tips := []*externalapi.DomainHash{}
	err := visitFields(b, func(fieldNumber protowire.Number, fieldType protowire.Type, b []byte) (int, error) {
		if fieldNumber != tipsField {
			return protowire.ConsumeFieldValue(fieldNumber, fieldType, b), nil
		}
		hash, n, err := consumeHash(fieldType, b)
		if err == nil && n > 0 {
			tips = append(tips, hash)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return tips, nil
}
