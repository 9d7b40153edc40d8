package binaryserialization

import (
	"encoding/binary"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const uint64Length = 8

// SerializeUint64 serializes a uint64 to little endian bytes
func SerializeUint64(value uint64) []byte {
	var valueBytes [uint64Length]byte
	binary.LittleEndian.PutUint64(valueBytes[:], value)
	return valueBytes[:]
}

// DeserializeUint64 deserializes bytes created by SerializeUint64
func DeserializeUint64(valueBytes []byte) (uint64, error) {
	if len(valueBytes) != uint64Length {
		return 0, errors.Errorf("the given value is %d bytes long while it should be %d",
			len(valueBytes), uint64Length)
	}
	return binary.LittleEndian.Uint64(valueBytes), nil
}

// SerializeHash returns the raw bytes of hash. Singleton values such as
// the reindex root are stored this way rather than through protowire.
func SerializeHash(hash *externalapi.DomainHash) []byte {
	return hash.ByteSlice()
}

// DeserializeHash deserializes bytes created by SerializeHash
func DeserializeHash(hashBytes []byte) (*externalapi.DomainHash, error) {
	hash, err := externalapi.NewDomainHashFromByteSlice(hashBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed deserializing hash")
	}
	return hash, nil
}
