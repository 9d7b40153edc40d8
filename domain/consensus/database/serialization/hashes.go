package serialization

import (
	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendHash(b []byte, fieldNumber protowire.Number, hash *externalapi.DomainHash) []byte {
	b = protowire.AppendTag(b, fieldNumber, protowire.BytesType)
	return protowire.AppendBytes(b, hash.ByteSlice())
}

func appendHashes(b []byte, fieldNumber protowire.Number, hashes []*externalapi.DomainHash) []byte {
	for _, hash := range hashes {
		b = appendHash(b, fieldNumber, hash)
	}
	return b
}

func appendVarint(b []byte, fieldNumber protowire.Number, value uint64) []byte {
	b = protowire.AppendTag(b, fieldNumber, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

// fieldVisitor is called for every field of a serialized message. It
// returns the number of bytes it consumed from b, or a negative
// protowire error code.
type fieldVisitor func(fieldNumber protowire.Number, fieldType protowire.Type, b []byte) (int, error)

func visitFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		fieldNumber, fieldType, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "failed to parse field tag")
		}
		b = b[n:]

		n, err := visit(fieldNumber, fieldType, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "failed to parse field %d", fieldNumber)
		}
		b = b[n:]
	}
	return nil
}

func consumeHash(fieldType protowire.Type, b []byte) (*externalapi.DomainHash, int, error) {
	if fieldType != protowire.BytesType {
		return nil, 0, errors.Errorf("expected a bytes field for a hash, got wire type %d", fieldType)
	}
	hashBytes, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, nil
	}
	hash, err := externalapi.NewDomainHashFromByteSlice(hashBytes)
	if err != nil {
		return nil, 0, err
	}
	return hash, n, nil
}

func consumeVarint(fieldType protowire.Type, b []byte) (uint64, int, error) {
	if fieldType != protowire.VarintType {
		return 0, 0, errors.Errorf("expected a varint field, got wire type %d", fieldType)
	}
	value, n := protowire.ConsumeVarint(b)
	return value, n, nil
}
