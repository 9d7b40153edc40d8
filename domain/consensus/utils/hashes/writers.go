package hashes

import (
	"encoding/binary"
	"hash"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const blockHashDomain = "BlockHash"

// HashWriter is used to incrementally hash data without concatenating all of the data to a single buffer
// it exposes an io.Writer api and a Finalize function to get the resulting hash.
// The used hash function is blake2b.
// This can only be created via one of the domain separated constructors
type HashWriter struct {
	hash.Hash
}

// NewBlockHashWriter returns a new HashWriter used for block hashes
func NewBlockHashWriter() HashWriter {
	blake, err := blake2b.New256([]byte(blockHashDomain))
	if err != nil {
		panic(errors.Wrapf(err, "this should never happen. %s is less than 64 bytes", blockHashDomain))
	}
	return HashWriter{blake}
}

// InfallibleWrite is just like write but doesn't return anything
func (h HashWriter) InfallibleWrite(p []byte) {
	// This write can never return an error, this is part of the hash.Hash interface contract.
	_, err := h.Write(p)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// WriteUint64 writes value in little endian
func (h HashWriter) WriteUint64(value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	h.InfallibleWrite(buf[:])
}

// Finalize returns the resulting hash
func (h HashWriter) Finalize() *externalapi.DomainHash {
	var sum [externalapi.DomainHashSize]byte
	// This should prevent `Sum` for allocating an output buffer, by using the DomainHash buffer. we still copy because we don't want to rely on that.
	copy(sum[:], h.Sum(sum[:0]))
	return externalapi.NewDomainHashFromByteArray(&sum)
}

// BlockHash derives a block hash from the block's parents and a nonce.
// The result never collides with model.OriginHash in practice.
func BlockHash(parents []*externalapi.DomainHash, nonce uint64) *externalapi.DomainHash {
	writer := NewBlockHashWriter()
	writer.WriteUint64(uint64(len(parents)))
	for _, parent := range parents {
		writer.InfallibleWrite(parent.ByteSlice())
	}
	writer.WriteUint64(nonce)
	return writer.Finalize()
}
