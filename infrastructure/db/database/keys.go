package database

import (
	"bytes"
	"encoding/hex"
)

var bucketSeparator = []byte("/")

// Key is a full database key: the path of the bucket it lives in followed
// by its suffix.
type Key struct {
	bucket *Bucket
	suffix []byte
}

// Bytes returns the full key as stored in the database.
func (k *Key) Bytes() []byte {
	bucketPath := k.bucket.Path()
	keyBytes := make([]byte, len(bucketPath)+len(k.suffix))
	copy(keyBytes, bucketPath)
	copy(keyBytes[len(bucketPath):], k.suffix)
	return keyBytes
}

func (k *Key) String() string {
	return string(k.bucket.Path()) + hex.EncodeToString(k.suffix)
}

// Bucket returns the bucket the key lives in.
func (k *Key) Bucket() *Bucket {
	return k.bucket
}

// Suffix returns the key without its bucket path.
func (k *Key) Suffix() []byte {
	return k.suffix
}

func newKey(bucket *Bucket, suffix []byte) *Key {
	return &Key{bucket: bucket, suffix: suffix}
}

// Bucket is a path of nested buckets. Buckets are used to build keys and
// to scope prefix cursors.
type Bucket struct {
	path [][]byte
}

// MakeBucket creates a new Bucket from the given path.
func MakeBucket(path ...[]byte) *Bucket {
	return &Bucket{path: path}
}

// Bucket returns the sub-bucket named bucketBytes.
func (b *Bucket) Bucket(bucketBytes []byte) *Bucket {
	newPath := make([][]byte, len(b.path)+1)
	copy(newPath, b.path)
	newPath[len(b.path)] = bucketBytes
	return MakeBucket(newPath...)
}

// Key returns the key with the given suffix inside the bucket.
func (b *Bucket) Key(suffix []byte) *Key {
	return newKey(b, suffix)
}

// Path returns the bucket path joined by the separator, including a
// trailing separator.
func (b *Bucket) Path() []byte {
	bucketPath := bytes.Join(b.path, bucketSeparator)
	pathWithSeparator := make([]byte, len(bucketPath)+len(bucketSeparator))
	copy(pathWithSeparator, bucketPath)
	copy(pathWithSeparator[len(bucketPath):], bucketSeparator)
	return pathWithSeparator
}
