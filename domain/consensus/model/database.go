package model

// DBCursor iterates over the entries of a single bucket, in key order.
// Using a closed cursor panics.
type DBCursor interface {
	// Next advances the cursor and reports whether it points at an entry
	Next() bool

	// First moves the cursor to the first entry of the bucket. It returns
	// false if the bucket is empty.
	First() bool

	// Seek moves the cursor to the first entry whose key is greater than
	// or equal to key, or returns ErrNotFound if there is none
	Seek(key DBKey) error

	// Key and Value return the current entry, or ErrNotFound once the
	// cursor is exhausted. The returned slices are only valid until the
	// next call to Next and must not be modified.
	Key() (DBKey, error)
	Value() ([]byte, error)

	Close() error
}

// DBReader is read access to the data of a consensus
type DBReader interface {
	// Get returns ErrNotFound if key does not exist
	Get(key DBKey) ([]byte, error)
	Has(key DBKey) (bool, error)
	Cursor(bucket DBBucket) (DBCursor, error)
}

// DBWriter is read and write access to the data of a consensus
type DBWriter interface {
	DBReader

	Put(key DBKey, value []byte) error

	// Delete does nothing if key does not exist
	Delete(key DBKey) error
}

// DBTransaction groups writes so that they are applied all at once on
// Commit, or not at all
type DBTransaction interface {
	DBWriter

	Rollback() error
	Commit() error

	// RollbackUnlessClosed rolls back the transaction unless Commit or
	// Rollback were already called. It is meant to be deferred right
	// after Begin.
	RollbackUnlessClosed() error
}

// DBManager is the database a consensus writes its stores to. Staged
// changes are committed through a transaction from Begin.
type DBManager interface {
	DBWriter

	Begin() (DBTransaction, error)
}

// DBKey is a key inside a DBBucket
type DBKey interface {
	Bytes() []byte
	Bucket() DBBucket
	Suffix() []byte
}

// DBBucket is a namespace of keys. Buckets nest: a bucket's path is the
// path of its parent followed by its own name.
type DBBucket interface {
	Bucket(bucketBytes []byte) DBBucket
	Key(suffix []byte) DBKey
	Path() []byte
}
