package database

import (
	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/kaspanet/reachability/infrastructure/db/database"
)

// MakeBucket creates a new bucket from the given path.
func MakeBucket(bucketBytes []byte) model.DBBucket {
	return newDBBucket(database.MakeBucket(bucketBytes))
}

func dbBucketToDatabaseBucket(bucket model.DBBucket) *database.Bucket {
	return bucket.(dbBucket).bucket
}

type dbBucket struct {
	bucket *database.Bucket
}

func (d dbBucket) Bucket(bucketBytes []byte) model.DBBucket {
	return newDBBucket(d.bucket.Bucket(bucketBytes))
}

func (d dbBucket) Key(suffix []byte) model.DBKey {
	return newDBKey(d.bucket.Key(suffix))
}

func (d dbBucket) Path() []byte {
	return d.bucket.Path()
}

func newDBBucket(bucket *database.Bucket) model.DBBucket {
	return dbBucket{bucket: bucket}
}
