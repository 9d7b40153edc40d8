package ldb

import "github.com/syndtr/goleveldb/leveldb/opt"

const mib = opt.MiB

var (
	defaultOptions = opt.Options{
		Compression:            opt.NoCompression,
		BlockCacheCapacity:     256 * mib,
		WriteBuffer:            128 * mib,
		DisableSeeksCompaction: true,
	}

	// Options is a function that returns a leveldb
	// opt.Options struct for opening a database.
	// It's defined as a variable for the sake of testing.
	Options = func() *opt.Options {
		options := defaultOptions
		return &options
	}
)
