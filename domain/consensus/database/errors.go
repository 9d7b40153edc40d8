package database

import (
	"github.com/kaspanet/reachability/infrastructure/db/database"
)

// ErrNotFound denotes that the requested item was not
// found in the database.
var ErrNotFound = database.ErrNotFound

// ErrKeyAlreadyExists denotes an attempt to insert an item that is
// already stored.
var ErrKeyAlreadyExists = database.ErrKeyAlreadyExists

// IsNotFoundError checks whether an error is an ErrNotFound.
func IsNotFoundError(err error) bool {
	return database.IsNotFoundError(err)
}

// IsKeyAlreadyExistsError checks whether an error is an ErrKeyAlreadyExists.
func IsKeyAlreadyExistsError(err error) bool {
	return database.IsKeyAlreadyExistsError(err)
}
