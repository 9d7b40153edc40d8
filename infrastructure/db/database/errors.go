package database

import "github.com/pkg/errors"

// ErrNotFound denotes that the requested item was not
// found in the database.
var ErrNotFound = errors.New("not found")

// ErrKeyAlreadyExists denotes an attempt to insert a key that is
// already present.
var ErrKeyAlreadyExists = errors.New("key already exists")

// IsNotFoundError checks whether an error is an ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsKeyAlreadyExistsError checks whether an error is an ErrKeyAlreadyExists.
func IsKeyAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrKeyAlreadyExists)
}
