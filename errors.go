package crud

import "errors"

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("crud: record not found")

// Additional package-level errors
var (
	// ErrMultipleChildren is returned by HasOne lookups when a parent owns more than one child.
	ErrMultipleChildren = errors.New("crud: expected at most one child, found several")
	// ErrNotSupported is returned when a composed value lacks the requested capability.
	ErrNotSupported = errors.New("crud: operation not supported")
	// ErrNilStore is returned by drivers when called with a nil store handle.
	ErrNilStore = errors.New("crud: nil store provided")
)
