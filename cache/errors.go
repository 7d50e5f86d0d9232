package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrNoLoader indicates Load was called for a collection with no loader.
	ErrNoLoader = errors.New("cache: no loader registered")

	// ErrFetchCancelled indicates the fetch a Load waited on was cancelled
	// and the key holds no value.
	ErrFetchCancelled = errors.New("cache: fetch cancelled")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("cache: store closed")
)
