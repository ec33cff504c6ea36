package storage

import "errors"

// Common client storage errors
var (
	// ErrItemNotFound indicates that no snapshot is cached for the path
	ErrItemNotFound = errors.New("cached data item not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
