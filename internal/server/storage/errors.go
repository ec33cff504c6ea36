package storage

import "errors"

// Common storage errors
var (
	// ErrItemNotFound indicates that no data item is stored at the path
	ErrItemNotFound = errors.New("data item not found")
)
