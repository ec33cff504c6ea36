package storage

import "context"

// MetadataStorage defines interface for storing replica metadata
type MetadataStorage interface {
	// NodeID returns the persistent id of this replica, creating it on first use
	NodeID(ctx context.Context) (string, error)

	// SaveLastSyncTimestamp saves the time (unix ms) the last snapshot was applied
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error

	// GetLastSyncTimestamp returns the time of the last applied snapshot
	// Returns 0 if no snapshot has been applied yet
	GetLastSyncTimestamp(ctx context.Context) (int64, error)
}
