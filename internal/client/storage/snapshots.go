package storage

import (
	"context"

	"github.com/iudanet/medsync/internal/transport"
)

//go:generate moq -out snapshotcache_mock.go . SnapshotCache

// SnapshotCache keeps the last snapshot item delivered to the replica
type SnapshotCache interface {
	// SaveDataItem stores item if it is newer than the cached one.
	// Returns false when the cached version is the same or newer.
	SaveDataItem(ctx context.Context, item transport.DataItem) (bool, error)

	// GetDataItem returns the cached item at path.
	// Returns ErrItemNotFound if nothing was cached yet
	GetDataItem(ctx context.Context, path string) (*transport.DataItem, error)
}
