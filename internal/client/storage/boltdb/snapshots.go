package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/medsync/internal/client/storage"
	"github.com/iudanet/medsync/internal/transport"
)

// SaveDataItem stores item under its path if it is newer than the cached one
func (s *Storage) SaveDataItem(ctx context.Context, item transport.DataItem) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("failed to marshal data item: %w", err)
	}

	saved := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}

		if existing := bucket.Get([]byte(item.Path)); existing != nil {
			var cached transport.DataItem
			if err := json.Unmarshal(existing, &cached); err == nil && cached.Version >= item.Version {
				return nil
			}
		}

		if err := bucket.Put([]byte(item.Path), data); err != nil {
			return fmt.Errorf("failed to save data item: %w", err)
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("transaction failed: %w", err)
	}

	return saved, nil
}

// GetDataItem returns the cached item at path
func (s *Storage) GetDataItem(ctx context.Context, path string) (*transport.DataItem, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var item *transport.DataItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return storage.ErrItemNotFound
		}

		data := bucket.Get([]byte(path))
		if data == nil {
			return storage.ErrItemNotFound
		}

		item = &transport.DataItem{}
		if err := json.Unmarshal(data, item); err != nil {
			return fmt.Errorf("failed to unmarshal data item: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}
