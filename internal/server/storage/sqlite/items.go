package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/transport"
)

// SaveItem stores item as the latest value at its path.
// Only a strictly newer version replaces the stored one.
func (s *Storage) SaveItem(ctx context.Context, item transport.DataItem) (bool, error) {
	query := `
		INSERT INTO data_items (path, payload, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE excluded.version > data_items.version
	`

	res, err := s.db.ExecContext(ctx, query,
		item.Path,
		item.Payload,
		item.Version,
		time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save data item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// GetItem returns the latest item stored at path
func (s *Storage) GetItem(ctx context.Context, path string) (*transport.DataItem, error) {
	query := `SELECT path, payload, version FROM data_items WHERE path = ?`

	var item transport.DataItem
	err := s.db.QueryRowContext(ctx, query, path).Scan(&item.Path, &item.Payload, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data item: %w", err)
	}

	return &item, nil
}

// LogCommand appends rec to the command journal and fills its ID
func (s *Storage) LogCommand(ctx context.Context, rec *storage.CommandRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO command_log (path, record_id, from_node, received_at)
		VALUES (?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.Path,
		rec.RecordID,
		rec.From,
		rec.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to log command: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get command id: %w", err)
	}
	rec.ID = id

	return nil
}

// RecentCommands returns up to limit journal entries, newest first
func (s *Storage) RecentCommands(ctx context.Context, limit int) ([]*storage.CommandRecord, error) {
	if limit <= 0 {
		return []*storage.CommandRecord{}, nil
	}

	query := `
		SELECT id, path, record_id, from_node, received_at
		FROM command_log
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*storage.CommandRecord, 0, limit)
	for rows.Next() {
		var (
			rec        storage.CommandRecord
			receivedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.RecordID, &rec.From, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		rec.ReceivedAt = time.UnixMilli(receivedAt)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
