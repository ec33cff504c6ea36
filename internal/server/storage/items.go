package storage

import (
	"context"
	"time"

	"github.com/iudanet/medsync/internal/transport"
)

// ItemStorage defines persistence for the latest snapshot channel item per path
type ItemStorage interface {
	// SaveItem stores item as the latest value at item.Path.
	// Last-write-wins by version: returns false if the stored version is
	// the same or newer.
	SaveItem(ctx context.Context, item transport.DataItem) (bool, error)

	// GetItem returns the latest item at path.
	// Returns ErrItemNotFound if nothing was published there yet
	GetItem(ctx context.Context, path string) (*transport.DataItem, error)
}

// CommandRecord is one entry of the command journal.
type CommandRecord struct {
	ReceivedAt time.Time `json:"received_at"`
	Path       string    `json:"path"`
	RecordID   string    `json:"record_id"`
	From       string    `json:"from"`
	ID         int64     `json:"id"`
}

// CommandJournal defines persistence for received commands
type CommandJournal interface {
	// LogCommand appends a received command to the journal
	LogCommand(ctx context.Context, rec *CommandRecord) error

	// RecentCommands returns up to limit most recent commands, newest first
	RecentCommands(ctx context.Context, limit int) ([]*CommandRecord, error)
}
