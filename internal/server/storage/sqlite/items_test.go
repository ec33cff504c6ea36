package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/transport"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()
	// Используем in-memory database для тестов
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() { _ = s.Close() }
	return s, cleanup
}

func TestStorage_SaveItem_New(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	saved, err := s.SaveItem(ctx, transport.DataItem{Path: "/medications", Payload: "[]", Version: 10})
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := s.GetItem(ctx, "/medications")
	require.NoError(t, err)
	assert.Equal(t, "/medications", got.Path)
	assert.Equal(t, "[]", got.Payload)
	assert.Equal(t, int64(10), got.Version)
}

func TestStorage_SaveItem_LastWriteWins(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.SaveItem(ctx, transport.DataItem{Path: "/medications", Payload: "v10", Version: 10})
	require.NoError(t, err)

	tests := []struct {
		name        string
		item        transport.DataItem
		wantSaved   bool
		wantPayload string
	}{
		{
			name:        "older version ignored",
			item:        transport.DataItem{Path: "/medications", Payload: "v5", Version: 5},
			wantSaved:   false,
			wantPayload: "v10",
		},
		{
			name:        "same version ignored",
			item:        transport.DataItem{Path: "/medications", Payload: "other", Version: 10},
			wantSaved:   false,
			wantPayload: "v10",
		},
		{
			name:        "newer version replaces",
			item:        transport.DataItem{Path: "/medications", Payload: "v11", Version: 11},
			wantSaved:   true,
			wantPayload: "v11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved, err := s.SaveItem(ctx, tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSaved, saved)

			got, err := s.GetItem(ctx, "/medications")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayload, got.Payload)
		})
	}
}

func TestStorage_SaveItem_PathsIndependent(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.SaveItem(ctx, transport.DataItem{Path: "/a", Payload: "a", Version: 100})
	require.NoError(t, err)
	saved, err := s.SaveItem(ctx, transport.DataItem{Path: "/b", Payload: "b", Version: 1})
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := s.GetItem(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Payload)
}

func TestStorage_GetItem_NotFound(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	got, err := s.GetItem(context.Background(), "/missing")
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
	assert.Nil(t, got)
}

func TestStorage_FileReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/hub.db"

	s, err := New(ctx, path)
	require.NoError(t, err)
	_, err = s.SaveItem(ctx, transport.DataItem{Path: "/medications", Payload: "[]", Version: 42})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Повторное открытие не должно ломаться на уже применённых миграциях
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.GetItem(ctx, "/medications")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Version)
}

func TestStorage_CommandJournal(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"r1", "r2", "r3"} {
		rec := &storage.CommandRecord{
			Path:       "/take",
			RecordID:   id,
			From:       "replica-1",
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.LogCommand(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	recent, err := s.RecentCommands(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].RecordID)
	assert.Equal(t, "r2", recent[1].RecordID)
	assert.Equal(t, "replica-1", recent[0].From)
	assert.True(t, recent[0].ReceivedAt.Equal(base.Add(2*time.Second)))

	none, err := s.RecentCommands(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorage_LogCommand_DefaultsTime(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rec := &storage.CommandRecord{Path: "/skip", RecordID: "x"}
	require.NoError(t, s.LogCommand(ctx, rec))
	assert.False(t, rec.ReceivedAt.IsZero())

	recent, err := s.RecentCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "", recent[0].From)
}
