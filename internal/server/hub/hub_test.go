package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/server/storage/sqlite"
	"github.com/iudanet/medsync/internal/transport"
)

func newTestHub(t *testing.T, opts ...Option) (*Hub, *sqlite.Storage) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), store
}

func receive(t *testing.T, sub *Subscriber) transport.DataItem {
	t.Helper()

	select {
	case item := <-sub.Updates():
		return item
	case <-time.After(time.Second):
		t.Fatal("no item delivered")
		return transport.DataItem{}
	}
}

func TestHub_PublishStoresAndBroadcasts(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	sub := h.Attach(transport.SnapshotPath)
	defer h.Detach(sub)
	other := h.Attach("/other")
	defer h.Detach(other)

	item := transport.DataItem{Path: transport.SnapshotPath, Payload: "[]", Version: 7}
	require.NoError(t, h.Publish(ctx, item))

	assert.Equal(t, item, receive(t, sub))
	assert.Empty(t, other.Updates())

	latest, err := h.Latest(ctx, transport.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, item, *latest)
}

func TestHub_PublishStaleNotBroadcast(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Publish(ctx, transport.DataItem{Path: transport.SnapshotPath, Payload: "new", Version: 10}))

	sub := h.Attach(transport.SnapshotPath)
	defer h.Detach(sub)

	require.NoError(t, h.Publish(ctx, transport.DataItem{Path: transport.SnapshotPath, Payload: "old", Version: 9}))
	assert.Empty(t, sub.Updates())

	latest, err := h.Latest(ctx, transport.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.Payload)
}

func TestHub_SlowSubscriberSeesLatest(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	sub := h.Attach(transport.SnapshotPath)
	defer h.Detach(sub)

	for v := int64(1); v <= 5; v++ {
		require.NoError(t, h.Publish(ctx, transport.DataItem{Path: transport.SnapshotPath, Payload: "p", Version: v}))
	}

	assert.Equal(t, int64(5), receive(t, sub).Version)
	assert.Empty(t, sub.Updates())
}

func TestHub_Detach(t *testing.T) {
	h, _ := newTestHub(t)

	sub := h.Attach(transport.SnapshotPath)
	assert.Equal(t, 1, h.Subscribers())

	h.Detach(sub)
	h.Detach(sub)
	assert.Equal(t, 0, h.Subscribers())

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed")
	}

	require.NoError(t, h.Publish(context.Background(), transport.DataItem{Path: transport.SnapshotPath, Version: 1}))
	assert.Empty(t, sub.Updates())
}

func TestHub_LatestNotFound(t *testing.T) {
	h, _ := newTestHub(t)

	_, err := h.Latest(context.Background(), transport.SnapshotPath)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func TestHub_PublishCancelled(t *testing.T) {
	h, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Publish(ctx, transport.DataItem{Path: transport.SnapshotPath, Version: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHub_DispatchCommand(t *testing.T) {
	_, store := newTestHub(t)
	h := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), WithJournal(store))
	ctx := context.Background()

	cmd := transport.Command{Path: "/take", From: "replica", Payload: []byte("rec-1")}

	err := h.DispatchCommand(ctx, cmd)
	assert.ErrorIs(t, err, transport.ErrNoCommandListener)

	var got []transport.Command
	cancel, err := h.ListenCommands(func(_ context.Context, c transport.Command) {
		got = append(got, c)
	})
	require.NoError(t, err)

	require.NoError(t, h.DispatchCommand(ctx, cmd))
	require.Len(t, got, 1)
	assert.Equal(t, cmd, got[0])

	journal, err := store.RecentCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, "rec-1", journal[0].RecordID)
	assert.Equal(t, "replica", journal[0].From)

	cancel()
	cancel()
	err = h.DispatchCommand(ctx, cmd)
	assert.ErrorIs(t, err, transport.ErrNoCommandListener)
	assert.Len(t, got, 1)
}

type failingJournal struct{}

func (failingJournal) LogCommand(context.Context, *storage.CommandRecord) error {
	return errors.New("disk full")
}

func (failingJournal) RecentCommands(context.Context, int) ([]*storage.CommandRecord, error) {
	return nil, nil
}

func TestHub_DispatchCommand_JournalFailure(t *testing.T) {
	h, _ := newTestHub(t, WithJournal(failingJournal{}))

	delivered := 0
	_, err := h.ListenCommands(func(context.Context, transport.Command) { delivered++ })
	require.NoError(t, err)

	require.NoError(t, h.DispatchCommand(context.Background(), transport.Command{Path: "/skip", Payload: []byte("x")}))
	assert.Equal(t, 1, delivered)
}
