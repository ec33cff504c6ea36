package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/repository"
	authsync "github.com/iudanet/medsync/internal/server/sync"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/internal/transport/memory"
)

var hubPeer = transport.Peer{ID: "hub", Address: "memory://hub"}

func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newRepo(t *testing.T, seed ...models.Record) *repository.Repository {
	t.Helper()
	repo, err := repository.New(seed)
	require.NoError(t, err)
	return repo
}

func publish(t *testing.T, n *memory.Network, version int64, records []models.Record) {
	t.Helper()
	payload, err := codec.Encode(records)
	require.NoError(t, err)
	require.NoError(t, n.Publish(context.Background(), transport.DataItem{
		Path:    transport.SnapshotPath,
		Payload: payload,
		Version: version,
	}))
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("command result not delivered")
		return nil
	}
}

func TestService_AppliesSnapshots(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)
	m := metrics.NewUnregistered()

	svc := NewService(repo, network, network, m, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	records := []models.Record{
		{ID: "r1", Name: "Aspirin", ScheduledTimes: []string{"09:00"}, Status: models.StatusPending},
	}
	publish(t, network, 1, records)

	assert.Equal(t, records, repo.Current())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SnapshotsApplied))
}

func TestService_ReplicaDoesNotRepublish(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)

	notifications := 0
	sub := repo.Subscribe(func([]models.Record) { notifications++ })
	defer sub.Unsubscribe()

	svc := NewService(repo, network, network, nil, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	publish(t, network, 1, []models.Record{{ID: "r1", Status: models.StatusPending}})
	publish(t, network, 2, []models.Record{{ID: "r1", Status: models.StatusTaken}})

	// Только начальная доставка при подписке
	assert.Equal(t, 1, notifications)
	assert.Equal(t, 2, network.Published())
}

func TestService_SeededFromPersistedSnapshotOnStart(t *testing.T) {
	network := memory.NewNetwork(hubPeer)
	publish(t, network, 7, []models.Record{{ID: "r1", Status: models.StatusSkipped}})

	repo := newRepo(t)
	svc := NewService(repo, network, network, nil, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	current := repo.Current()
	require.Len(t, current, 1)
	assert.Equal(t, models.StatusSkipped, current[0].Status)
}

func TestService_DecodeFailureKeepsState(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)
	m := metrics.NewUnregistered()

	svc := NewService(repo, network, network, m, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	good := []models.Record{{ID: "r1", ScheduledTimes: []string{}, Status: models.StatusPending}}
	publish(t, network, 1, good)

	bad := []string{
		`not json`,
		`[{"id":"r1","status":"EATEN"}]`,
		`[{"id":"r1","name":"n","dosage":"d","frequency":"f","scheduledTimes":[],"instructions":"","startDate":"","endDate":"","status":"BOGUS"}]`,
	}
	for i, payload := range bad {
		assert.NotPanics(t, func() {
			require.NoError(t, network.Publish(context.Background(), transport.DataItem{
				Path:    transport.SnapshotPath,
				Payload: payload,
				Version: int64(10 + i),
			}))
		})
	}

	assert.Equal(t, good, repo.Current())
	assert.Equal(t, float64(len(bad)), testutil.ToFloat64(m.SnapshotsRejected))
}

func TestService_SendCommand(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)
	m := metrics.NewUnregistered()

	var received []transport.Command
	cancel, err := network.ListenCommands(func(_ context.Context, cmd transport.Command) {
		received = append(received, cmd)
	})
	require.NoError(t, err)
	defer cancel()

	svc := NewService(repo, network, network, m, setupTestLogger())
	defer svc.Stop()

	tests := []struct {
		action models.Action
		path   string
	}{
		{models.ActionTake, "/take"},
		{models.ActionSkip, "/skip"},
		{models.ActionSnooze, "/snooze"},
	}
	for _, tt := range tests {
		require.NoError(t, waitResult(t, svc.SendCommand(context.Background(), "rec-42", tt.action)))
	}

	require.Len(t, received, 3)
	for i, tt := range tests {
		assert.Equal(t, tt.path, received[i].Path)
		assert.Equal(t, []byte("rec-42"), received[i].Payload)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSent.WithLabelValues("SNOOZE")))
}

func TestService_SendCommand_UnreachablePeer(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)
	network.SetReachable(false)
	m := metrics.NewUnregistered()

	svc := NewService(repo, network, network, m, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	var err error
	assert.NotPanics(t, func() {
		err = waitResult(t, svc.SendCommand(context.Background(), "r1", models.ActionTake))
	})
	assert.ErrorIs(t, err, ErrNoReachablePeer)
	assert.Zero(t, network.SendAttempts(), "no command channel send must be attempted")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsDropped.WithLabelValues("no_peer")))
}

func TestService_SendCommand_WithMock(t *testing.T) {
	sendErr := errors.New("connection reset")
	sender := &transport.CommandSenderMock{
		ReachablePeersFunc: func(ctx context.Context) ([]transport.Peer, error) {
			return []transport.Peer{{ID: "watch-hub", Address: "http://hub"}}, nil
		},
		SendCommandFunc: func(ctx context.Context, peer transport.Peer, path string, payload []byte) error {
			return sendErr
		},
	}
	network := memory.NewNetwork(hubPeer)

	svc := NewService(newRepo(t), network, sender, nil, setupTestLogger())
	defer svc.Stop()

	err := waitResult(t, svc.SendCommand(context.Background(), "r1", models.ActionSkip))
	assert.ErrorIs(t, err, sendErr)

	calls := sender.SendCommandCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "watch-hub", calls[0].Peer.ID)
	assert.Equal(t, "/skip", calls[0].Path)
	assert.Equal(t, []byte("r1"), calls[0].Payload)
}

func TestService_SendCommand_DiscoveryError(t *testing.T) {
	sender := &transport.CommandSenderMock{
		ReachablePeersFunc: func(ctx context.Context) ([]transport.Peer, error) {
			return nil, errors.New("bluetooth off")
		},
	}
	svc := NewService(newRepo(t), memory.NewNetwork(hubPeer), sender, nil, setupTestLogger())
	defer svc.Stop()

	err := waitResult(t, svc.SendCommand(context.Background(), "r1", models.ActionTake))
	require.Error(t, err)
	assert.Empty(t, sender.SendCommandCalls())
}

func TestService_SendCommand_UnknownAction(t *testing.T) {
	sender := &transport.CommandSenderMock{}
	svc := NewService(newRepo(t), memory.NewNetwork(hubPeer), sender, nil, setupTestLogger())
	defer svc.Stop()

	err := waitResult(t, svc.SendCommand(context.Background(), "r1", models.Action("EAT")))
	require.Error(t, err)
	assert.Empty(t, sender.ReachablePeersCalls())
}

func TestService_StopCancelsInFlightSend(t *testing.T) {
	entered := make(chan struct{})
	sender := &transport.CommandSenderMock{
		ReachablePeersFunc: func(ctx context.Context) ([]transport.Peer, error) {
			return []transport.Peer{hubPeer}, nil
		},
		SendCommandFunc: func(ctx context.Context, peer transport.Peer, path string, payload []byte) error {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	svc := NewService(newRepo(t), memory.NewNetwork(hubPeer), sender, nil, setupTestLogger())

	result := svc.SendCommand(context.Background(), "r1", models.ActionTake)
	<-entered

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel in-flight send")
	}
	assert.ErrorIs(t, waitResult(t, result), context.Canceled)

	// После Stop новые команды не отправляются
	assert.ErrorIs(t, waitResult(t, svc.SendCommand(context.Background(), "r1", models.ActionTake)), ErrStopped)
}

func TestService_StopIsIdempotentAndFinal(t *testing.T) {
	repo := newRepo(t)
	network := memory.NewNetwork(hubPeer)

	svc := NewService(repo, network, network, nil, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))

	svc.Stop()
	svc.Stop()

	publish(t, network, 1, []models.Record{{ID: "late", Status: models.StatusPending}})
	assert.Empty(t, repo.Current())

	assert.ErrorIs(t, svc.Start(context.Background()), ErrStopped)
}

func TestService_StartTwice(t *testing.T) {
	network := memory.NewNetwork(hubPeer)
	svc := NewService(newRepo(t), network, network, nil, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
}

// TestCommandRoundTrip проверяет полный цикл: команда реплики применяется
// авторитетным узлом и возвращается к реплике новым снапшотом.
func TestCommandRoundTrip(t *testing.T) {
	ctx := context.Background()
	network := memory.NewNetwork(hubPeer)

	hubRepo := newRepo(t, models.Record{
		ID:             "r",
		Name:           "Lisinopril",
		Dosage:         "10mg",
		Frequency:      "Daily",
		ScheduledTimes: []string{"08:00"},
		Status:         models.StatusPending,
	})
	hub := authsync.NewService(hubRepo, network, network, nil, nil, setupTestLogger())
	require.NoError(t, hub.Start(ctx))
	defer hub.Stop()

	replicaRepo := newRepo(t)
	replica := NewService(replicaRepo, network, network, nil, setupTestLogger())
	require.NoError(t, replica.Start(ctx))
	defer replica.Stop()

	// Реплика получает начальный снапшот
	require.Eventually(t, func() bool {
		current := replicaRepo.Current()
		return len(current) == 1 && current[0].Status == models.StatusPending
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, waitResult(t, replica.SendCommand(ctx, "r", models.ActionTake)))

	require.Eventually(t, func() bool {
		current := replicaRepo.Current()
		return len(current) == 1 && current[0].Status == models.StatusTaken
	}, time.Second, 5*time.Millisecond)

	// Остальные поля не изменились
	got := replicaRepo.Current()[0]
	assert.Equal(t, "Lisinopril", got.Name)
	assert.Equal(t, []string{"08:00"}, got.ScheduledTimes)
}
