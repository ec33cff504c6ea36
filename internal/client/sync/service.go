package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"

	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/transport"
)

var (
	// ErrNoReachablePeer indicates the command was dropped because no
	// authoritative peer was reachable
	ErrNoReachablePeer = errors.New("no reachable peer")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("sync service already started")

	// ErrStopped indicates the service has been stopped
	ErrStopped = errors.New("sync service stopped")
)

// Repository is the part of the repository the replica side needs.
// Только ReplaceAll: реплика никогда не мутирует данные локально.
type Repository interface {
	ReplaceAll(records []models.Record) error
}

// Service mirrors the authoritative node's record list into the local
// repository and carries user actions to the authoritative node.
type Service struct {
	repo      Repository
	snapshots transport.SnapshotSource
	commands  transport.CommandSender
	metrics   *metrics.Metrics
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu              gosync.Mutex
	applyMu         gosync.Mutex // сериализует применение снапшотов и Stop
	started         bool
	stopped         atomic.Bool
	cancelSnapshots func()
	wg              gosync.WaitGroup
}

// NewService creates a replica sync service. Commands can be sent before
// Start; Start only begins mirroring snapshots.
func NewService(
	repo Repository,
	snapshots transport.SnapshotSource,
	commands transport.CommandSender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		commands:  commands,
		metrics:   m,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins listening on the snapshot channel. Every delivery that
// decodes replaces the local record list; the rest are discarded.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cancelSnapshots, err := s.snapshots.SubscribeSnapshots(transport.SnapshotPath, s.onSnapshot)
	if err != nil {
		return fmt.Errorf("failed to subscribe to snapshots: %w", err)
	}

	s.started = true
	s.cancelSnapshots = cancelSnapshots

	s.logger.Info("Replica sync service started", "path", transport.SnapshotPath)
	return nil
}

// Stop unsubscribes from the snapshot channel and cancels in-flight
// command sends. Safe to call more than once. No snapshot is applied
// after Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped.Swap(true) {
		s.mu.Unlock()
		return
	}
	cancelSnapshots := s.cancelSnapshots
	s.mu.Unlock()

	s.cancel()
	if cancelSnapshots != nil {
		cancelSnapshots()
	}

	// Барьер: ждем применение снапшота, начатое до Stop
	s.applyMu.Lock()
	s.applyMu.Unlock() //nolint:staticcheck

	s.wg.Wait()

	s.logger.Info("Replica sync service stopped")
}

// SendCommand asks the authoritative node to apply action to recordID.
// It returns immediately; the channel receives exactly one value once the
// command was handed to the transport (nil), dropped because no peer was
// reachable (ErrNoReachablePeer) or failed. Callers may ignore it.
// Подтверждение приходит косвенно: следующим снапшотом с новым статусом.
func (s *Service) SendCommand(ctx context.Context, recordID string, action models.Action) <-chan error {
	result := make(chan error, 1)

	path, err := action.Path()
	if err != nil {
		result <- err
		return result
	}

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		result <- ErrStopped
		return result
	}
	s.wg.Add(1)
	s.mu.Unlock()

	sendCtx, cancel := context.WithCancel(ctx)
	stopCancel := context.AfterFunc(s.ctx, cancel)

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stopCancel()

		result <- s.send(sendCtx, recordID, action, path)
	}()

	return result
}

func (s *Service) send(ctx context.Context, recordID string, action models.Action, path string) error {
	peers, err := s.commands.ReachablePeers(ctx)
	if err != nil {
		s.metrics.CommandsDropped.WithLabelValues("discovery_error").Inc()
		s.logger.Warn("Peer discovery failed, dropping command",
			"action", action,
			"record_id", recordID,
			"error", err)
		return fmt.Errorf("peer discovery failed: %w", err)
	}

	if len(peers) == 0 {
		s.metrics.CommandsDropped.WithLabelValues("no_peer").Inc()
		s.logger.Warn("No reachable peer, dropping command",
			"action", action,
			"record_id", recordID)
		return ErrNoReachablePeer
	}

	peer := peers[0]
	if err := s.commands.SendCommand(ctx, peer, path, []byte(recordID)); err != nil {
		s.metrics.CommandsDropped.WithLabelValues("send_error").Inc()
		s.logger.Warn("Failed to send command",
			"action", action,
			"record_id", recordID,
			"peer", peer.ID,
			"error", err)
		return fmt.Errorf("send command: %w", err)
	}

	s.metrics.CommandsSent.WithLabelValues(action.String()).Inc()
	s.logger.Info("Command sent",
		"action", action,
		"record_id", recordID,
		"peer", peer.ID)
	return nil
}

// onSnapshot применяет доставку из snapshot channel. Ошибки не выходят
// за пределы этого метода: плохой снапшот отбрасывается, состояние сохраняется.
func (s *Service) onSnapshot(item transport.DataItem) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.stopped.Load() {
		return
	}

	records, err := codec.Decode(item.Payload)
	if err != nil {
		s.metrics.SnapshotsRejected.Inc()
		s.logger.Warn("Discarding undecodable snapshot",
			"path", item.Path,
			"version", item.Version,
			"error", err)
		return
	}

	if err := s.repo.ReplaceAll(records); err != nil {
		s.metrics.SnapshotsRejected.Inc()
		s.logger.Warn("Failed to apply snapshot",
			"version", item.Version,
			"error", err)
		return
	}

	s.metrics.SnapshotsApplied.Inc()
	s.logger.Debug("Snapshot applied",
		"version", item.Version,
		"records", len(records))
}
