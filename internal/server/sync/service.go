package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"

	"github.com/iudanet/medsync/internal/clock"
	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/repository"
	"github.com/iudanet/medsync/internal/transport"
)

var (
	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("sync service already started")

	// ErrStopped indicates the service has been stopped and cannot be restarted
	ErrStopped = errors.New("sync service stopped")
)

// Repository is the part of the repository the authoritative side needs.
type Repository interface {
	Subscribe(fn repository.Listener) *repository.Subscription
	UpdateStatus(id string, status models.RecordStatus) bool
}

// Service makes the authoritative repository the origin of every snapshot
// publication and the sink of every command.
type Service struct {
	repo      Repository
	publisher transport.SnapshotPublisher
	commands  transport.CommandSource
	versions  *clock.VersionClock
	metrics   *metrics.Metrics
	logger    *slog.Logger

	lifeMu         gosync.RWMutex // удерживается обработчиком команды на время вызова
	mu             gosync.Mutex
	started        bool
	stopped        atomic.Bool
	sub            *repository.Subscription
	cancelCommands func()
	cancel         context.CancelFunc
	wg             gosync.WaitGroup

	// слот последнего неопубликованного снапшота, промежуточные схлопываются
	pendingMu  gosync.Mutex
	pending    []models.Record
	hasPending bool
	wake       chan struct{}
}

// NewService creates an authoritative sync service.
func NewService(
	repo Repository,
	publisher transport.SnapshotPublisher,
	commands transport.CommandSource,
	versions *clock.VersionClock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if versions == nil {
		versions = clock.NewVersionClock()
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		commands:  commands,
		versions:  versions,
		metrics:   m,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Start subscribes to local repository changes and begins listening for
// commands. The current state is published right away.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	cancelCommands, err := s.commands.ListenCommands(s.handleCommand)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to listen for commands: %w", err)
	}

	s.started = true
	s.cancel = cancel
	s.cancelCommands = cancelCommands

	s.wg.Add(1)
	go s.publishLoop(runCtx)

	// Subscribe сразу вызывает enqueue с текущим состоянием
	s.sub = s.repo.Subscribe(s.enqueue)

	s.logger.Info("Authoritative sync service started", "path", transport.SnapshotPath)
	return nil
}

// Stop unsubscribes, stops listening for commands, cancels an in-flight
// publish and waits for background work. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Swap(true) {
		return
	}

	s.pendingMu.Lock()
	s.pending = nil
	s.hasPending = false
	s.pendingMu.Unlock()

	// Дожидаемся завершения обработчиков команд, начатых до Stop
	s.lifeMu.Lock()
	s.lifeMu.Unlock() //nolint:staticcheck

	if !s.started {
		return
	}

	s.sub.Unsubscribe()
	s.cancelCommands()
	s.cancel()
	s.wg.Wait()

	s.logger.Info("Authoritative sync service stopped")
}

// OnCommand applies a command received from the replica as a local
// mutation. The resulting notification publishes a fresh snapshot, which is
// how the replica learns the command was applied. Returns false when no
// record matched recordID.
func (s *Service) OnCommand(action models.Action, recordID string) (bool, error) {
	status, err := action.Status()
	if err != nil {
		return false, err
	}

	updated := s.repo.UpdateStatus(recordID, status)
	if !updated {
		s.logger.Warn("Command for unknown record ignored",
			"action", action,
			"record_id", recordID)
		return false, nil
	}

	s.logger.Info("Command applied",
		"action", action,
		"record_id", recordID,
		"status", status)
	return true, nil
}

// handleCommand разбирает доставку из command channel
func (s *Service) handleCommand(ctx context.Context, cmd transport.Command) {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()

	if s.stopped.Load() {
		return
	}

	action, err := models.ActionFromPath(cmd.Path)
	if err != nil {
		s.metrics.CommandsRejected.Inc()
		s.logger.Warn("Dropping command with unknown path", "path", cmd.Path, "from", cmd.From)
		return
	}

	recordID := string(cmd.Payload)
	if recordID == "" {
		s.metrics.CommandsRejected.Inc()
		s.logger.Warn("Dropping command with empty record id", "path", cmd.Path, "from", cmd.From)
		return
	}

	s.metrics.CommandsReceived.WithLabelValues(action.String()).Inc()
	s.logger.Debug("Command received", "action", action, "record_id", recordID, "from", cmd.From)

	if _, err := s.OnCommand(action, recordID); err != nil {
		s.logger.Warn("Failed to apply command", "action", action, "record_id", recordID, "error", err)
	}
}

// enqueue - callback подписки на репозиторий. Выполняется синхронно внутри
// мутации, поэтому только кладет снапшот в слот и будит publisher.
func (s *Service) enqueue(records []models.Record) {
	s.pendingMu.Lock()
	if s.stopped.Load() {
		s.pendingMu.Unlock()
		return
	}
	s.pending = records
	s.hasPending = true
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) takePending() ([]models.Record, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if !s.hasPending {
		return nil, false
	}
	records := s.pending
	s.pending = nil
	s.hasPending = false
	return records, true
}

func (s *Service) publishLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		records, ok := s.takePending()
		if !ok {
			continue
		}
		s.publish(ctx, records)
	}
}

// publish кодирует и публикует снапшот. Ошибка логируется и снапшот
// отбрасывается: повторной отправки нет, доставку обеспечит следующее изменение.
func (s *Service) publish(ctx context.Context, records []models.Record) {
	payload, err := codec.Encode(records)
	if err != nil {
		s.metrics.PublishFailures.Inc()
		s.logger.Error("Failed to encode snapshot", "error", err, "records", len(records))
		return
	}

	item := transport.DataItem{
		Path:    transport.SnapshotPath,
		Payload: payload,
		Version: s.versions.Next(),
	}

	if err := s.publisher.Publish(ctx, item); err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("Snapshot publish cancelled", "version", item.Version)
			return
		}
		s.metrics.PublishFailures.Inc()
		s.logger.Warn("Failed to publish snapshot, dropping",
			"version", item.Version,
			"records", len(records),
			"error", err)
		return
	}

	s.metrics.SnapshotsPublished.Inc()
	s.logger.Info("Snapshot published",
		"path", item.Path,
		"version", item.Version,
		"records", len(records))
}
