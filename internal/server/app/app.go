// Package app собирает авторитетный узел: хранилище, репозиторий, hub,
// sync service и HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/medsync/internal/clock"
	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/config"
	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/repository"
	"github.com/iudanet/medsync/internal/server/handlers"
	"github.com/iudanet/medsync/internal/server/hub"
	"github.com/iudanet/medsync/internal/server/router"
	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/server/storage/sqlite"
	serversync "github.com/iudanet/medsync/internal/server/sync"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/pkg/api"
)

// App is a fully wired authoritative node
type App struct {
	cfg       *config.ServerConfig
	logger    *slog.Logger
	store     *sqlite.Storage
	repo      *repository.Repository
	hub       *hub.Hub
	svc       *serversync.Service
	snapshots *handlers.SnapshotsHandler
	router    *router.Router
	registry  *prometheus.Registry
	nodeID    string
}

// New opens storage, restores the record list and wires the HTTP API.
// The list is restored from the last stored snapshot; the bootstrap file is
// used only when the database has none.
func New(ctx context.Context, cfg *config.ServerConfig, version string, logger *slog.Logger) (*App, error) {
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	versions := clock.NewVersionClock()
	seed, err := loadSeed(ctx, store, cfg.Bootstrap, versions, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	repo, err := repository.New(seed)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	h := hub.New(store, logger, hub.WithJournal(store))
	snapshots := handlers.NewSnapshotsHandler(logger, h, m)

	rt := router.New(router.Config{
		Logger:   logger,
		Metrics:  m,
		Gatherer: registry,
		Health: handlers.NewHealthHandler(logger, handlers.NodeInfo{
			NodeID:  nodeID,
			Role:    api.RoleAuthoritative,
			Version: version,
		}, store),
		Commands:      handlers.NewCommandsHandler(logger, h, store),
		Snapshots:     snapshots,
		Records:       handlers.NewRecordsHandler(logger, repo),
		CommandRate:   cfg.CommandRateLimit,
		CommandWindow: cfg.CommandRateWindow.Std(),
	})

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		repo:      repo,
		hub:       h,
		svc:       serversync.NewService(repo, h, h, versions, m, logger),
		snapshots: snapshots,
		router:    rt,
		registry:  registry,
		nodeID:    nodeID,
	}, nil
}

// loadSeed восстанавливает список из последнего снапшота в SQLite.
// Версия снапшота передается часам, чтобы следующая публикация была новее
// даже если системное время ушло назад.
func loadSeed(
	ctx context.Context,
	store storage.ItemStorage,
	bootstrap string,
	versions *clock.VersionClock,
	logger *slog.Logger,
) ([]models.Record, error) {
	item, err := store.GetItem(ctx, transport.SnapshotPath)
	switch {
	case err == nil:
		records, err := codec.Decode(item.Payload)
		if err != nil {
			return nil, fmt.Errorf("stored snapshot is unreadable: %w", err)
		}
		versions.Observe(item.Version)
		logger.Info("Restored records from stored snapshot",
			"version", item.Version,
			"records", len(records))
		return records, nil
	case !errors.Is(err, storage.ErrItemNotFound):
		return nil, fmt.Errorf("failed to read stored snapshot: %w", err)
	}

	if bootstrap == "" {
		logger.Info("No stored snapshot, starting with an empty list")
		return nil, nil
	}

	records, err := config.LoadBootstrap(bootstrap)
	if err != nil {
		return nil, err
	}
	logger.Info("Seeded records from bootstrap file", "file", bootstrap, "records", len(records))
	return records, nil
}

// Handler returns the HTTP API
func (a *App) Handler() http.Handler {
	return a.router
}

// Repository returns the authoritative record list
func (a *App) Repository() *repository.Repository {
	return a.repo
}

// NodeID returns the id announced in health checks
func (a *App) NodeID() string {
	return a.nodeID
}

// Start starts the sync service: the current list is published right away
// and commands start being applied.
func (a *App) Start(ctx context.Context) error {
	return a.svc.Start(ctx)
}

// Shutdown closes snapshot streams, stops the sync service and closes storage.
// Streams are hijacked connections, http.Server.Shutdown does not close them.
func (a *App) Shutdown() error {
	a.snapshots.Close()
	a.svc.Stop()
	a.router.Close()
	return a.store.Close()
}

// Run serves HTTP on cfg.Addr until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.store.Close()
		return fmt.Errorf("failed to start sync service: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", a.cfg.Addr, "node_id", a.nodeID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout.Std())
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if closeErr := a.Shutdown(); closeErr != nil {
			a.logger.Error("failed to close storage", "error", closeErr)
		}
		return err
	})

	return g.Wait()
}
