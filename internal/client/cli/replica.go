package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/medsync/internal/client/api"
	"github.com/iudanet/medsync/internal/client/iocli"
	"github.com/iudanet/medsync/internal/client/storage"
	"github.com/iudanet/medsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/medsync/internal/client/sync"
	"github.com/iudanet/medsync/internal/config"
	"github.com/iudanet/medsync/internal/repository"
	"github.com/iudanet/medsync/internal/transport"
)

// replica собирает зависимости реплики для одной команды CLI
type replica struct {
	cfg    *config.ClientConfig
	logger *slog.Logger
	cache  *boltdb.Storage
	client *api.Client
	repo   *repository.Repository
	svc    *clientsync.Service
	nodeID string
}

// loadConfig читает конфиг и применяет глобальные флаги поверх него
func loadConfig(opts *RootOptions) (*config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if opts.CachePath != "" {
		cfg.CachePath = opts.CachePath
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openReplica(ctx context.Context, opts *RootOptions, errOut io.Writer) (*replica, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := cfg.Log.NewLogger(errOut)

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create cache directory", err)
	}

	cache, err := boltdb.New(ctx, cfg.CachePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open snapshot cache", err)
	}

	nodeID, err := cache.NodeID(ctx)
	if err != nil {
		_ = cache.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load node id", err)
	}

	client := api.NewClient(cfg.ServerURL,
		api.WithNodeID(nodeID),
		api.WithSnapshotCache(cache),
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout.Std()}),
		api.WithReconnectDelay(cfg.ReconnectMin.Std(), cfg.ReconnectMax.Std()),
	)

	repo, err := repository.New(nil)
	if err != nil {
		_ = cache.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create repository", err)
	}

	logger.Debug("Replica opened", "node_id", nodeID, "server", cfg.ServerURL, "cache", cfg.CachePath)

	return &replica{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		client: client,
		repo:   repo,
		svc:    clientsync.NewService(repo, client, client, nil, logger),
		nodeID: nodeID,
	}, nil
}

// Close останавливает sync service и закрывает кэш
func (r *replica) Close() {
	r.svc.Stop()
	if err := r.cache.Close(); err != nil {
		r.logger.Error("failed to close snapshot cache", "error", err)
	}
}

// touch запоминает время последнего примененного снапшота
func (r *replica) touch(ctx context.Context) {
	if err := r.cache.SaveLastSyncTimestamp(ctx, time.Now().UnixMilli()); err != nil {
		r.logger.Warn("failed to save last sync timestamp", "error", err)
	}
}

// snapshot возвращает снапшот из кэша, а если его нет (или remote) - с сервера.
// Полученный с сервера снапшот кэшируется.
func (r *replica) snapshot(ctx context.Context, remote bool) (*transport.DataItem, error) {
	if !remote {
		item, err := r.cache.GetDataItem(ctx, transport.SnapshotPath)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, storage.ErrItemNotFound) {
			return nil, WrapExitError(ExitCommandError, "failed to read snapshot cache", err)
		}
		r.logger.Debug("Snapshot cache is empty, asking the authoritative node")
	}

	item, err := r.client.LatestSnapshot(ctx, transport.SnapshotPath)
	if err != nil {
		if errors.Is(err, api.ErrSnapshotNotFound) {
			return nil, NewExitError(ExitFailure, "no snapshot available yet")
		}
		return nil, WrapExitError(ExitFailure, "authoritative node unreachable", err)
	}

	if _, err := r.cache.SaveDataItem(ctx, *item); err != nil {
		r.logger.Warn("failed to cache snapshot", "version", item.Version, "error", err)
	}
	r.touch(ctx)
	return item, nil
}

// outputFor связывает вывод команды с iocli
func outputFor(cmd *cobra.Command) iocli.IO {
	return iocli.NewWriter(cmd.OutOrStdout())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}

func describeVersion(v int64) string {
	if v == 0 {
		return "none"
	}
	return fmt.Sprintf("%d (%s)", v, formatTimestamp(v))
}
