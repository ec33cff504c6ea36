package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/client/api"
	"github.com/iudanet/medsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/medsync/internal/client/sync"
	"github.com/iudanet/medsync/internal/config"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/repository"
	"github.com/iudanet/medsync/internal/server/app"
	pkgapi "github.com/iudanet/medsync/pkg/api"
)

const waitFor = 5 * time.Second

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authoritative - авторитетный узел за httptest сервером, который можно
// перевести в offline: тогда на любой запрос отвечает 503 и считает попытки команд
type authoritative struct {
	node         *app.App
	server       *httptest.Server
	offline      atomic.Bool
	commandPosts atomic.Int32
}

func startAuthoritative(t *testing.T, seed string) *authoritative {
	t.Helper()

	cfg := config.DefaultServerConfig()
	cfg.NodeID = "auth-it"
	cfg.DBPath = filepath.Join(t.TempDir(), "medsync.db")
	cfg.Bootstrap = seed
	cfg.CommandRateLimit = 0

	node, err := app.New(context.Background(), cfg, "it", setupTestLogger())
	require.NoError(t, err)

	a := &authoritative{node: node}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, pkgapi.PathCommands) {
			a.commandPosts.Add(1)
		}
		if a.offline.Load() {
			http.Error(w, "offline", http.StatusServiceUnavailable)
			return
		}
		node.Handler().ServeHTTP(w, r)
	}))

	require.NoError(t, node.Start(context.Background()))
	t.Cleanup(func() {
		_ = node.Shutdown()
		a.server.Close()
	})
	return a
}

type replica struct {
	repo *repository.Repository
	svc  *clientsync.Service
	stop func()
}

func startReplica(t *testing.T, serverURL, cachePath string) *replica {
	t.Helper()

	cache, err := boltdb.New(context.Background(), cachePath)
	require.NoError(t, err)

	client := api.NewClient(serverURL,
		api.WithNodeID("replica-it"),
		api.WithSnapshotCache(cache),
		api.WithLogger(setupTestLogger()),
		api.WithReconnectDelay(10*time.Millisecond, 100*time.Millisecond),
	)

	repo, err := repository.New(nil)
	require.NoError(t, err)

	svc := clientsync.NewService(repo, client, client, nil, setupTestLogger())
	require.NoError(t, svc.Start(context.Background()))

	// кэш закрывается вместе с сервисом: bbolt держит блокировку файла
	var stopped atomic.Bool
	stop := func() {
		if stopped.Swap(true) {
			return
		}
		svc.Stop()
		_ = cache.Close()
	}
	t.Cleanup(stop)

	return &replica{repo: repo, svc: svc, stop: stop}
}

func statusOf(repo *repository.Repository, id string) models.RecordStatus {
	rec, ok := repo.Get(id)
	if !ok {
		return ""
	}
	return rec.Status
}

func TestRoundTrip_AddObserveAndCommand(t *testing.T) {
	auth := startAuthoritative(t, "../config/testdata/bootstrap.yaml")
	rep := startReplica(t, auth.server.URL, filepath.Join(t.TempDir(), "replica.db"))
	ctx := context.Background()

	// Начальный снапшот
	require.Eventually(t, func() bool {
		return len(rep.repo.Current()) == 2
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, auth.node.Repository().Current(), rep.repo.Current())

	// Добавление на авторитетном узле видно на реплике
	added := auth.node.Repository().Add(models.Record{
		Name:           "Ibuprofen",
		Dosage:         "200mg",
		Frequency:      "as needed",
		ScheduledTimes: []string{"14:00"},
	})
	require.Eventually(t, func() bool {
		return statusOf(rep.repo, added.ID) == models.StatusPending
	}, waitFor, 10*time.Millisecond)

	// Команда реплики применяется авторитетным узлом и возвращается снапшотом
	require.NoError(t, <-rep.svc.SendCommand(ctx, added.ID, models.ActionTake))

	require.Eventually(t, func() bool {
		return statusOf(rep.repo, added.ID) == models.StatusTaken
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, models.StatusTaken, statusOf(auth.node.Repository(), added.ID))
	assert.Equal(t, auth.node.Repository().Current(), rep.repo.Current())

	// Команда попала в журнал с id реплики
	resp, err := http.Get(auth.server.URL + pkgapi.PathCommands + "?limit=1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var journal []pkgapi.CommandLogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&journal))
	require.Len(t, journal, 1)
	assert.Equal(t, added.ID, journal[0].RecordID)
	assert.Equal(t, "replica-it", journal[0].From)
}

func TestUnreachablePeer_NoSendAttempt(t *testing.T) {
	auth := startAuthoritative(t, "../config/testdata/bootstrap.yaml")
	rep := startReplica(t, auth.server.URL, filepath.Join(t.TempDir(), "replica.db"))

	require.Eventually(t, func() bool {
		return len(rep.repo.Current()) == 2
	}, waitFor, 10*time.Millisecond)
	before := rep.repo.Current()

	auth.offline.Store(true)

	err := <-rep.svc.SendCommand(context.Background(), before[0].ID, models.ActionSkip)
	assert.ErrorIs(t, err, clientsync.ErrNoReachablePeer)
	assert.Zero(t, auth.commandPosts.Load(), "no command may be sent without a reachable peer")

	assert.Equal(t, before, rep.repo.Current())
	assert.Equal(t, before[0].Status, statusOf(auth.node.Repository(), before[0].ID))
}

// Перезапущенная реплика сразу видит последний снапшот из кэша, даже офлайн
func TestReplicaRestart_SeededFromCache(t *testing.T) {
	auth := startAuthoritative(t, "../config/testdata/bootstrap.yaml")
	cachePath := filepath.Join(t.TempDir(), "replica.db")

	first := startReplica(t, auth.server.URL, cachePath)
	require.Eventually(t, func() bool {
		return len(first.repo.Current()) == 2
	}, waitFor, 10*time.Millisecond)
	mirrored := first.repo.Current()
	first.stop()

	auth.offline.Store(true)

	second := startReplica(t, auth.server.URL, cachePath)
	assert.Equal(t, mirrored, second.repo.Current(), "cache is replayed synchronously on Start")
}

// Снапшот с реплики никогда не публикуется обратно: источник один
func TestReplicaDoesNotEchoSnapshots(t *testing.T) {
	auth := startAuthoritative(t, "")
	rep := startReplica(t, auth.server.URL, filepath.Join(t.TempDir(), "replica.db"))

	added := auth.node.Repository().Add(models.Record{Name: "Aspirin", ScheduledTimes: []string{"08:00"}})
	require.Eventually(t, func() bool {
		return statusOf(rep.repo, added.ID) == models.StatusPending
	}, waitFor, 10*time.Millisecond)

	// Локальная запись на реплике (только ReplaceAll) не должна доходить до авторитетного узла
	require.NoError(t, rep.repo.ReplaceAll(nil))
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, auth.node.Repository().Current(), 1)
	assert.Zero(t, auth.commandPosts.Load())
}
