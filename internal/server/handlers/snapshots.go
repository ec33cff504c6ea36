package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/server/hub"
	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/transport"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotHub is the snapshot channel as seen by HTTP clients
type SnapshotHub interface {
	Latest(ctx context.Context, path string) (*transport.DataItem, error)
	Attach(path string) *hub.Subscriber
	Detach(sub *hub.Subscriber)
}

// SnapshotsHandler отдает последний снапшот и поток новых снапшотов
type SnapshotsHandler struct {
	logger   *slog.Logger
	hub      SnapshotHub
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	quit    chan struct{}
	streams sync.WaitGroup
	mu      sync.Mutex
	closing bool
}

// NewSnapshotsHandler creates a new snapshots handler
func NewSnapshotsHandler(logger *slog.Logger, h SnapshotHub, m *metrics.Metrics) *SnapshotsHandler {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &SnapshotsHandler{
		logger:  logger,
		hub:     h,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		quit: make(chan struct{}),
	}
}

// Close завершает все открытые потоки и ждет их.
// Hijacked соединения не закрываются http.Server.Shutdown.
func (h *SnapshotsHandler) Close() {
	h.mu.Lock()
	if !h.closing {
		h.closing = true
		close(h.quit)
	}
	h.mu.Unlock()

	h.streams.Wait()
}

// beginStream регистрирует поток, если обработчик еще не закрыт
func (h *SnapshotsHandler) beginStream() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.streams.Add(1)
	return true
}

func snapshotPath(r *http.Request) string {
	if p := r.URL.Query().Get("path"); p != "" {
		return p
	}
	return transport.SnapshotPath
}

// Latest обрабатывает GET /api/v1/snapshots?path=...
func (h *SnapshotsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := snapshotPath(r)

	item, err := h.hub.Latest(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			sendError(w, h.logger, "no snapshot published yet", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load snapshot", slog.Any("error", err), slog.String("path", path))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(w, h.logger, item, http.StatusOK)
}

// Stream обрабатывает GET /api/v1/snapshots/ws?path=...
// Сначала отправляется последний сохраненный снапшот, затем каждый более новый.
func (h *SnapshotsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if !h.beginStream() {
		sendError(w, h.logger, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.streams.Done()

	path := snapshotPath(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.Close() }()

	// Подписываемся до чтения последнего значения, чтобы не пропустить публикацию между ними
	sub := h.hub.Attach(path)
	defer h.hub.Detach(sub)

	h.metrics.SnapshotStreams.Inc()
	defer h.metrics.SnapshotStreams.Dec()

	h.logger.Info("snapshot stream opened", slog.String("path", path), slog.String("remote_addr", r.RemoteAddr))
	defer h.logger.Info("snapshot stream closed", slog.String("path", path), slog.String("remote_addr", r.RemoteAddr))

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	var lastVersion int64
	send := func(item transport.DataItem) bool {
		if item.Version <= lastVersion {
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(item); err != nil {
			h.logger.Debug("snapshot stream write failed", slog.Any("error", err))
			return false
		}
		lastVersion = item.Version
		return true
	}

	latest, err := h.hub.Latest(r.Context(), path)
	switch {
	case err == nil:
		if !send(*latest) {
			return
		}
	case !errors.Is(err, storage.ErrItemNotFound):
		h.logger.Error("failed to load snapshot for stream", slog.Any("error", err), slog.String("path", path))
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case item := <-sub.Updates():
			if !send(item) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump читает управляющие фреймы до закрытия соединения.
// Клиент ничего не отправляет в этот поток.
func (h *SnapshotsHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("snapshot stream read error", slog.Any("error", err))
			}
			return
		}
	}
}
