package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/medsync/internal/client/storage"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/pkg/api"
)

// snapshotStream is one SubscribeSnapshots registration
type snapshotStream struct {
	client  *Client
	handler transport.SnapshotHandler
	path    string

	lastVersion int64
}

// SubscribeSnapshots delivers items published at path.
// The cached item (if any) is delivered before this call returns; the live
// stream then reconnects with backoff until cancel is called. Each version is
// delivered at most once and never after an equal or newer one.
// cancel blocks until the stream goroutine exits and must not be called from handler.
func (c *Client) SubscribeSnapshots(path string, handler transport.SnapshotHandler) (func(), error) {
	if handler == nil {
		return nil, errors.New("snapshot handler is nil")
	}

	s := &snapshotStream{
		client:  c,
		handler: handler,
		path:    path,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.replayCache(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

// replayCache отдает обработчику последний сохраненный снапшот
func (s *snapshotStream) replayCache(ctx context.Context) {
	if s.client.cache == nil {
		return
	}

	item, err := s.client.cache.GetDataItem(ctx, s.path)
	if err != nil {
		if !errors.Is(err, storage.ErrItemNotFound) {
			s.client.logger.Warn("Failed to read snapshot cache", "error", err, "path", s.path)
		}
		return
	}

	s.client.logger.Debug("Replaying cached snapshot", "path", s.path, "version", item.Version)
	s.lastVersion = item.Version
	s.handler(*item)
}

// run переподключается к потоку до отмены ctx
func (s *snapshotStream) run(ctx context.Context) {
	delay := s.client.reconnectMin

	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}

		if connected {
			delay = s.client.reconnectMin
		}
		s.client.logger.Warn("Snapshot stream disconnected, reconnecting",
			"error", err, "retry_in", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		delay = min(delay*2, s.client.reconnectMax)
	}
}

// stream читает один сеанс websocket до ошибки или отмены.
// connected сообщает, удалось ли установить соединение.
func (s *snapshotStream) stream(ctx context.Context) (connected bool, err error) {
	wsURL, err := s.client.streamURL(s.path)
	if err != nil {
		return false, err
	}

	header := http.Header{}
	if s.client.nodeID != "" {
		header.Set(api.HeaderNodeID, s.client.nodeID)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial snapshot stream: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// ReadJSON не принимает ctx: закрываем соединение при отмене
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.client.logger.Info("Snapshot stream connected", "url", wsURL)

	readTimeout := s.client.readTimeout
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var item transport.DataItem
		if err := conn.ReadJSON(&item); err != nil {
			return true, fmt.Errorf("read snapshot: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		s.deliver(ctx, item)
	}
}

// deliver отбрасывает уже виденные версии, кэширует и передает item обработчику
func (s *snapshotStream) deliver(ctx context.Context, item transport.DataItem) {
	if item.Path != s.path || item.Version <= s.lastVersion {
		return
	}
	s.lastVersion = item.Version

	if s.client.cache != nil {
		if _, err := s.client.cache.SaveDataItem(ctx, item); err != nil {
			s.client.logger.Warn("Failed to cache snapshot", "error", err, "version", item.Version)
		}
	}

	s.handler(item)
}

// streamURL строит ws(s):// адрес потока снапшотов
func (c *Client) streamURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + api.PathSnapshotStream)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("path", path)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
