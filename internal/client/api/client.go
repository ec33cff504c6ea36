package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/medsync/internal/client/storage"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/pkg/api"
)

var (
	// ErrSnapshotNotFound indicates the authoritative node has not published yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNotAuthoritative indicates the peer answered but is not the authoritative node
	ErrNotAuthoritative = errors.New("peer is not authoritative")
)

var (
	_ transport.SnapshotSource = (*Client)(nil)
	_ transport.CommandSender  = (*Client)(nil)
)

// StatusError is a non-2xx answer from the authoritative node
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client представляет HTTP клиент реплики для взаимодействия с авторитетным узлом
type Client struct {
	httpClient *http.Client
	cache      storage.SnapshotCache
	logger     *slog.Logger
	baseURL    string
	nodeID     string

	reconnectMin time.Duration
	reconnectMax time.Duration
	readTimeout  time.Duration
}

// Option настраивает Client
type Option func(*Client)

// WithNodeID sets the X-Node-ID sent with every request
func WithNodeID(nodeID string) Option {
	return func(c *Client) { c.nodeID = nodeID }
}

// WithSnapshotCache persists delivered snapshots and replays them on subscribe
func WithSnapshotCache(cache storage.SnapshotCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReconnectDelay sets the backoff bounds of the snapshot stream
func WithReconnectDelay(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.reconnectMin = minDelay
		c.reconnectMax = maxDelay
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		reconnectMin: 500 * time.Millisecond,
		reconnectMax: 30 * time.Second,
		readTimeout:  90 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the authoritative node address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health запрашивает health check авторитетного узла
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, api.PathHealth, nil, "", &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// ReachablePeers returns the authoritative node if it answers its health check.
// An unreachable node is not an error: the result is simply empty.
func (c *Client) ReachablePeers(ctx context.Context) ([]transport.Peer, error) {
	health, err := c.Health(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug("Peer health check failed", "address", c.baseURL, "error", err)
		return []transport.Peer{}, nil
	}

	if health.Role != api.RoleAuthoritative || health.Status != "ok" {
		c.logger.Debug("Peer is not an available authoritative node",
			"address", c.baseURL, "role", health.Role, "status", health.Status)
		return []transport.Peer{}, nil
	}

	return []transport.Peer{{ID: health.NodeID, Address: c.baseURL}}, nil
}

// SendCommand posts payload (the record id) to the command path on peer.
// Returns once the request has been accepted; there is no retry.
func (c *Client) SendCommand(ctx context.Context, peer transport.Peer, path string, payload []byte) error {
	address := strings.TrimRight(peer.Address, "/")
	if address == "" {
		address = c.baseURL
	}

	target := address + api.PathCommands + path
	err := c.doRawRequest(ctx, http.MethodPost, target, bytes.NewReader(payload), "text/plain; charset=utf-8", nil)
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %w", transport.ErrNoCommandListener, err)
	case errors.As(err, &statusErr):
		return err
	case ctx.Err() != nil:
		return err
	default:
		return fmt.Errorf("%w: %w", transport.ErrPeerUnreachable, err)
	}
}

// LatestSnapshot fetches the latest item at path over plain HTTP
func (c *Client) LatestSnapshot(ctx context.Context, path string) (*transport.DataItem, error) {
	var item transport.DataItem
	err := c.doRequest(ctx, http.MethodGet, api.PathSnapshots+"?path="+url.QueryEscape(path), nil, "", &item)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	return &item, nil
}

// doRequest выполняет JSON запрос к baseURL
func (c *Client) doRequest(ctx context.Context, method, path string, body any, contentType string, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		contentType = "application/json"
	}

	return c.doRawRequest(ctx, method, c.baseURL+path, bodyReader, contentType, result)
}

// doRawRequest выполняет HTTP запрос и декодирует JSON ответ в result
func (c *Client) doRawRequest(ctx context.Context, method, target string, body io.Reader, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.nodeID != "" {
		req.Header.Set(api.HeaderNodeID, c.nodeID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Message}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
