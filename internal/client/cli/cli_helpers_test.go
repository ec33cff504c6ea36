package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/pkg/api"
)

// syncBuffer - bytes.Buffer, безопасный для записи из горутин watch
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type receivedCommand struct {
	Path     string
	RecordID string
	NodeID   string
}

// fakeNode имитирует HTTP API авторитетного узла
type fakeNode struct {
	server   *httptest.Server
	item     *transport.DataItem
	commands []receivedCommand
	mu       sync.Mutex
}

func newFakeNode(t *testing.T, item *transport.DataItem) *fakeNode {
	t.Helper()

	node := &fakeNode{item: item}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.HealthResponse{
			Status:  "ok",
			Version: "test",
			NodeID:  "auth-test",
			Role:    api.RoleAuthoritative,
		})
	})
	mux.HandleFunc("POST "+api.PathCommands+"/{action}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		node.mu.Lock()
		node.commands = append(node.commands, receivedCommand{
			Path:     "/" + r.PathValue("action"),
			RecordID: string(body),
			NodeID:   r.Header.Get(api.HeaderNodeID),
		})
		node.mu.Unlock()
		writeJSON(w, http.StatusAccepted, api.CommandResponse{Action: r.PathValue("action"), RecordID: string(body)})
	})
	mux.HandleFunc("GET "+api.PathSnapshots, func(w http.ResponseWriter, r *http.Request) {
		latest := node.latest()
		if latest == nil {
			writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "not_found", Message: "no snapshot"})
			return
		}
		writeJSON(w, http.StatusOK, latest)
	})
	mux.HandleFunc("GET "+api.PathSnapshotStream, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		if latest := node.latest(); latest != nil {
			if err := conn.WriteJSON(latest); err != nil {
				return
			}
		}
		// держим соединение, пока клиент не отключится
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	node.server = httptest.NewServer(mux)
	t.Cleanup(node.server.Close)
	return node
}

func (n *fakeNode) URL() string {
	return n.server.URL
}

func (n *fakeNode) latest() *transport.DataItem {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.item == nil {
		return nil
	}
	item := *n.item
	return &item
}

func (n *fakeNode) setItem(item transport.DataItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.item = &item
}

func (n *fakeNode) received() []receivedCommand {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]receivedCommand(nil), n.commands...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func snapshotItem(t *testing.T, version int64, records ...models.Record) *transport.DataItem {
	t.Helper()
	payload, err := codec.Encode(records)
	require.NoError(t, err)
	return &transport.DataItem{Path: transport.SnapshotPath, Payload: payload, Version: version}
}

func sampleRecords() []models.Record {
	return []models.Record{
		{ID: "r1", Name: "Aspirin", Dosage: "100mg", Frequency: "daily", ScheduledTimes: []string{"08:00"}, Status: models.StatusPending},
		{ID: "r2", Name: "Metformin", Dosage: "500mg", Frequency: "twice daily", ScheduledTimes: []string{"09:00", "21:00"}, Status: models.StatusTaken},
	}
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache", "replica.db")
}

// execute запускает корневую команду с аргументами и возвращает stdout
func execute(ctx context.Context, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out, errOut syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
