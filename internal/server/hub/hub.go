// Package hub is the authoritative node's side of the snapshot and command
// channels: it persists the latest item per path, fans it out to live
// subscribers and routes incoming commands to the registered listener.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/transport"
)

var (
	_ transport.SnapshotPublisher = (*Hub)(nil)
	_ transport.CommandSource     = (*Hub)(nil)
)

// Hub connects the authoritative sync service with remote replicas
type Hub struct {
	store   storage.ItemStorage
	journal storage.CommandJournal
	logger  *slog.Logger

	subs map[*Subscriber]struct{}

	listeners map[uint64]transport.CommandHandler
	nextID    uint64

	mu sync.RWMutex
}

// Option настраивает Hub
type Option func(*Hub)

// WithJournal records every dispatched command in journal
func WithJournal(journal storage.CommandJournal) Option {
	return func(h *Hub) {
		h.journal = journal
	}
}

// New creates a hub backed by store
func New(store storage.ItemStorage, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		store:     store,
		logger:    logger,
		subs:      make(map[*Subscriber]struct{}),
		listeners: make(map[uint64]transport.CommandHandler),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Publish persists item and pushes it to every subscriber of item.Path.
// An item not newer than the stored one is accepted but not broadcast.
func (h *Hub) Publish(ctx context.Context, item transport.DataItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	saved, err := h.store.SaveItem(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to store data item: %w", err)
	}
	if !saved {
		h.logger.Debug("Stale data item ignored", "path", item.Path, "version", item.Version)
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.path == item.Path {
			sub.offer(item)
		}
	}

	return nil
}

// Latest returns the stored item at path.
// Returns storage.ErrItemNotFound if nothing was published there yet.
func (h *Hub) Latest(ctx context.Context, path string) (*transport.DataItem, error) {
	return h.store.GetItem(ctx, path)
}

// Attach registers a live subscriber for path.
// The caller must Detach it when done.
func (h *Hub) Attach(path string) *Subscriber {
	sub := newSubscriber(path)

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Detach removes sub; safe to call more than once
func (h *Hub) Detach(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()

	sub.close()
}

// Subscribers returns the number of attached subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ListenCommands registers handler for incoming commands
func (h *Hub) ListenCommands(handler transport.CommandHandler) (func(), error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}, nil
}

// DispatchCommand hands cmd to the registered listeners.
// Returns transport.ErrNoCommandListener when nobody listens.
func (h *Hub) DispatchCommand(ctx context.Context, cmd transport.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	handlers := make([]transport.CommandHandler, 0, len(h.listeners))
	for _, handler := range h.listeners {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	if len(handlers) == 0 {
		return transport.ErrNoCommandListener
	}

	if h.journal != nil {
		rec := &storage.CommandRecord{
			Path:       cmd.Path,
			RecordID:   string(cmd.Payload),
			From:       cmd.From,
			ReceivedAt: time.Now(),
		}
		// Журнал вспомогательный, команда доставляется даже при ошибке записи
		if err := h.journal.LogCommand(ctx, rec); err != nil {
			h.logger.Warn("Failed to journal command", "error", err, "path", cmd.Path)
		}
	}

	for _, handler := range handlers {
		handler(ctx, cmd)
	}

	return nil
}
