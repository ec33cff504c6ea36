// Package memory provides an in-process transport connecting an
// authoritative node and a replica living in the same process.
// Delivery is synchronous, which keeps tests deterministic.
package memory

import (
	"context"
	"sync"

	"github.com/iudanet/medsync/internal/transport"
)

// Network is a loopback medium implementing both channel primitives.
type Network struct {
	items        map[string]transport.DataItem
	snapshotSubs map[uint64]*snapshotSub
	commandSubs  map[uint64]transport.CommandHandler
	publishErr   error
	peer         transport.Peer
	nextID       uint64
	sendAttempts int
	published    int
	mu           sync.Mutex
	reachable    bool
}

type snapshotSub struct {
	handler   transport.SnapshotHandler
	path      string
	delivered int64
	mu        sync.Mutex
	cancelled bool
}

// NewNetwork creates a network where peer is reachable.
func NewNetwork(peer transport.Peer) *Network {
	return &Network{
		items:        make(map[string]transport.DataItem),
		snapshotSubs: make(map[uint64]*snapshotSub),
		commandSubs:  make(map[uint64]transport.CommandHandler),
		peer:         peer,
		reachable:    true,
	}
}

// SetReachable toggles whether the command channel peer is reachable.
func (n *Network) SetReachable(reachable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reachable = reachable
}

// SetPublishError makes subsequent Publish calls fail with err. nil restores.
func (n *Network) SetPublishError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publishErr = err
}

// SendAttempts returns how many SendCommand calls reached the network.
func (n *Network) SendAttempts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendAttempts
}

// Published returns how many publications were accepted.
func (n *Network) Published() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.published
}

// Latest returns the persisted item at path.
func (n *Network) Latest(path string) (transport.DataItem, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	item, ok := n.items[path]
	return item, ok
}

// Publish implements transport.SnapshotPublisher.
func (n *Network) Publish(ctx context.Context, item transport.DataItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	if n.publishErr != nil {
		err := n.publishErr
		n.mu.Unlock()
		return err
	}
	n.items[item.Path] = item
	n.published++
	subs := n.subsForPathLocked(item.Path)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(item)
	}
	return nil
}

// SubscribeSnapshots implements transport.SnapshotSource.
func (n *Network) SubscribeSnapshots(path string, handler transport.SnapshotHandler) (func(), error) {
	sub := &snapshotSub{path: path, handler: handler}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.snapshotSubs[id] = sub
	latest, ok := n.items[path]
	n.mu.Unlock()

	// Доставляем последнее сохраненное значение, как при переподключении
	if ok {
		sub.deliver(latest)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.snapshotSubs, id)
			n.mu.Unlock()

			sub.mu.Lock()
			sub.cancelled = true
			sub.mu.Unlock()
		})
	}
	return cancel, nil
}

// ReachablePeers implements transport.CommandSender.
func (n *Network) ReachablePeers(ctx context.Context) ([]transport.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.reachable {
		return nil, nil
	}
	return []transport.Peer{n.peer}, nil
}

// SendCommand implements transport.CommandSender.
func (n *Network) SendCommand(ctx context.Context, peer transport.Peer, path string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	n.sendAttempts++
	if !n.reachable || peer.ID != n.peer.ID {
		n.mu.Unlock()
		return transport.ErrPeerUnreachable
	}
	handlers := make([]transport.CommandHandler, 0, len(n.commandSubs))
	for _, h := range n.commandSubs {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	if len(handlers) == 0 {
		return transport.ErrNoCommandListener
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	for _, h := range handlers {
		h(ctx, transport.Command{Path: path, Payload: data})
	}
	return nil
}

// ListenCommands implements transport.CommandSource.
func (n *Network) ListenCommands(handler transport.CommandHandler) (func(), error) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.commandSubs[id] = handler
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.commandSubs, id)
			n.mu.Unlock()
		})
	}, nil
}

func (n *Network) subsForPathLocked(path string) []*snapshotSub {
	subs := make([]*snapshotSub, 0, len(n.snapshotSubs))
	for _, sub := range n.snapshotSubs {
		if sub.path == path {
			subs = append(subs, sub)
		}
	}
	return subs
}

// deliver вызывает handler не более одного раза на версию
func (s *snapshotSub) deliver(item transport.DataItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || item.Version <= s.delivered {
		return
	}
	s.delivered = item.Version
	s.handler(item)
}
