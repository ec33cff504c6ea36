// Package transport defines the two channel primitives the sync services
// are built on.
//
// The snapshot channel is persistent and path-addressed: the latest item
// at a path is delivered to current subscribers and again to any
// subscriber that (re)connects later. The command channel is best-effort
// unicast to a currently reachable peer with no persistence.
package transport

import (
	"context"
	"errors"
)

// SnapshotPath is the fixed path of the record list on the snapshot channel.
const SnapshotPath = "/medications"

var (
	// ErrPeerUnreachable indicates that the target peer could not be reached
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrNoCommandListener indicates a command arrived while nobody listens
	ErrNoCommandListener = errors.New("no command listener registered")

	// ErrClosed indicates the transport has been shut down
	ErrClosed = errors.New("transport closed")
)

// DataItem is one snapshot channel publication.
type DataItem struct {
	Path    string `json:"path"`
	Payload string `json:"payload"`
	Version int64  `json:"version"` // маркер версии, различается у последовательных публикаций
}

// Peer is a node reachable over the command channel.
type Peer struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Command is one command channel delivery.
type Command struct {
	Path    string
	From    string
	Payload []byte
}

// SnapshotHandler receives snapshot channel deliveries.
type SnapshotHandler func(item DataItem)

// CommandHandler receives command channel deliveries.
type CommandHandler func(ctx context.Context, cmd Command)

//go:generate moq -out transport_mock.go . SnapshotPublisher CommandSender

// SnapshotPublisher publishes items on the snapshot channel.
type SnapshotPublisher interface {
	// Publish stores item as the latest value at item.Path and fans it out.
	// A new version is always a deliverable change, even with identical payload.
	Publish(ctx context.Context, item DataItem) error
}

// SnapshotSource delivers snapshot channel items at a path.
type SnapshotSource interface {
	// SubscribeSnapshots calls handler with the latest item at path and then
	// with every newer one, at most once per version. The returned cancel
	// func stops delivery; no handler call starts after it returns.
	SubscribeSnapshots(path string, handler SnapshotHandler) (cancel func(), err error)
}

// CommandSender sends commands to a reachable peer.
type CommandSender interface {
	// ReachablePeers returns the peers currently reachable. Empty means offline.
	ReachablePeers(ctx context.Context) ([]Peer, error)

	// SendCommand hands payload to the transport for delivery at path on peer.
	// Success does not mean the peer processed it.
	SendCommand(ctx context.Context, peer Peer, path string, payload []byte) error
}

// CommandSource receives commands sent by peers.
type CommandSource interface {
	// ListenCommands registers handler for incoming commands.
	ListenCommands(handler CommandHandler) (cancel func(), err error)
}
