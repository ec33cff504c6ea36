package hub

import (
	"sync"

	"github.com/iudanet/medsync/internal/transport"
)

// Subscriber receives the newest items published at one path.
// Slow readers only ever see the latest pending item.
type Subscriber struct {
	ch   chan transport.DataItem
	done chan struct{}
	path string

	mu     sync.Mutex
	closed bool
}

func newSubscriber(path string) *Subscriber {
	return &Subscriber{
		path: path,
		ch:   make(chan transport.DataItem, 1),
		done: make(chan struct{}),
	}
}

// Path returns the subscribed path
func (s *Subscriber) Path() string {
	return s.path
}

// Updates delivers published items
func (s *Subscriber) Updates() <-chan transport.DataItem {
	return s.ch
}

// Done is closed after Detach
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// offer replaces any undelivered item with item
func (s *Subscriber) offer(item transport.DataItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case <-s.ch:
	default:
	}
	s.ch <- item
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
