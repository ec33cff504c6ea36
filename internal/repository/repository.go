// Package repository holds the in-process record list of a node.
//
// Mutations come through two paths. The local path (Add, UpdateStatus)
// notifies every Subscribe callback; the external sync path (ReplaceAll)
// never does. Sync services forward only Subscribe notifications, so data
// received from the peer is never published back to it.
package repository

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/medsync/internal/models"
)

var (
	// ErrDuplicateID is returned by ReplaceAll when the sequence repeats an id.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrInvalidStatus is returned when a record carries a status outside the known set.
	ErrInvalidStatus = errors.New("invalid record status")
)

// Listener receives the full record sequence. It runs synchronously on the
// mutating goroutine and must not call mutating Repository methods.
type Listener func(records []models.Record)

// IDGenerator returns a fresh record id.
type IDGenerator func() string

// Repository is the single source of truth for records on one node.
type Repository struct {
	newID IDGenerator

	// writeMu сериализует мутации вместе с их уведомлениями
	writeMu sync.Mutex

	mu        sync.RWMutex
	records   []models.Record
	local     map[uint64]Listener
	observers map[uint64]Listener
	nextSubID uint64
}

// Option configures a Repository.
type Option func(*Repository)

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(gen IDGenerator) Option {
	return func(r *Repository) {
		r.newID = gen
	}
}

// New creates a repository seeded with the given records.
// Seed records keep their ids; an empty id gets a generated one.
func New(seed []models.Record, opts ...Option) (*Repository, error) {
	r := &Repository{
		newID:     func() string { return uuid.New().String() },
		local:     make(map[uint64]Listener),
		observers: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(r)
	}

	records := models.CloneRecords(seed)
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = r.newID()
		}
		if records[i].Status == "" {
			records[i].Status = models.StatusPending
		}
	}
	if err := checkRecords(records); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	r.records = records

	return r, nil
}

// Current returns a copy of the present record sequence.
func (r *Repository) Current() []models.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return models.CloneRecords(r.records)
}

// Get returns a copy of the record with the given id.
func (r *Repository) Get(id string) (models.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.records {
		if r.records[i].ID == id {
			return r.records[i].Clone(), true
		}
	}
	return models.Record{}, false
}

// Add appends record with a freshly assigned id and PENDING status and
// notifies local subscribers. The stored record is returned.
func (r *Repository) Add(record models.Record) models.Record {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored := record.Clone()
	stored.Status = models.StatusPending

	r.mu.Lock()
	stored.ID = r.freshIDLocked()
	r.records = append(r.records, stored)
	snapshot := models.CloneRecords(r.records)
	local, observers := r.listenersLocked()
	r.mu.Unlock()

	notify(local, snapshot)
	notify(observers, snapshot)

	return stored.Clone()
}

// UpdateStatus sets the status of the record with the given id and
// notifies local subscribers. An unknown id or an invalid status is a no-op
// and returns false.
func (r *Repository) UpdateStatus(id string, status models.RecordStatus) bool {
	if !status.Valid() {
		return false
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.records[idx].Status = status
	snapshot := models.CloneRecords(r.records)
	local, observers := r.listenersLocked()
	r.mu.Unlock()

	notify(local, snapshot)
	notify(observers, snapshot)

	return true
}

// ReplaceAll swaps in records received from the peer. Local subscribers are
// not notified; state observers are.
func (r *Repository) ReplaceAll(records []models.Record) error {
	incoming := models.CloneRecords(records)
	if err := checkRecords(incoming); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	r.records = incoming
	snapshot := models.CloneRecords(r.records)
	_, observers := r.listenersLocked()
	r.mu.Unlock()

	notify(observers, snapshot)

	return nil
}

// Subscribe registers fn for local mutations. fn is called once right away
// with the current sequence and then after every Add and successful
// UpdateStatus.
func (r *Repository) Subscribe(fn Listener) *Subscription {
	return r.register(fn, false)
}

// Observe registers fn for every state change, ReplaceAll included.
// Используется UI: реплике нужно видеть зеркалированные снапшоты.
// Sync services must use Subscribe instead.
func (r *Repository) Observe(fn Listener) *Subscription {
	return r.register(fn, true)
}

func (r *Repository) register(fn Listener, observer bool) *Subscription {
	// writeMu гарантирует, что между начальной доставкой и регистрацией
	// не проскочит ни одна мутация
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	r.nextSubID++
	id := r.nextSubID
	if observer {
		r.observers[id] = fn
	} else {
		r.local[id] = fn
	}
	snapshot := models.CloneRecords(r.records)
	r.mu.Unlock()

	fn(snapshot)

	return &Subscription{repo: r, id: id, observer: observer}
}

func (r *Repository) unregister(id uint64, observer bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if observer {
		delete(r.observers, id)
	} else {
		delete(r.local, id)
	}
}

func (r *Repository) listenersLocked() (local, observers []Listener) {
	local = make([]Listener, 0, len(r.local))
	for _, fn := range r.local {
		local = append(local, fn)
	}
	observers = make([]Listener, 0, len(r.observers))
	for _, fn := range r.observers {
		observers = append(observers, fn)
	}
	return local, observers
}

func (r *Repository) indexLocked(id string) int {
	for i := range r.records {
		if r.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) freshIDLocked() string {
	for {
		id := r.newID()
		if id != "" && r.indexLocked(id) < 0 {
			return id
		}
	}
}

// Subscription is a handle returned by Subscribe and Observe.
type Subscription struct {
	repo     *Repository
	once     sync.Once
	id       uint64
	observer bool
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.repo.unregister(s.id, s.observer)
	})
}

func notify(listeners []Listener, records []models.Record) {
	for _, fn := range listeners {
		fn(models.CloneRecords(records))
	}
}

// checkRecords отклоняет повторяющиеся id и статусы вне перечисления
func checkRecords(records []models.Record) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if !records[i].Status.Valid() {
			return fmt.Errorf("%w: %q for record %q", ErrInvalidStatus, records[i].Status, records[i].ID)
		}
		if _, ok := seen[records[i].ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}
	return nil
}
