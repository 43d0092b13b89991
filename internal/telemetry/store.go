package telemetry

import (
	"sync/atomic"
	"time"
)

// DefaultLockTimeout bounds how long Apply and Snapshot wait for the
// store lock.
const DefaultLockTimeout = 100 * time.Millisecond

// Update is one decoded reading destined for one slot.
type Update struct {
	Slot  Slot
	Value Value
}

// Observer is told when the store gives up on its lock. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	// UpdateApplied is called after an update has been written.
	UpdateApplied(slot Slot)
	// UpdateDropped is called when an update was discarded because the
	// lock could not be acquired in time.
	UpdateDropped(slot Slot)
	// SnapshotRead is called with fresh=false when a stale copy was
	// served instead of a new one.
	SnapshotRead(fresh bool)
}

type nopObserver struct{}

func (nopObserver) UpdateApplied(Slot) {}
func (nopObserver) UpdateDropped(Slot) {}
func (nopObserver) SnapshotRead(bool) {}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithLockTimeout sets the bounded wait for the store lock. Values <= 0
// keep [DefaultLockTimeout].
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithObserver registers an observer for applied and dropped updates
// and stale reads.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the shared telemetry record. A single exclusive lock guards
// the whole record; callers only ever see copies.
//
// The lock is a one-slot channel rather than a sync.Mutex so that
// acquisition can give up after a deadline.
type Store struct {
	sem      chan struct{}
	data     Snapshot
	last     atomic.Pointer[Snapshot]
	timeout  time.Duration
	observer Observer
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sem:      make(chan struct{}, 1),
		timeout:  DefaultLockTimeout,
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last.Store(&Snapshot{})
	return s
}

// Apply writes one update. It returns false if the slot is unknown or
// the lock could not be acquired within the timeout; in the latter case
// the update is dropped and the next message for the slot corrects it.
func (s *Store) Apply(u Update) bool {
	if int(u.Slot) >= slotCount {
		return false
	}
	at := s.now()

	if !s.lock() {
		s.observer.UpdateDropped(u.Slot)
		return false
	}
	s.data.set(u.Slot, u.Value)
	s.data.UpdatedAt = at
	s.unlock()

	s.observer.UpdateApplied(u.Slot)
	return true
}

// Snapshot returns a copy of the whole record. fresh is false when the
// lock could not be acquired in time; the copy is then the last one
// successfully read (a zero Snapshot if there was none).
func (s *Store) Snapshot() (snap Snapshot, fresh bool) {
	if !s.lock() {
		s.observer.SnapshotRead(false)
		return *s.last.Load(), false
	}
	snap = s.data
	s.unlock()

	s.last.Store(&snap)
	s.observer.SnapshotRead(true)
	return snap, true
}

// lock acquires exclusive access, waiting at most s.timeout.
func (s *Store) lock() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Store) unlock() {
	<-s.sem
}
