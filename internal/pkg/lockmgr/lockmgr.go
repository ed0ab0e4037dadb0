// Package lockmgr provides per-key mutual exclusion with a bounded wait.
// The marketplace engine locks a credit id for the read-then-write window of
// a purchase or retirement; unrelated credits are never serialized against
// each other.
package lockmgr

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when the lock cannot be acquired within the wait
// bound. Callers may retry with backoff.
var ErrBusy = errors.New("resource busy")

type entry struct {
	sem  chan struct{} // capacity 1, token present while held
	refs int
}

// Manager hands out per-key locks. The zero value is not usable; use New.
type Manager struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	wait    time.Duration
}

// New creates a Manager whose Acquire gives up after maxWait.
func New(maxWait time.Duration) *Manager {
	return &Manager{
		entries: make(map[uuid.UUID]*entry),
		wait:    maxWait,
	}
}

// Acquire takes the exclusive lock for key, waiting at most the configured
// bound. Returns ErrBusy on timeout. The caller must Release exactly once
// after a successful Acquire.
func (m *Manager) Acquire(key uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-time.After(m.wait):
		m.release(key, e, false)
		return ErrBusy
	}
}

// Release frees the lock for key.
func (m *Manager) Release(key uuid.UUID) {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.release(key, e, true)
}

func (m *Manager) release(key uuid.UUID, e *entry, held bool) {
	if held {
		<-e.sem
	}
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}
