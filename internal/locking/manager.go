// Package locking provides a process-wide named lock manager. The ledger
// serializes balance-affecting operations per account with it, and the
// strategy service serializes membership edits per strategy.
package locking

import (
	"fmt"
	"sync"
)

// Manager hands out mutexes keyed by name. Locks are created on first use
// and never removed; the key space (accounts, strategies) is small enough
// that this is not a concern.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	held  map[string]bool
}

// NewManager creates a new lock manager
func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*sync.Mutex),
		held:  make(map[string]bool),
	}
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Lock blocks until the named lock is held by the caller.
func (m *Manager) Lock(key string) {
	m.lockFor(key).Lock()

	m.mu.Lock()
	m.held[key] = true
	m.mu.Unlock()
}

// Unlock releases the named lock.
func (m *Manager) Unlock(key string) {
	m.mu.Lock()
	m.held[key] = false
	m.mu.Unlock()

	m.lockFor(key).Unlock()
}

// Acquire takes the named lock only if it is currently free. Used by
// background jobs to skip a run instead of piling up behind a slow one.
func (m *Manager) Acquire(key string) error {
	if !m.lockFor(key).TryLock() {
		return fmt.Errorf("lock %s already held", key)
	}

	m.mu.Lock()
	m.held[key] = true
	m.mu.Unlock()
	return nil
}

// Release releases a lock taken with Acquire.
func (m *Manager) Release(key string) {
	m.Unlock(key)
}

// WithLock runs fn while holding the named lock.
func (m *Manager) WithLock(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}
