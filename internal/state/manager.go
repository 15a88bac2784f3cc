// Package state holds the per-user optimistic budget projection. The manager
// is an explicit per-session component (no module-level singletons) so tests
// can run many simulated users in isolation. State here is a derived,
// disposable cache: eviction or Reset just forces a rebuild from the durable
// queue, never data loss.
package state

import (
	"fmt"
	"sync"
	"time"

	"kudi/internal/cache"
	"kudi/internal/core"
	"kudi/internal/mutation"
	"kudi/internal/project"
)

// RebuildFunc produces a base state for a user whose projection is not
// cached, typically by replaying the durable queue (optionally over a fresh
// remote snapshot). May be nil, in which case rebuilds start empty.
type RebuildFunc func(userID string) (*core.BudgetState, error)

type Manager struct {
	mu      sync.Mutex
	states  *cache.LRUCache[*core.BudgetState]
	rebuild RebuildFunc
}

// NewManager creates a state manager bounding at most maxUsers cached
// projections for ttl each.
func NewManager(maxUsers int, ttl time.Duration, rebuild RebuildFunc) *Manager {
	return &Manager{
		states:  cache.NewLRUCache[*core.BudgetState](maxUsers, ttl),
		rebuild: rebuild,
	}
}

// Snapshot returns a deep copy of the user's current projection, rebuilding
// it if it is not cached.
func (m *Manager) Snapshot(userID string) (*core.BudgetState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.getOrBuildLocked(userID)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Apply projects a mutation onto the user's state. Called synchronously by
// domain hooks at enqueue time.
func (m *Manager) Apply(rec *mutation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.getOrBuildLocked(rec.UserID)
	if err != nil {
		return err
	}
	next, err := project.Apply(state, rec)
	if err != nil {
		return fmt.Errorf("project %s: %w", rec.Kind, err)
	}
	m.states.Set(rec.UserID, next)
	return nil
}

// Reset discards the cached projection for a user. The next Snapshot
// rebuilds it from scratch.
func (m *Manager) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states.Delete(userID)
}

func (m *Manager) getOrBuildLocked(userID string) (*core.BudgetState, error) {
	if state, ok := m.states.Get(userID); ok {
		return state, nil
	}
	var (
		state *core.BudgetState
		err   error
	)
	if m.rebuild != nil {
		state, err = m.rebuild(userID)
		if err != nil {
			return nil, fmt.Errorf("rebuild state for %s: %w", userID, err)
		}
	}
	if state == nil {
		state = core.NewBudgetState()
	}
	m.states.Set(userID, state)
	return state, nil
}
