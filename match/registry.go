package match

import (
	"errors"
	"sync"
)

var (
	ErrProcessInMatch = errors.New("a match is already registered for this process")
	ErrPlayerInMatch  = errors.New("a player is already in another match")
)

// Registry is the process-wide index of active matches, by worker process id
// and by participant. Since the director is a single pod, matches live in
// memory only.
type Registry struct {
	mu        sync.RWMutex
	byProcess map[string]*Match
	byAccount map[int64]*Match
}

func NewRegistry() *Registry {
	return &Registry{
		byProcess: make(map[string]*Match),
		byAccount: make(map[int64]*Match),
	}
}

// Add registers a match, enforcing that no other active match exists for the
// same process id or for any of its human participants.
func (r *Registry) Add(m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byProcess[m.ProcessID]; exists {
		return ErrProcessInMatch
	}
	accounts := m.HumanAccountIDs()
	for _, id := range accounts {
		if _, exists := r.byAccount[id]; exists {
			return ErrPlayerInMatch
		}
	}

	r.byProcess[m.ProcessID] = m
	for _, id := range accounts {
		r.byAccount[id] = m
	}
	return nil
}

// Remove deregisters a match and all of its participant entries. Removing an
// unknown process id is a no-op so teardown can run more than once.
func (r *Registry) Remove(processID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.byProcess[processID]
	if !exists {
		return
	}
	delete(r.byProcess, processID)
	for id, owner := range r.byAccount {
		if owner == m {
			delete(r.byAccount, id)
		}
	}
}

// ByProcess looks up the active match for a worker process id.
func (r *Registry) ByProcess(processID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byProcess[processID]
	return m, ok
}

// ForPlayer looks up the active match a player belongs to.
func (r *Registry) ForPlayer(accountID int64) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byAccount[accountID]
	return m, ok
}

// Len returns the number of active matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byProcess)
}

// Snapshot returns process id -> status for monitoring.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Status, len(r.byProcess))
	for id, m := range r.byProcess {
		out[id] = m.Status()
	}
	return out
}
