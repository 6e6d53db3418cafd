package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrDuplicateSession = errors.New("player already has a session")

// Registry tracks the live session of every joined player.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers s, failing if its player already has a session.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.playerId]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.playerId)
	}
	r.sessions[s.playerId] = s
	return nil
}

// Replace registers s and returns the session it displaced, if any.
func (r *Registry) Replace(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[s.playerId]
	r.sessions[s.playerId] = s
	return prev
}

// Remove unregisters s. It reports false when s is not the registered
// session for its player, which makes repeated removal a no-op.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.playerId]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.playerId)
	return true
}

// Get returns the session for a player, or nil.
func (r *Registry) Get(playerId string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sessions[playerId]
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Sessions returns a snapshot of the live sessions ordered by player id.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].playerId < out[j].playerId })
	return out
}

// KickAll ends every live session.
func (r *Registry) KickAll() {
	for _, s := range r.Sessions() {
		s.Kick()
	}
}
