package store

import (
	"sync"

	"github.com/grovetools/lookout/pkg/models"
)

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state: &State{
			Sessions: make(map[string]*models.SessionMonitorState),
		},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := State{
		Repositories: s.state.Repositories,
		Sessions:     make(map[string]*models.SessionMonitorState, len(s.state.Sessions)),
	}
	for id, st := range s.state.Sessions {
		out.Sessions[id] = st
	}
	return out
}

// GetTree returns the current repository tree.
func (s *Store) GetTree() []*models.SelectedRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Repositories
}

// GetSession returns the state of one monitored session, or nil.
func (s *Store) GetSession(id string) *models.SessionMonitorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Sessions[id]
}

// SetTree replaces the repository tree and notifies subscribers. The tree
// must already be a snapshot; the store never mutates it.
func (s *Store) SetTree(repos []*models.SelectedRepository) {
	s.mu.Lock()
	s.state.Repositories = repos
	s.broadcastLocked(Update{Type: UpdateTree, Payload: repos})
	s.mu.Unlock()
}

// SetSession stores a session snapshot and notifies subscribers.
func (s *Store) SetSession(st *models.SessionMonitorState) {
	s.mu.Lock()
	s.state.Sessions[st.SessionID] = st
	s.broadcastLocked(Update{Type: UpdateSession, Payload: st})
	s.mu.Unlock()
}

// RemoveSession drops a session's state when monitoring stops.
func (s *Store) RemoveSession(id string) {
	s.mu.Lock()
	delete(s.state.Sessions, id)
	s.mu.Unlock()
}

// Alert broadcasts a pending-approval alert without touching state.
func (s *Store) Alert(sessionID string, pending models.PendingToolUse) {
	s.mu.Lock()
	s.broadcastLocked(Update{Type: UpdateAlert, Payload: AlertPayload{SessionID: sessionID, Pending: pending}})
	s.mu.Unlock()
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send so a slow client cannot stall the daemon.
		}
	}
}
