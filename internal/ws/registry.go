package ws

import "sync"

// Registry tracks the live sessions of every user. A user's sessions form
// their room, the unit of push addressing.
type Registry interface {
	AddSession(userID string, s *Session)
	// RemoveSession reports whether s was registered.
	RemoveSession(userID string, s *Session) bool
	SessionsFor(userID string) []*Session
	All() []*Session
}

// MemoryRegistry is the process-local Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{} // userID -> sessions
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{rooms: make(map[string]map[*Session]struct{})}
}

func (r *MemoryRegistry) AddSession(userID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[userID] == nil {
		r.rooms[userID] = make(map[*Session]struct{})
	}
	r.rooms[userID][s] = struct{}{}
}

func (r *MemoryRegistry) RemoveSession(userID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[userID]
	if !ok {
		return false
	}
	if _, ok := room[s]; !ok {
		return false
	}
	delete(room, s)
	if len(room) == 0 {
		delete(r.rooms, userID)
	}
	return true
}

func (r *MemoryRegistry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.rooms[userID]))
	for s := range r.rooms[userID] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *MemoryRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sessions []*Session
	for _, room := range r.rooms {
		for s := range room {
			sessions = append(sessions, s)
		}
	}
	return sessions
}
