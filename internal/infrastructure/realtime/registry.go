package realtime

import (
	"errors"
	"sync"
)

// CloseSessionReplaced is sent to a session evicted to make room for a
// newer one of the same user.
const CloseSessionReplaced = 4001

var ErrRegistryFull = errors.New("realtime: session registry is full")

// Limits bounds the registry. Zero values mean unbounded.
type Limits struct {
	MaxSessions        int
	MaxSessionsPerUser int
}

// Registry tracks the live push sessions of this process, keyed by user.
// Entries are best effort; the store stays authoritative.
type Registry struct {
	mu       sync.RWMutex
	limits   Limits
	sessions map[int64]map[string]*Connection // userID -> sessionID -> connection
	total    int
}

func NewRegistry(limits Limits) *Registry {
	return &Registry{
		limits:   limits,
		sessions: make(map[int64]map[string]*Connection),
	}
}

// Attach registers conn and starts its writer. When the user is at the
// per-user bound the oldest session is closed with CloseSessionReplaced.
func (r *Registry) Attach(conn *Connection) error {
	var evicted *Connection

	r.mu.Lock()
	userSessions := r.sessions[conn.UserID]
	if r.limits.MaxSessionsPerUser > 0 && len(userSessions) >= r.limits.MaxSessionsPerUser {
		evicted = oldest(userSessions)
		r.removeLocked(evicted)
	}
	if r.limits.MaxSessions > 0 && r.total >= r.limits.MaxSessions {
		if evicted != nil {
			r.addLocked(evicted)
		}
		r.mu.Unlock()
		return ErrRegistryFull
	}
	r.addLocked(conn)
	r.mu.Unlock()

	conn.Start()

	if evicted != nil {
		evicted.Close(CloseSessionReplaced, "session replaced")
	}
	return nil
}

// Detach removes conn if it is still tracked.
func (r *Registry) Detach(conn *Connection) {
	r.mu.Lock()
	r.removeLocked(conn)
	r.mu.Unlock()
}

// PushToUser writes payload to every live session of userID and returns how
// many accepted it.
func (r *Registry) PushToUser(userID int64, payload []byte) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.sessions[userID]))
	for _, conn := range r.sessions[userID] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) Connected(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Close terminates all tracked connections and clears state.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Connection, 0, r.total)
	for _, userSessions := range r.sessions {
		for _, conn := range userSessions {
			all = append(all, conn)
		}
	}
	r.sessions = make(map[int64]map[string]*Connection)
	r.total = 0
	r.mu.Unlock()

	for _, conn := range all {
		conn.Close(1001, "server shutdown")
	}
}

func (r *Registry) addLocked(conn *Connection) {
	userSessions := r.sessions[conn.UserID]
	if userSessions == nil {
		userSessions = make(map[string]*Connection)
		r.sessions[conn.UserID] = userSessions
	}
	if _, ok := userSessions[conn.ID]; ok {
		return
	}
	userSessions[conn.ID] = conn
	r.total++
}

func (r *Registry) removeLocked(conn *Connection) {
	userSessions := r.sessions[conn.UserID]
	if _, ok := userSessions[conn.ID]; !ok {
		return
	}
	delete(userSessions, conn.ID)
	r.total--
	if len(userSessions) == 0 {
		delete(r.sessions, conn.UserID)
	}
}

func oldest(userSessions map[string]*Connection) *Connection {
	var out *Connection
	for _, conn := range userSessions {
		if out == nil || conn.ConnectedAt.Before(out.ConnectedAt) {
			out = conn
		}
	}
	return out
}
