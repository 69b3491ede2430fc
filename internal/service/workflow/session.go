package workflow

import (
	"sync"
	"time"
)

// Session is one operator's in-flight workflow: the kind, the current step
// and the typed accumulator the steps merge validated fields into.
type Session struct {
	OperatorID string
	Kind       Kind
	Step       Step
	State      any
	StartedAt  time.Time
	UpdatedAt  time.Time

	mu sync.Mutex
}

// Touch records step activity for idle-expiry bookkeeping.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// SessionManager holds at most one in-flight workflow per operator.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get retrieves the operator's current session.
func (sm *SessionManager) Get(operatorID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[operatorID]
	return sess, ok
}

// Start resets the operator to a fresh session of the given kind, discarding
// any accumulator from a previous workflow.
func (sm *SessionManager) Start(operatorID string, kind Kind) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	sess := &Session{
		OperatorID: operatorID,
		Kind:       kind,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	sm.sessions[operatorID] = sess
	return sess
}

// Clear removes the operator's session; called on commit and on cancel.
func (sm *SessionManager) Clear(operatorID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, operatorID)
}

// ExpireIdle drops sessions idle for longer than maxIdle and returns how
// many were removed. Zero maxIdle disables expiry.
func (sm *SessionManager) ExpireIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	cutoff := sm.now().Add(-maxIdle)
	expired := 0
	for id, sess := range sm.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(sm.sessions, id)
			expired++
		}
	}
	return expired
}

// Len reports the number of in-flight sessions.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
