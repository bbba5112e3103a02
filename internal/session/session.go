// Package session keeps live per-sender conversation state in memory.
// The store's conversation log is the durable audit trail; this is the
// working set the engine reads and writes on every turn.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/model"
)

// DefaultTTL is how long an idle session survives before the janitor
// drops it. Messenger buyers routinely reply hours apart.
const DefaultTTL = 24 * time.Hour

// maxSeenIDs bounds the per-session de-dupe window. Messenger redelivers
// the same message ID on webhook retries; we only need a short memory.
const maxSeenIDs = 64

// Session is the live state for one sender. Turn N's output state is the
// input to turn N+1, so turns for one sender must never interleave: callers
// hold the session lock for the whole turn. Meta delivers webhook events
// concurrently, including for a single buyer.
type Session struct {
	SenderID       string
	ConversationID string
	Record         model.PreferenceRecord
	History        []model.DialogueTurn

	mu         sync.Mutex
	lastActive time.Time
	seenIDs    []string
}

// Lock serializes turns for this sender.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// AppendTurn records a turn in the in-memory history.
func (s *Session) AppendTurn(role model.DialogueRole, text string) {
	s.History = append(s.History, model.DialogueTurn{Role: role, Text: text})
}

// Manager owns all live sessions, keyed by sender ID.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager builds a Manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the sender's session, creating one on first contact.
// The second return reports whether the session already existed.
func (m *Manager) Get(senderID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[senderID]; ok {
		s.lastActive = m.now()
		return s, true
	}
	s := &Session{SenderID: senderID, lastActive: m.now()}
	m.sessions[senderID] = s
	return s, false
}

// Seen records a Messenger message ID and reports whether it was already
// delivered to this session. Used to drop webhook redeliveries.
func (m *Manager) Seen(senderID, messageID string) bool {
	if messageID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[senderID]
	if !ok {
		return false
	}
	for _, id := range s.seenIDs {
		if id == messageID {
			return true
		}
	}
	s.seenIDs = append(s.seenIDs, messageID)
	if len(s.seenIDs) > maxSeenIDs {
		s.seenIDs = s.seenIDs[len(s.seenIDs)-maxSeenIDs:]
	}
	return false
}

// Drop removes a sender's session, if any.
func (m *Manager) Drop(senderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, senderID)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	var dropped int
	for id, s := range m.sessions {
		if s.lastActive.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		zap.L().Info("session: swept idle sessions",
			zap.Int("dropped", dropped),
			zap.Int("remaining", len(m.sessions)))
	}
	return dropped
}

// Janitor sweeps at the given interval until the context is cancelled.
func (m *Manager) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
