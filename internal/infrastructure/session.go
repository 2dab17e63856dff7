package infrastructure

import (
	"context"
	"sync"
	"time"

	"kasbot/internal/entities"
)

// ChatSession holds the conversation context a messenger chat carries between
// turns. The HTTP surface never uses it; there the client owns the context.
type ChatSession struct {
	ChatID      string
	Context     entities.ConversationContext
	Suggestions []entities.Suggestion // offered by the last reply
	LastSeen    time.Time
	processing  bool
	released    chan struct{} // closed when the running turn ends
}

// SessionManager keeps the latest context per chat in memory and serializes
// turns of the same chat. A chat's session is never removed while a turn runs.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*ChatSession
	idleTTL  time.Duration
	now      func() time.Time
}

func NewSessionManager(idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ChatSession),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Begin claims the chat for one turn and returns a copy of its state. It
// returns false while another turn of the same chat is still running.
func (sm *SessionManager) Begin(chatID string) (ChatSession, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s := sm.session(chatID)
	if s.processing {
		return ChatSession{}, false
	}
	return sm.claim(s), true
}

// Acquire is Begin that waits for the running turn of the chat to end. It
// returns ctx.Err() if ctx ends first.
func (sm *SessionManager) Acquire(ctx context.Context, chatID string) (ChatSession, error) {
	for {
		sm.mu.Lock()
		s := sm.session(chatID)
		if !s.processing {
			claimed := sm.claim(s)
			sm.mu.Unlock()
			return claimed, nil
		}
		released := s.released
		sm.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ChatSession{}, ctx.Err()
		}
	}
}

// Finish stores what the turn returned and releases the chat.
func (sm *SessionManager) Finish(chatID string, reply entities.Reply) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s := sm.session(chatID)
	s.Context = reply.Context
	s.Suggestions = reply.Suggestions
	s.LastSeen = sm.now()
	release(s)
}

// Abort releases the chat without touching its context.
func (sm *SessionManager) Abort(chatID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[chatID]; ok {
		release(s)
	}
}

// session returns the chat's session, creating it. Callers hold sm.mu.
func (sm *SessionManager) session(chatID string) *ChatSession {
	s, ok := sm.sessions[chatID]
	if !ok {
		s = &ChatSession{ChatID: chatID}
		sm.sessions[chatID] = s
	}
	return s
}

func (sm *SessionManager) claim(s *ChatSession) ChatSession {
	s.processing = true
	s.released = make(chan struct{})
	s.LastSeen = sm.now()
	return ChatSession{
		ChatID:      s.ChatID,
		Context:     s.Context.Clone(),
		Suggestions: append([]entities.Suggestion(nil), s.Suggestions...),
		LastSeen:    s.LastSeen,
	}
}

func release(s *ChatSession) {
	if !s.processing {
		return
	}
	s.processing = false
	close(s.released)
	s.released = nil
}

// Reset forgets the chat's context, e.g. on /start.
func (sm *SessionManager) Reset(chatID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[chatID]; ok && !s.processing {
		delete(sm.sessions, chatID)
	}
}

func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// EvictIdle drops sessions idle longer than the TTL and returns how many went.
func (sm *SessionManager) EvictIdle() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	evicted := 0
	for id, s := range sm.sessions {
		if !s.processing && now.Sub(s.LastSeen) > sm.idleTTL {
			delete(sm.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Cleanup runs EvictIdle every interval until ctx is cancelled.
func (sm *SessionManager) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sm.EvictIdle()
		case <-ctx.Done():
			return
		}
	}
}
