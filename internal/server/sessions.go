package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/spigell/resume-chat/internal/conversation"
)

var ErrSessionNotFound = errors.New("session not found")

// Advancer runs one conversation turn.
type Advancer interface {
	Advance(ctx context.Context, s conversation.State, text string) (conversation.State, error)
}

// Session owns the state of one conversation. Turns of the same session run
// one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	state  conversation.State
	totals conversation.Usage
	turns  int
}

// View is the externally visible snapshot of a session.
type View struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Route     conversation.Route     `json:"route"`
	History   []conversation.Message `json:"history"`
	LastUsage *conversation.Usage    `json:"last_usage,omitempty"`
	FocusIDs  []int64                `json:"focus_ids"`
	Totals    conversation.Usage     `json:"totals"`
	Turns     int                    `json:"turns"`
}

// Turn advances the session with text. The stored state is replaced only
// when the turn succeeds.
func (s *Session) Turn(ctx context.Context, engine Advancer, text string) (conversation.State, View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := engine.Advance(ctx, s.state, text)
	if err != nil {
		return s.state, s.view(), err
	}

	s.state = next
	s.turns++
	if next.LastUsage != nil {
		s.totals = s.totals.Add(*next.LastUsage)
	}

	return next, s.view(), nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() View {
	focus := s.state.FocusIDs
	if focus == nil {
		focus = []int64{}
	}
	return View{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Route:     s.state.Route,
		History:   s.state.Window(0),
		LastUsage: s.state.LastUsage,
		FocusIDs:  focus,
		Totals:    s.totals,
		Turns:     s.turns,
	}
}

// Sessions keeps sessions in memory and forgets them after ttl without use.
type Sessions struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{cache: cache.New(ttl, ttl/2+time.Second), now: time.Now}
}

func (s *Sessions) Create() *Session {
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		state:     conversation.New(),
	}
	s.cache.SetDefault(session.ID, session)
	return session
}

// Get returns the session and extends its lifetime.
func (s *Sessions) Get(id string) (*Session, error) {
	item, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	session := item.(*Session)
	s.cache.SetDefault(id, session)
	return session, nil
}

func (s *Sessions) Delete(id string) error {
	if _, ok := s.cache.Get(id); !ok {
		return ErrSessionNotFound
	}
	s.cache.Delete(id)
	return nil
}

func (s *Sessions) Len() int {
	return s.cache.ItemCount()
}
