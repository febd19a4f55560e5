package guide

import (
	"errors"
	"log"
	"sync"
	"time"

	"coachhub/onboard/capability"
	"coachhub/onboard/models"
	"coachhub/onboard/utils"
)

var ErrSessionNotFound = errors.New("guide session not found")

// Session is one mounted presenter plus what the shell needs to finish the
// landing.
type Session struct {
	ID        string
	VisitorID string
	FinalURL  string
	CreatedAt time.Time
	Presenter *Presenter
	// Content and Appearance are the settings the guide was mounted with.
	Content    models.GuideContent
	Appearance models.GuideAppearance

	mu     sync.Mutex
	remote *capability.RemoteToken
}

// OfferCapability records a prompt event captured by the shell and returns
// the token standing in for it.
func (s *Session) OfferCapability() *capability.RemoteToken {
	tok := capability.NewRemoteToken()
	s.mu.Lock()
	s.remote = tok
	s.mu.Unlock()
	s.Presenter.Gate().OnCapabilityOffered(tok)
	return tok
}

// ReportOutcome resolves the most recently offered token.
func (s *Session) ReportOutcome(o capability.Outcome) error {
	s.mu.Lock()
	tok := s.remote
	s.mu.Unlock()
	if tok == nil {
		return capability.ErrNoCapability
	}
	return tok.Resolve(o)
}

// Registry holds live guide sessions, keyed by an unguessable id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// linger keeps closed sessions readable so the shell can pick up the
	// final URL after an auto-close.
	linger time.Duration
	now    func() time.Time
}

func NewRegistry(linger time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		linger:   linger,
		now:      time.Now,
	}
}

// Add registers a session under a fresh id and schedules its removal once
// the presenter is done.
func (r *Registry) Add(s *Session) string {
	s.ID = utils.GenerateSessionID()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	go func() {
		<-s.Presenter.Done()
		if r.linger > 0 {
			time.Sleep(r.linger)
		}
		r.remove(s.ID)
	}()

	log.Printf("Guide session %s opened for visitor %s", s.ID, s.VisitorID)
	return s.ID
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep tears down sessions older than maxAge that the shell abandoned.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.RLock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range stale {
		s.Presenter.Teardown()
		r.remove(s.ID)
	}
	if len(stale) > 0 {
		log.Printf("Swept %d abandoned guide sessions", len(stale))
	}
	return len(stale)
}

// Shutdown tears down every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Presenter.Teardown()
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
