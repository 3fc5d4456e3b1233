package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"netauction-server/internal/domain/session"
)

// SweepInterval is how often expired sessions are purged from memory.
const SweepInterval = 5 * time.Minute

// SessionStore keeps the live token registry. At most one session exists per
// username: creating a new one evicts the previous token. Tokens use a
// sliding expiry renewed on every successful validation.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*session.Session // token -> session
	userTokens map[string]string           // username -> token
	logger     zerolog.Logger

	stopSweep chan struct{}
	sweepOnce sync.Once
}

type SessionStoreParams struct {
	Logger zerolog.Logger
}

// NewSessionStore creates an empty session store.
func NewSessionStore(params SessionStoreParams) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*session.Session),
		userTokens: make(map[string]string),
		logger:     params.Logger.With().Str("component", "session_store").Logger(),
		stopSweep:  make(chan struct{}),
	}
}

// Create issues a fresh unguessable token for the user, invalidating any
// prior session for that username.
func (s *SessionStore) Create(username, role string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldToken, ok := s.userTokens[username]; ok {
		delete(s.sessions, oldToken)
	}

	sess := session.New(uuid.NewString(), username, role)
	s.sessions[sess.Token] = sess
	s.userTokens[username] = sess.Token

	s.logger.Info().Str("username", username).Str("role", role).Msg("Session created")
	return sess
}

// Validate resolves a token. Unknown or expired tokens yield nil; a valid
// token has its expiry window renewed.
func (s *SessionStore) Validate(token string) *session.Session {
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	if sess.IsExpired() {
		s.removeLocked(token, sess)
		return nil
	}
	sess.Renew()
	return sess
}

// Invalidate removes one session by token. Used on logout and disconnect.
func (s *SessionStore) Invalidate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	s.removeLocked(token, sess)
	s.logger.Info().Str("username", sess.Username).Msg("Session invalidated")
	return true
}

// InvalidateForUser forcibly ends the user's session, e.g. when an
// administrator blocks the account.
func (s *SessionStore) InvalidateForUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.userTokens[username]
	if !ok {
		return false
	}
	delete(s.sessions, token)
	delete(s.userTokens, username)
	s.logger.Info().Str("username", username).Msg("User session invalidated")
	return true
}

// ActiveCount returns the number of live sessions.
func (s *SessionStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper launches the periodic purge of expired sessions to bound
// memory. Stop ends it.
func (s *SessionStore) StartSweeper() {
	go func() {
		ticker := time.NewTicker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopSweep:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper.
func (s *SessionStore) Stop() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

func (s *SessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if sess.IsExpired() {
			s.removeLocked(token, sess)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("count", removed).Msg("Swept expired sessions")
	}
}

// removeLocked deletes a session; the username index entry goes too unless a
// newer session already replaced it.
func (s *SessionStore) removeLocked(token string, sess *session.Session) {
	delete(s.sessions, token)
	if s.userTokens[sess.Username] == token {
		delete(s.userTokens, sess.Username)
	}
}
