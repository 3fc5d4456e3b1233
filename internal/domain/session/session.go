package session

import "time"

// Duration is the sliding lifetime of a session token. Each successful
// validation pushes the expiry window forward by this amount.
const Duration = 30 * time.Minute

// Session binds an opaque token to exactly one username and role. Instances
// are owned by the session store and only mutated under its lock.
type Session struct {
	Token     string
	Username  string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// New creates a session valid for the standard duration starting now.
func New(token, username, role string) *Session {
	now := time.Now()
	return &Session{
		Token:     token,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(Duration),
	}
}

// IsExpired reports whether the sliding window has run out.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

// Renew extends the expiry window from now.
func (s *Session) Renew() {
	s.ExpiresAt = time.Now().Add(Duration)
}

// IsAdmin reports whether the session carries the ADMIN role.
func (s *Session) IsAdmin() bool {
	return s.Role == "ADMIN"
}
