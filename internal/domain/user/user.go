package user

import (
	"sync"
	"time"
)

// Role determines what a user is allowed to do.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const (
	// MaxFailedAttempts is the number of wrong passwords tolerated before a
	// temporary lock kicks in.
	MaxFailedAttempts = 3

	// LockDuration is how long an account stays temporarily locked.
	LockDuration = 5 * time.Minute
)

// User is an identity in the directory. The password never leaves the
// verifier+salt pair. Failure tracking is guarded by the entity's own mutex
// because concurrent logins for the same username are possible.
type User struct {
	Username  string
	Verifier  string // base64 password verifier
	Salt      string // base64 salt
	Email     string
	Role      Role
	CreatedAt time.Time

	mu             sync.Mutex
	blocked        bool
	failedAttempts int
	lockedUntil    time.Time
}

// New creates a regular user created now.
func New(username, verifier, salt, email string) *User {
	return &User{
		Username:  username,
		Verifier:  verifier,
		Salt:      salt,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: time.Now(),
	}
}

// Restore rebuilds a user loaded from persistence.
func Restore(username, verifier, salt, email string, role Role, blocked bool,
	failedAttempts int, lockedUntil, createdAt time.Time) *User {
	return &User{
		Username:       username,
		Verifier:       verifier,
		Salt:           salt,
		Email:          email,
		Role:           role,
		CreatedAt:      createdAt,
		blocked:        blocked,
		failedAttempts: failedAttempts,
		lockedUntil:    lockedUntil,
	}
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsBlocked reports whether an administrator blocked the account.
func (u *User) IsBlocked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.blocked
}

// SetBlocked flips the administrative block flag. Unblocking also clears the
// failure counter.
func (u *User) SetBlocked(blocked bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.blocked = blocked
	if !blocked {
		u.failedAttempts = 0
		u.lockedUntil = time.Time{}
	}
}

// IsTemporarilyLocked reports whether the account sits in a failed-attempt
// lockout window.
func (u *User) IsTemporarilyLocked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return time.Now().Before(u.lockedUntil)
}

// RemainingLockSeconds returns how long the temporary lock still holds.
func (u *User) RemainingLockSeconds() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	remaining := time.Until(u.lockedUntil)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds()) + 1
}

// RegisterFailedAttempt counts one wrong password and returns the attempts
// still left before the lock. At zero the temporary lock starts.
func (u *User) RegisterFailedAttempt() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failedAttempts++
	remaining := MaxFailedAttempts - u.failedAttempts
	if remaining <= 0 {
		u.lockedUntil = time.Now().Add(LockDuration)
		u.failedAttempts = 0
		return 0
	}
	return remaining
}

// ResetFailedAttempts clears the failure counter after a successful login.
func (u *User) ResetFailedAttempts() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failedAttempts = 0
	u.lockedUntil = time.Time{}
}

// FailedAttempts returns the current failure counter.
func (u *User) FailedAttempts() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.failedAttempts
}

// LockedUntil returns the end of the temporary lock window, zero if none.
func (u *User) LockedUntil() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lockedUntil
}
