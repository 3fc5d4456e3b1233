package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	"netauction-server/internal/domain/shared"
	"netauction-server/internal/domain/user"
	"netauction-server/internal/ports/outbound"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 3

	verifierIterations = 10000
	verifierKeyLength  = 32
	saltLength         = 16
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)
)

// UserService owns the user directory. Usernames are unique and
// case-insensitive; the map is keyed by the lowercased name. Persistence is
// write-through and best-effort: in-memory state stays authoritative.
type UserService struct {
	mu     sync.RWMutex
	users  map[string]*user.User
	store  outbound.Store
	logger zerolog.Logger
}

type UserServiceParams struct {
	Store  outbound.Store
	Logger zerolog.Logger
}

// NewUserService creates the directory, loads users from the store when one
// is configured, and seeds the default administrator if absent.
func NewUserService(params UserServiceParams) *UserService {
	s := &UserService{
		users:  make(map[string]*user.User),
		store:  params.Store,
		logger: params.Logger.With().Str("component", "user_service").Logger(),
	}

	if s.store != nil {
		loaded, err := s.store.LoadAllUsers(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to load users, continuing memory-only")
		} else {
			for _, u := range loaded {
				s.users[strings.ToLower(u.Username)] = u
			}
			s.logger.Info().Int("count", len(loaded)).Msg("Users loaded from store")
		}
	}

	s.seedDefaultAdmin()
	return s
}

// seedDefaultAdmin guarantees an admin account exists even on a fresh or
// store-less deployment.
func (s *UserService) seedDefaultAdmin() {
	if _, ok := s.users["admin"]; ok {
		return
	}

	salt := newSalt()
	admin := user.New("admin", deriveVerifier("admin123", salt), salt, "admin@netauction.local")
	admin.Role = user.RoleAdmin
	s.users["admin"] = admin

	if s.store != nil {
		if err := s.store.InsertUser(context.Background(), admin); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist default admin")
		}
	}
	s.logger.Info().Msg("Default admin account created")
}

// Register validates and creates a new user.
func (s *UserService) Register(ctx context.Context, username, password, email string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	if username == "" {
		return shared.ErrUsernameRequired
	}
	if len(username) < minUsernameLength {
		return shared.ErrUsernameTooShort
	}
	if len(username) > maxUsernameLength {
		return shared.ErrUsernameTooLong
	}
	if !usernamePattern.MatchString(username) {
		return shared.ErrUsernameInvalid
	}
	if len(password) < minPasswordLength {
		return shared.ErrPasswordTooShort
	}
	if !emailPattern.MatchString(email) {
		return shared.ErrEmailInvalid
	}

	salt := newSalt()
	u := user.New(username, deriveVerifier(password, salt), salt, email)

	s.mu.Lock()
	if _, exists := s.users[username]; exists {
		s.mu.Unlock()
		return shared.ErrUsernameTaken
	}
	s.users[username] = u
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.InsertUser(ctx, u); err != nil {
			s.logger.Error().Err(err).Str("username", username).Msg("Failed to persist user")
		}
	}

	s.logger.Info().Str("username", username).Msg("User registered")
	return nil
}

// Authenticate verifies credentials, applying the failed-attempt lockout.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	u, ok := s.Get(username)
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}

	if u.IsBlocked() {
		return nil, shared.ErrAccountBlocked
	}
	if u.IsTemporarilyLocked() {
		return nil, fmt.Errorf("account temporarily locked, retry in %d seconds", u.RemainingLockSeconds())
	}

	if !verifyPassword(password, u.Salt, u.Verifier) {
		remaining := u.RegisterFailedAttempt()
		s.persistUpdate(ctx, u)
		if remaining > 0 {
			return nil, fmt.Errorf("%w, %d attempts remaining", shared.ErrInvalidCredentials, remaining)
		}
		return nil, fmt.Errorf("account temporarily locked after too many failed attempts")
	}

	u.ResetFailedAttempts()
	s.persistUpdate(ctx, u)
	s.logger.Info().Str("username", u.Username).Msg("User authenticated")
	return u, nil
}

// Get retrieves a user by username, case-insensitive.
func (s *UserService) Get(username string) (*user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	return u, ok
}

// SetBlocked blocks or unblocks an account.
func (s *UserService) SetBlocked(ctx context.Context, username string, blocked bool) error {
	u, ok := s.Get(username)
	if !ok {
		return shared.ErrUserNotFound
	}

	u.SetBlocked(blocked)
	s.persistUpdate(ctx, u)

	s.logger.Info().Str("username", u.Username).Bool("blocked", blocked).Msg("User block flag updated")
	return nil
}

func (s *UserService) persistUpdate(ctx context.Context, u *user.User) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("username", u.Username).Msg("Failed to persist user update")
	}
}

// --- password verifier helpers ---

func newSalt() string {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.StdEncoding.EncodeToString(salt)
}

func deriveVerifier(password, salt string) string {
	rawSalt, _ := base64.StdEncoding.DecodeString(salt)
	key := pbkdf2.Key([]byte(password), rawSalt, verifierIterations, verifierKeyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

func verifyPassword(password, salt, verifier string) bool {
	candidate := deriveVerifier(password, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(verifier)) == 1
}
