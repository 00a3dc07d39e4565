// Package auth provides username/password accounts, browser sessions, and
// the middleware that gates authenticated pages.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	stdtime "time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"yanote/internal/db"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidUsername    = errors.New("username must be 3-150 characters (letters, digits, @/./+/-/_)")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so hashes produced with
// other parameters still verify correctly.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024 // ~19 MiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

const (
	usernameMinLen = 3
	usernameMaxLen = 150
)

// User is an application account.
type User struct {
	ID        string
	Username  string
	CreatedAt stdtime.Time
}

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// UserService handles account registration and credential checks.
type UserService struct {
	db    *db.DB
	clock Clock
}

// NewUserService creates a new user service.
func NewUserService(database *db.DB) *UserService {
	return &UserService{
		db:    database,
		clock: realClock{},
	}
}

// SetClock replaces the clock. Used by tests.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates a new account with username/password.
// Returns ErrUsernameTaken if the username is already in use.
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	u := db.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now.Unix(),
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrUniqueConstraint) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &User{ID: u.ID, Username: username, CreatedAt: now}, nil
}

// VerifyLogin verifies username/password credentials for an existing account.
// Returns ErrInvalidCredentials if the user doesn't exist or the password is wrong.
func (s *UserService) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	row, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a hash anyway so missing users cost the same as wrong passwords.
			VerifyPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !VerifyPassword(password, row.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &User{ID: row.ID, Username: row.Username, CreatedAt: stdtime.Unix(row.CreatedAt, 0)}, nil
}

// GetByID returns the account with the given ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*User, error) {
	row, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &User{ID: row.ID, Username: row.Username, CreatedAt: stdtime.Unix(row.CreatedAt, 0)}, nil
}

// ValidateUsername checks username length and characters.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return ErrInvalidUsername
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '@', r == '.', r == '+', r == '-', r == '_':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}

// ValidatePasswordStrength enforces the minimum password length.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// dummyHash is a throwaway argon2id hash used to equalize login timing.
var dummyHash = func() string {
	h, err := HashPassword("not-a-real-password")
	if err != nil {
		return ""
	}
	return h
}()

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches a hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}
	if parts[1] != "argon2id" {
		return false
	}
	if parts[2] != "v=19" {
		return false
	}

	var memory, time uint32
	var threads uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	if err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), saltBytes, time, memory, threads, uint32(hashLen))
	return subtle.ConstantTimeCompare(hashBytes, computedHash) == 1
}
