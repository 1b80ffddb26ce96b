package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store keeps the bearer token in memory and in a 0600 file.
type Store struct {
	path  string
	mu    sync.RWMutex
	token string
}

// NewStore returns a store backed by path. Call Load to read an existing token.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the token file. A missing file leaves the store empty.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	s.mu.Lock()
	s.token = strings.TrimSpace(string(data))
	s.mu.Unlock()
	return nil
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Save persists token with owner-only permissions.
func (s *Store) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear forgets the token. It reports whether a token was present, so
// concurrent expiry notifications trigger exactly one re-login.
func (s *Store) Clear() (bool, error) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return had, fmt.Errorf("remove token: %w", err)
	}
	return had, nil
}

// ExpiresAt reads the exp claim without verifying the signature; the
// backend stays the authority on validity.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Valid reports whether a token is present and not known to be expired at now.
func (s *Store) Valid(now time.Time) bool {
	if s.Token() == "" {
		return false
	}
	exp, ok := s.ExpiresAt()
	return !ok || now.Before(exp)
}
