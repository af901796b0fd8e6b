package credentials

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// StaticUsers is an in-memory UserLookup keyed by identifier.
type StaticUsers struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

func NewStaticUsers() *StaticUsers {
	return &StaticUsers{hashes: make(map[string][]byte)}
}

// Add hashes secret with bcrypt.DefaultCost and stores it under identifier.
func (s *StaticUsers) Add(identifier, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.AddHash(identifier, hash)
	return nil
}

// AddHash stores a precomputed bcrypt or argon2id hash.
func (s *StaticUsers) AddHash(identifier string, hash []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[strings.TrimSpace(identifier)] = append([]byte(nil), hash...)
}

// LookupUser returns identifier as the principal.
func (s *StaticUsers) LookupUser(_ context.Context, identifier string) (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.hashes[identifier]
	if !ok {
		return "", nil, ErrUserNotFound
	}
	return identifier, hash, nil
}

func (s *StaticUsers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes)
}
