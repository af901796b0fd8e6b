package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and single-node tooling.
// It does not implement [Rotator], so engines built on it rotate in two steps.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Insert stores a copy of rec.
func (m *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Token]; ok {
		return ErrConflict
	}
	m.records[rec.Token] = rec
	return nil
}

// FindByToken returns a copy of the stored record.
func (m *MemoryStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// RevokeIfActive performs the revoked transition under the store mutex.
func (m *MemoryStore) RevokeIfActive(ctx context.Context, token string) (RevokeResult, error) {
	if err := ctx.Err(); err != nil {
		return RevokeFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[token]
	if !ok {
		return RevokeNotFound, nil
	}
	if rec.Revoked {
		return RevokeAlreadyRevoked, nil
	}
	rec.Revoked = true
	rec.RevokedAt = m.now()
	m.records[token] = rec
	return RevokeRevoked, nil
}

// Len reports how many records are held, revoked or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
