package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	rec := testRecord("tok")

	if err := m.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Insert(ctx, rec); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := m.FindByToken(ctx, "tok")
	if err != nil || got.Revoked || got.Subject != rec.Subject {
		t.Fatalf("find: %+v %v", got, err)
	}
	got.Revoked = true
	again, _ := m.FindByToken(ctx, "tok")
	if again.Revoked {
		t.Fatal("FindByToken must return a copy")
	}

	if res, _ := m.RevokeIfActive(ctx, "tok"); res != RevokeRevoked {
		t.Fatalf("first revoke: %v", res)
	}
	if res, _ := m.RevokeIfActive(ctx, "tok"); res != RevokeAlreadyRevoked {
		t.Fatalf("second revoke: %v", res)
	}
	if res, _ := m.RevokeIfActive(ctx, "other"); res != RevokeNotFound {
		t.Fatalf("unknown revoke: %v", res)
	}
	if _, err := m.FindByToken(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one record, got %d", m.Len())
	}
}

func TestMemoryStoreIsNotRotator(t *testing.T) {
	var s Store = NewMemoryStore()
	if _, ok := s.(Rotator); ok {
		t.Fatal("memory store should rotate in two steps")
	}
}

func TestMemoryStoreRevokeSingleWinner(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.Insert(ctx, testRecord("race")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, _ := m.RevokeIfActive(ctx, "race"); res == RevokeRevoked {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("expected one winner, got %d", won)
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Insert(ctx, testRecord("x")); !errors.Is(err, context.Canceled) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
