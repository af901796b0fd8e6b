package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a token.
	ErrNotFound = errors.New("refresh token not found")
	// ErrConflict is returned when a record with the same token already exists.
	ErrConflict = errors.New("refresh token already exists")
	// ErrPersistence wraps every infrastructure fault raised by a backend.
	ErrPersistence = errors.New("refresh token store unavailable")
	// ErrCorrupt is joined with ErrPersistence when a stored record cannot be decoded.
	ErrCorrupt = errors.New("refresh token record corrupt")
)

// RevokeResult is the logical outcome of RevokeIfActive and Rotate.
type RevokeResult uint8

const (
	// RevokeFailed accompanies a non-nil persistence error.
	RevokeFailed RevokeResult = iota
	// RevokeRevoked means this call performed the false -> true transition.
	RevokeRevoked
	// RevokeAlreadyRevoked means another call won the transition earlier.
	RevokeAlreadyRevoked
	// RevokeNotFound means no record exists for the token.
	RevokeNotFound
)

func (r RevokeResult) String() string {
	switch r {
	case RevokeRevoked:
		return "revoked"
	case RevokeAlreadyRevoked:
		return "already_revoked"
	case RevokeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Record is the persisted state of one refresh token.
type Record struct {
	ID        string
	Token     string
	Subject   string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	RevokedAt time.Time
}

// Active reports whether the record is unrevoked and its stored expiry has
// not passed at now.
func (r *Record) Active(now time.Time) bool {
	return r != nil && !r.Revoked && now.Before(r.ExpiresAt)
}

// Store is the set of operations the token engine needs from persistence.
//
// RevokeIfActive must be atomic: under concurrent callers at most one of them
// observes RevokeRevoked for a given token.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	FindByToken(ctx context.Context, token string) (*Record, error)
	RevokeIfActive(ctx context.Context, token string) (RevokeResult, error)
}

// Rotator is implemented by backends that can revoke the presented token and
// insert its replacement in one atomic step. When the old token is not active
// nothing is inserted and the result is RevokeAlreadyRevoked or RevokeNotFound.
type Rotator interface {
	Rotate(ctx context.Context, oldToken string, next Record) (RevokeResult, error)
}

// Pinger reports backend reachability and round-trip latency.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

func validateRecord(rec Record) error {
	switch {
	case rec.ID == "":
		return errors.New("record id is required")
	case rec.Token == "":
		return errors.New("record token is required")
	case rec.Subject == "":
		return errors.New("record subject is required")
	case rec.ExpiresAt.IsZero():
		return errors.New("record expiry is required")
	case rec.Revoked:
		return errors.New("record must be inserted active")
	}
	return nil
}
