package goToken

import (
	"context"
	"time"
)

// TokenPair is the result of a successful issue or renewal.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RevokeOutcome is the logical result of Engine.Revoke.
type RevokeOutcome uint8

const (
	// RevokeOutcomeFailed accompanies ErrPersistence.
	RevokeOutcomeFailed RevokeOutcome = iota
	// RevokeOutcomeRevoked means this call revoked an active token.
	RevokeOutcomeRevoked
	// RevokeOutcomeNothingToRevoke covers unknown and already revoked tokens.
	RevokeOutcomeNothingToRevoke
)

func (o RevokeOutcome) String() string {
	switch o {
	case RevokeOutcomeRevoked:
		return "revoked"
	case RevokeOutcomeNothingToRevoke:
		return "nothing_to_revoke"
	default:
		return "failed"
	}
}

// CredentialValidator resolves an identifier and secret to the principal that
// becomes the token subject. A wrong identifier or secret must be reported as
// ErrInvalidCredentials (possibly wrapped); any other error is treated as a
// backend fault.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, identifier, secret string) (principal string, err error)
}
