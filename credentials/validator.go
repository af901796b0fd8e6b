package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserNotFound is returned by a UserLookup for an unknown identifier.
// Validator reports it to callers as goToken.ErrInvalidCredentials.
var ErrUserNotFound = errors.New("user not found")

// UserLookup resolves an identifier to its principal and password hash.
type UserLookup interface {
	LookupUser(ctx context.Context, identifier string) (principal string, hash []byte, err error)
}

// Validator checks secrets against bcrypt or argon2id hashes from a UserLookup.
type Validator struct {
	users UserLookup
	// dummy is compared for unknown users so both paths cost one bcrypt run.
	dummy []byte
}

var _ goToken.CredentialValidator = (*Validator)(nil)

// NewValidator returns a validator over users.
func NewValidator(users UserLookup) (*Validator, error) {
	if users == nil {
		return nil, errors.New("user lookup is required")
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("gotoken-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Validator{users: users, dummy: dummy}, nil
}

// ValidateCredentials implements goToken.CredentialValidator.
func (v *Validator) ValidateCredentials(ctx context.Context, identifier, secret string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return "", goToken.ErrInvalidCredentials
	}

	principal, hash, err := v.users.LookupUser(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(secret))
		return "", goToken.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	ok, err := compareHash(hash, secret)
	if err != nil {
		return "", fmt.Errorf("compare hash: %w", err)
	}
	if !ok {
		return "", goToken.ErrInvalidCredentials
	}
	if principal == "" {
		principal = identifier
	}
	return principal, nil
}

var argon2Prefix = []byte("$" + argon2Algorithm + "$")

// compareHash reports a mismatch as (false, nil); an unreadable hash is an error.
func compareHash(hash []byte, secret string) (bool, error) {
	if bytes.HasPrefix(hash, argon2Prefix) {
		return verifyArgon2(secret, string(hash))
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
