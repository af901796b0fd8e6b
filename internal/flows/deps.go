package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/store"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Issue  IssueDeps
	Renew  RenewDeps
	Revoke RevokeDeps
	Login  LoginDeps
}

// TokenSigner mints signed tokens. *jwt.Manager satisfies it.
type TokenSigner interface {
	Sign(kind jwt.Kind, subject string, issuedAt, expiry time.Time) (string, error)
}

// TokenVerifier checks signed tokens against a caller-supplied clock.
// *jwt.Manager satisfies it.
type TokenVerifier interface {
	VerifyAt(kind jwt.Kind, token string, skew time.Duration, now time.Time) (*jwt.Claims, error)
}

// Minter holds what is needed to mint an access/refresh pair.
type Minter struct {
	Now        func() time.Time
	NewID      func() string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Signer     TokenSigner
}

// MintedPair is a freshly signed pair plus the record to persist for its
// refresh half.
type MintedPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Record           store.Record
}

// Mint signs both halves for subject at the minter's current time.
func (m Minter) Mint(subject string) (MintedPair, error) {
	now := m.Now().UTC()
	accessExp := now.Add(m.AccessTTL)
	refreshExp := now.Add(m.RefreshTTL)

	access, err := m.Signer.Sign(jwt.KindAccess, subject, now, accessExp)
	if err != nil {
		return MintedPair{}, err
	}
	refresh, err := m.Signer.Sign(jwt.KindRefresh, subject, now, refreshExp)
	if err != nil {
		return MintedPair{}, err
	}

	return MintedPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Record: store.Record{
			ID:        m.NewID(),
			Token:     refresh,
			Subject:   subject,
			ExpiresAt: refreshExp,
			CreatedAt: now,
		},
	}, nil
}

// Warnf is the optional warning hook flows use for best-effort side paths.
type Warnf func(ctx context.Context, msg string, args ...any)

func (w Warnf) call(ctx context.Context, msg string, args ...any) {
	if w != nil {
		w(ctx, msg, args...)
	}
}
