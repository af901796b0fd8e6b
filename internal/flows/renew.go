package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/store"
)

// RenewFailureKind classifies renew flow failures for root-level mapping.
type RenewFailureKind int

const (
	RenewFailureNone RenewFailureKind = iota
	// RenewFailureVerify: signature, claims or type check failed.
	RenewFailureVerify
	// RenewFailureNotFound: the store has no record for the token.
	RenewFailureNotFound
	// RenewFailureRevoked: the record is already revoked.
	RenewFailureRevoked
	// RenewFailureStoredExpiry: the stored expiry has passed.
	RenewFailureStoredExpiry
	// RenewFailureLookup: FindByToken hit a persistence fault.
	RenewFailureLookup
	// RenewFailureSubject: the verified claims carry no subject.
	RenewFailureSubject
	RenewFailureRateLimited
	RenewFailureSign
	// RenewFailureInsert: persisting the replacement record failed.
	RenewFailureInsert
	// RenewFailureRotate: the atomic rotation hit a fault; nothing changed.
	RenewFailureRotate
	// RenewFailureLostRace: another caller revoked the token first.
	RenewFailureLostRace
	// RenewFailurePartial: the new pair was persisted but revoking the old
	// token failed. Pair is populated.
	RenewFailurePartial
)

// RenewResult carries either the rotated pair or failure metadata.
type RenewResult struct {
	Failure    RenewFailureKind
	Err        error
	Subject    string
	OldTokenID string
	Pair       MintedPair
	// Atomic reports whether the store rotated in a single step.
	Atomic bool
	// CompensationErr is set when revoking a losing caller's fresh token failed.
	CompensationErr error
}

// RenewRateLimiter throttles renewals per subject.
type RenewRateLimiter interface {
	CheckRenew(ctx context.Context, subject string) error
}

// RenewDeps captures renew flow dependencies.
type RenewDeps struct {
	Minter      Minter
	ClockSkew   time.Duration
	Verifier    TokenVerifier
	Store       store.Store
	RateLimiter RenewRateLimiter
	Warn        Warnf
}

// RunRenew exchanges a refresh token for a new pair and retires the old one.
//
// Store state is always consulted; a valid signature alone is not enough.
// When the store implements [store.Rotator] the swap is one atomic call.
// Otherwise the new record is inserted first and the old one revoked second;
// a caller that loses the revoke race has its fresh token revoked again so at
// most one renewal of a given token ever yields a usable pair.
func RunRenew(ctx context.Context, refreshToken string, deps RenewDeps) RenewResult {
	now := deps.Minter.Now()
	claims, err := deps.Verifier.VerifyAt(jwt.KindRefresh, refreshToken, deps.ClockSkew, now)
	if err != nil {
		return RenewResult{Failure: RenewFailureVerify, Err: err}
	}
	subject := claims.Subject

	rec, err := deps.Store.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenewResult{Failure: RenewFailureNotFound, Err: err, Subject: subject}
		}
		return RenewResult{Failure: RenewFailureLookup, Err: err, Subject: subject}
	}
	if rec.Revoked {
		return RenewResult{Failure: RenewFailureRevoked, Err: errRecordRevoked, Subject: subject, OldTokenID: rec.ID}
	}
	if !now.Before(rec.ExpiresAt) {
		return RenewResult{Failure: RenewFailureStoredExpiry, Err: errRecordExpired, Subject: subject, OldTokenID: rec.ID}
	}
	if subject == "" {
		return RenewResult{Failure: RenewFailureSubject, Err: errEmptySubject, OldTokenID: rec.ID}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRenew(ctx, subject); err != nil {
			return RenewResult{Failure: RenewFailureRateLimited, Err: err, Subject: subject, OldTokenID: rec.ID}
		}
	}

	pair, err := deps.Minter.Mint(subject)
	if err != nil {
		return RenewResult{Failure: RenewFailureSign, Err: err, Subject: subject, OldTokenID: rec.ID}
	}

	base := RenewResult{Subject: subject, OldTokenID: rec.ID}
	if rotator, ok := deps.Store.(store.Rotator); ok {
		return rotateAtomic(ctx, rotator, refreshToken, pair, base)
	}
	return rotateTwoStep(ctx, deps, refreshToken, pair, base)
}

var (
	errRecordRevoked = errors.New("refresh token revoked")
	errRecordExpired = errors.New("refresh token record expired")
	errLostRace      = errors.New("refresh token already rotated")
)

func rotateAtomic(ctx context.Context, rotator store.Rotator, oldToken string, pair MintedPair, res RenewResult) RenewResult {
	res.Atomic = true
	outcome, err := rotator.Rotate(ctx, oldToken, pair.Record)
	if err != nil {
		res.Failure = RenewFailureRotate
		res.Err = err
		return res
	}
	if outcome != store.RevokeRevoked {
		res.Failure = RenewFailureLostRace
		res.Err = errLostRace
		return res
	}
	res.Pair = pair
	return res
}

func rotateTwoStep(ctx context.Context, deps RenewDeps, oldToken string, pair MintedPair, res RenewResult) RenewResult {
	if err := deps.Store.Insert(ctx, pair.Record); err != nil {
		res.Failure = RenewFailureInsert
		res.Err = err
		return res
	}

	outcome, err := deps.Store.RevokeIfActive(ctx, oldToken)
	if err != nil {
		res.Failure = RenewFailurePartial
		res.Err = err
		res.Pair = pair
		return res
	}
	if outcome == store.RevokeRevoked {
		res.Pair = pair
		return res
	}

	if _, cerr := deps.Store.RevokeIfActive(ctx, pair.Record.Token); cerr != nil {
		res.CompensationErr = cerr
		deps.Warn.call(ctx, "revoking losing renewal failed", "token_id", pair.Record.ID, "error", cerr)
	}
	res.Failure = RenewFailureLostRace
	res.Err = errLostRace
	return res
}
