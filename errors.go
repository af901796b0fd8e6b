package goToken

import (
	"errors"

	"github.com/MrEthical07/goToken/store"
)

var (
	// ErrUnauthorized is returned when a refresh or access token cannot be
	// honored: bad signature or claims, unknown, revoked, expired, or already
	// rotated by a concurrent caller. The verification reason, when there is
	// one, is wrapped and reachable with errors.Is / jwt.ReasonOf.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIssuance is returned when a new pair could not be minted or persisted.
	ErrIssuance = errors.New("token issuance failed")
	// ErrRotationPartialFailure accompanies a valid new pair when the old
	// refresh token could not be revoked. The caller holds working tokens but
	// the old refresh token may remain usable until it expires.
	ErrRotationPartialFailure = errors.New("rotation partially failed: previous refresh token not revoked")
	// ErrNothingToRevoke is returned by Revoke for unknown or already revoked tokens.
	ErrNothingToRevoke = errors.New("nothing to revoke")
	// ErrPersistence marks revocation store faults.
	ErrPersistence = store.ErrPersistence
	// ErrInvalidCredentials is returned by Login, and by CredentialValidator
	// implementations, for a bad identifier or secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRenewRateLimited   = errors.New("renew rate limited")
	// ErrEngineNotReady is returned when an operation needs a dependency the
	// engine was built without, or the engine is nil.
	ErrEngineNotReady = errors.New("engine not ready")
)
