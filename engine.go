package goToken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/store"
)

// Engine issues, renews and revokes token pairs. Build one with [Builder].
// All methods are safe for concurrent use.
type Engine struct {
	config    Config
	store     store.Store
	jwt       *jwt.Manager
	flows     flows.Service
	limiter   *rate.Limiter
	validator CredentialValidator
	audit     *audit.Dispatcher
	metrics   *Metrics
	log       logging.Logger
	now       func() time.Time
}

// Close flushes pending audit events. The store and Redis client belong to
// the caller and are left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the revocation store when it supports health checks.
// Stores without a Pinger report zero latency and no error.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	p, ok := e.store.(store.Pinger)
	if !ok {
		return 0, nil
	}
	return p.Ping(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// IssuePair mints an access token and a persisted refresh token for subject.
func (e *Engine) IssuePair(ctx context.Context, subject string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	res := e.flows.Issue(ctx, subject)
	if res.Failure != flows.IssueFailureNone {
		e.metricInc(MetricIssueFailure)
		err := fmt.Errorf("%w: %w", ErrIssuance, res.Err)
		e.log.Warn(ctx, "issue failed", "subject", subject, "error", res.Err)
		e.emitAudit(ctx, AuditTokenIssued, false, subject, "", auditReasonOf(err), nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, AuditTokenIssued, true, res.Subject, res.Pair.Record.ID, "", nil)
	return pairFromMinted(res.Pair), nil
}

// Renew exchanges refreshToken for a new pair and revokes it.
//
// Every rejection (bad token, unknown, revoked, expired, or beaten by a
// concurrent renewal) returns ErrUnauthorized. A store fault while looking
// the token up returns ErrPersistence; one while persisting the new pair
// returns ErrIssuance. When the new pair was persisted but the old token
// could not be revoked, Renew returns the new pair together with
// ErrRotationPartialFailure.
func (e *Engine) Renew(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricRenewLatency, time.Since(start))
		}()
	}

	res := e.flows.Renew(ctx, refreshToken)

	switch res.Failure {
	case flows.RenewFailureNone:
		e.metricInc(MetricRenewSuccess)
		e.emitAudit(ctx, AuditRenewSuccess, true, res.Subject, res.Pair.Record.ID, "", func() map[string]string {
			return map[string]string{"previous_token_id": res.OldTokenID}
		})
		return pairFromMinted(res.Pair), nil

	case flows.RenewFailureVerify,
		flows.RenewFailureNotFound,
		flows.RenewFailureRevoked,
		flows.RenewFailureStoredExpiry,
		flows.RenewFailureSubject:
		return TokenPair{}, e.rejectRenew(ctx, res, renewRejectReason(res))

	case flows.RenewFailureLostRace:
		e.metricInc(MetricRenewRaceLost)
		if res.CompensationErr != nil {
			e.log.Error(ctx, "losing renewal left an active refresh token", "token_id", res.Pair.Record.ID, "error", res.CompensationErr)
		}
		return TokenPair{}, e.rejectRenew(ctx, res, auditReasonRaceLost)

	case flows.RenewFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRedisUnavailable) {
			e.metricInc(MetricRenewFailure)
			return TokenPair{}, fmt.Errorf("%w: %w", ErrPersistence, res.Err)
		}
		e.metricInc(MetricRenewRateLimited)
		e.emitAudit(ctx, AuditRenewRateLimited, false, res.Subject, res.OldTokenID, auditReasonRateLimited, nil)
		return TokenPair{}, ErrRenewRateLimited

	case flows.RenewFailureLookup:
		e.metricInc(MetricRenewFailure)
		e.log.Warn(ctx, "renew lookup failed", "error", res.Err)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrPersistence, res.Err)

	case flows.RenewFailurePartial:
		e.metricInc(MetricRotationPartialFailure)
		err := fmt.Errorf("%w: %w", ErrRotationPartialFailure, res.Err)
		e.log.Error(ctx, "rotation partially failed; previous refresh token still active",
			"subject", res.Subject,
			"previous_token_id", res.OldTokenID,
			"token_id", res.Pair.Record.ID,
			"error", res.Err,
		)
		e.emitAudit(ctx, AuditRotationPartialFailure, false, res.Subject, res.Pair.Record.ID, auditReasonUnavailable, func() map[string]string {
			return map[string]string{"previous_token_id": res.OldTokenID}
		})
		return pairFromMinted(res.Pair), err

	default:
		// Sign, Insert and Rotate faults: nothing usable was handed out.
		e.metricInc(MetricRenewFailure)
		e.log.Warn(ctx, "renew issuance failed", "subject", res.Subject, "atomic", res.Atomic, "error", res.Err)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrIssuance, res.Err)
	}
}

func (e *Engine) rejectRenew(ctx context.Context, res flows.RenewResult, reason AuditReason) error {
	e.metricInc(MetricRenewRejected)
	e.emitAudit(ctx, AuditRenewRejected, false, res.Subject, res.OldTokenID, reason, nil)
	if res.Err == nil {
		return ErrUnauthorized
	}
	return fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)
}

func renewRejectReason(res flows.RenewResult) AuditReason {
	switch res.Failure {
	case flows.RenewFailureNotFound:
		return auditReasonNotFound
	case flows.RenewFailureRevoked:
		return auditReasonRevoked
	case flows.RenewFailureStoredExpiry:
		return auditReasonRecordExpired
	case flows.RenewFailureVerify:
		return auditReasonOf(res.Err)
	default:
		return auditReasonUnauthorized
	}
}

// Revoke marks refreshToken revoked. Unknown and already revoked tokens
// yield RevokeOutcomeNothingToRevoke with ErrNothingToRevoke.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) (RevokeOutcome, error) {
	if !e.ready() {
		return RevokeOutcomeFailed, ErrEngineNotReady
	}

	res := e.flows.Revoke(ctx, refreshToken)
	if res.Err != nil {
		e.metricInc(MetricRevokeFailure)
		e.log.Warn(ctx, "revoke failed", "error", res.Err)
		err := res.Err
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		e.emitAudit(ctx, AuditRevokeFailure, false, "", "", auditReasonUnavailable, nil)
		return RevokeOutcomeFailed, err
	}

	switch res.Result {
	case store.RevokeRevoked:
		e.metricInc(MetricRevokeSuccess)
		e.emitAudit(ctx, AuditRevokeSuccess, true, "", "", "", nil)
		return RevokeOutcomeRevoked, nil
	case store.RevokeAlreadyRevoked, store.RevokeNotFound:
		e.metricInc(MetricRevokeNothing)
		e.emitAudit(ctx, AuditRevokeNothing, false, "", "", auditReasonNothingToRevoke, func() map[string]string {
			return map[string]string{"result": res.Result.String()}
		})
		return RevokeOutcomeNothingToRevoke, ErrNothingToRevoke
	default:
		e.metricInc(MetricRevokeFailure)
		return RevokeOutcomeFailed, fmt.Errorf("%w: unexpected revoke result %d", ErrPersistence, res.Result)
	}
}

// Login validates credentials with the configured CredentialValidator and
// issues a pair for the returned principal. The client IP set with
// WithClientIP feeds the per-IP throttle and audit events.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (TokenPair, error) {
	if !e.ready() || !e.flows.HasValidator() {
		return TokenPair{}, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, identifier, secret, ClientIPFromContext(ctx))

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricIssueSuccess)
		e.emitAudit(ctx, AuditLoginSuccess, true, res.Subject, res.Issue.Pair.Record.ID, "", nil)
		return pairFromMinted(res.Issue.Pair), nil

	case flows.LoginFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRedisUnavailable) {
			e.metricInc(MetricLoginFailure)
			return TokenPair{}, fmt.Errorf("%w: %w", ErrPersistence, res.Err)
		}
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, AuditLoginRateLimited, false, "", "", auditReasonRateLimited, func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return TokenPair{}, ErrLoginRateLimited

	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, "", "", auditReasonInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureValidator:
		e.metricInc(MetricLoginFailure)
		e.log.Error(ctx, "credential validator failed", "error", res.Err)
		e.emitAudit(ctx, AuditLoginFailure, false, "", "", auditReasonUnavailable, nil)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrPersistence, res.Err)

	default:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricIssueFailure)
		e.log.Warn(ctx, "login issue failed", "subject", res.Subject, "error", res.Err)
		e.emitAudit(ctx, AuditLoginFailure, false, res.Subject, "", auditReasonIssuance, nil)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrIssuance, res.Err)
	}
}

// VerifyAccess checks an access token's signature and claims. It never
// touches the store.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwt.VerifyAt(jwt.KindAccess, accessToken, e.config.Token.ClockSkew, e.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims, nil
}

func pairFromMinted(p flows.MintedPair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
