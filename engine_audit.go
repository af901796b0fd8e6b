package goToken

import (
	"context"
	"errors"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/store"
)

// AuditReason is the machine-readable failure code carried in AuditEvent.Reason.
type AuditReason string

const (
	auditReasonUnauthorized       AuditReason = "unauthorized"
	auditReasonNotFound           AuditReason = "not_found"
	auditReasonRevoked            AuditReason = "revoked"
	auditReasonRecordExpired      AuditReason = "record_expired"
	auditReasonRaceLost           AuditReason = "race_lost"
	auditReasonInvalidCredentials AuditReason = "invalid_credentials"
	auditReasonRateLimited        AuditReason = "rate_limited"
	auditReasonIssuance           AuditReason = "issuance_failed"
	auditReasonNothingToRevoke    AuditReason = "nothing_to_revoke"
	auditReasonUnavailable        AuditReason = "backend_unavailable"
	auditReasonInternal           AuditReason = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	reason AuditReason,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Reason:    string(reason),
		Metadata:  metadata,
	})
}

// auditReasonOf picks a reason code for err. Verification failures report
// the jwt reason (expired, bad_signature, ...).
func auditReasonOf(err error) AuditReason {
	if err == nil {
		return ""
	}
	if r := jwt.ReasonOf(err); r != 0 {
		return AuditReason(r.String())
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditReasonInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRenewRateLimited):
		return auditReasonRateLimited
	case errors.Is(err, ErrNothingToRevoke):
		return auditReasonNothingToRevoke
	case errors.Is(err, store.ErrPersistence),
		errors.Is(err, store.ErrCorrupt):
		return auditReasonUnavailable
	case errors.Is(err, ErrIssuance):
		return auditReasonIssuance
	case errors.Is(err, ErrUnauthorized):
		return auditReasonUnauthorized
	default:
		return auditReasonInternal
	}
}
