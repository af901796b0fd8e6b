package goToken

import (
	"io"

	"github.com/MrEthical07/goToken/internal/audit"
)

// AuditEvent is one audit record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditTokenIssued            = "token_issued"
	AuditLoginSuccess           = "login_success"
	AuditLoginFailure           = "login_failure"
	AuditLoginRateLimited       = "login_rate_limited"
	AuditRenewSuccess           = "renew_success"
	AuditRenewRejected          = "renew_rejected"
	AuditRenewRateLimited       = "renew_rate_limited"
	AuditRotationPartialFailure = "rotation_partial_failure"
	AuditRevokeSuccess          = "revoke_success"
	AuditRevokeNothing          = "revoke_nothing"
	AuditRevokeFailure          = "revoke_failure"
)

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events on a channel; see Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
