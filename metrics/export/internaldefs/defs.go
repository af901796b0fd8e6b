package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Token pairs issued."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Token pair issuance failures."},
	{ID: goToken.MetricLoginSuccess, Name: "gotoken_login_success_total", Help: "Successful logins."},
	{ID: goToken.MetricLoginFailure, Name: "gotoken_login_failure_total", Help: "Failed logins."},
	{ID: goToken.MetricLoginRateLimited, Name: "gotoken_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goToken.MetricRenewSuccess, Name: "gotoken_renew_success_total", Help: "Successful refresh token renewals."},
	{ID: goToken.MetricRenewRejected, Name: "gotoken_renew_rejected_total", Help: "Renewals rejected as unauthorized."},
	{ID: goToken.MetricRenewRaceLost, Name: "gotoken_renew_race_lost_total", Help: "Renewals that lost a concurrent rotation of the same token."},
	{ID: goToken.MetricRenewRateLimited, Name: "gotoken_renew_rate_limited_total", Help: "Rate-limited renewals."},
	{ID: goToken.MetricRenewFailure, Name: "gotoken_renew_failure_total", Help: "Renewals failed by store or signing faults."},
	{ID: goToken.MetricRotationPartialFailure, Name: "gotoken_rotation_partial_failure_total", Help: "Renewals that issued a new pair but could not revoke the old token."},
	{ID: goToken.MetricRevokeSuccess, Name: "gotoken_revoke_success_total", Help: "Refresh tokens revoked."},
	{ID: goToken.MetricRevokeNothing, Name: "gotoken_revoke_nothing_total", Help: "Revocations of unknown or already revoked tokens."},
	{ID: goToken.MetricRevokeFailure, Name: "gotoken_revoke_failure_total", Help: "Revocations failed by store faults."},
}

// HistogramDefs lists every engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricRenewLatency, Name: "gotoken_renew_latency_seconds", Help: "Renew latency histogram."},
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "gotoken_audit_dropped_total"

// HistogramBounds are the upper bounds of the engine's fixed buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into le-style running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
