package internaldefs

import (
	goAccounts "github.com/MrEthical07/goAccounts"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goAccounts.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goAccounts.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter name for audit events lost to backpressure.
const AuditDroppedName = "goaccounts_audit_dropped_total"

// CounterDefs is an exported constant or variable used by the account engine.
var CounterDefs = []CounterDef{
	{ID: goAccounts.MetricAccountCreated, Name: "goaccounts_account_created_total", Help: "Accounts created."},
	{ID: goAccounts.MetricAccountCreationFailure, Name: "goaccounts_account_creation_failure_total", Help: "Account creation attempts rejected by validation or backend failure."},
	{ID: goAccounts.MetricAccountCreationDuplicate, Name: "goaccounts_account_creation_duplicate_total", Help: "Account creation attempts rejected for a taken username or email."},
	{ID: goAccounts.MetricAccountCreationRateLimited, Name: "goaccounts_account_creation_rate_limited_total", Help: "Rate-limited account creation attempts."},
	{ID: goAccounts.MetricLoginSuccess, Name: "goaccounts_login_success_total", Help: "Successful password logins."},
	{ID: goAccounts.MetricLoginFailure, Name: "goaccounts_login_failure_total", Help: "Failed password logins."},
	{ID: goAccounts.MetricLoginRateLimited, Name: "goaccounts_login_rate_limited_total", Help: "Rate-limited password logins."},
	{ID: goAccounts.MetricPasswordUpgraded, Name: "goaccounts_password_upgraded_total", Help: "Credential digests rehashed on login."},
	{ID: goAccounts.MetricPasswordChangeSuccess, Name: "goaccounts_password_change_success_total", Help: "Successful password changes."},
	{ID: goAccounts.MetricPasswordChangeInvalidOld, Name: "goaccounts_password_change_invalid_old_total", Help: "Password changes rejected for an incorrect old password."},
	{ID: goAccounts.MetricPasswordChangeFailure, Name: "goaccounts_password_change_failure_total", Help: "Password changes rejected for other reasons."},
	{ID: goAccounts.MetricEmailAdded, Name: "goaccounts_email_added_total", Help: "Email addresses added to accounts."},
	{ID: goAccounts.MetricEmailRemoved, Name: "goaccounts_email_removed_total", Help: "Email addresses removed from accounts."},
	{ID: goAccounts.MetricEmailVerificationIssued, Name: "goaccounts_email_verification_issued_total", Help: "Email verification tokens issued."},
	{ID: goAccounts.MetricEmailVerificationRateLimited, Name: "goaccounts_email_verification_rate_limited_total", Help: "Rate-limited email verification requests."},
	{ID: goAccounts.MetricTokenIssued, Name: "goaccounts_token_issued_total", Help: "Auth tokens issued."},
	{ID: goAccounts.MetricTokenInvalid, Name: "goaccounts_token_invalid_total", Help: "Auth tokens rejected on verification."},
	{ID: goAccounts.MetricRateLimitHit, Name: "goaccounts_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the account engine.
var HistogramDefs = []HistogramDef{
	{ID: goAccounts.MetricLoginLatency, Name: "goaccounts_login_latency_seconds", Help: "LoginWithPassword latency histogram."},
	{ID: goAccounts.MetricCreateAccountLatency, Name: "goaccounts_create_account_latency_seconds", Help: "CreateAccount latency histogram."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, matching the
// engine's fixed buckets. The final +Inf bucket is implicit.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix is an exported constant or variable used by the account engine.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
