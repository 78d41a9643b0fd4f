package goAccounts

import (
	"time"

	"github.com/MrEthical07/goAccounts/jwt"
	"github.com/MrEthical07/goAccounts/password"
)

// SecurityReport summarizes the security-relevant settings an Engine was
// built with. It never contains key material.
type SecurityReport struct {
	SigningMethod           string
	CustomSigner            bool
	CustomHasher            bool
	Password                PasswordConfigReport
	TokenLifetime           time.Duration
	EmailTokenBytes         int
	UsernameRequired        bool
	EmailRequired           bool
	AutoLogin               bool
	RateLimitingActive      bool
	AuditActive             bool
	MetricsActive           bool
	LatencyHistogramsActive bool
}

// PasswordConfigReport carries the hashing parameters of the selected
// algorithm only.
type PasswordConfigReport struct {
	Algorithm      string
	Cost           int
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	UpgradeOnLogin bool
}

// SecurityReport returns a snapshot of the engine's effective security posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, builtinSigner := e.signer.(*jwt.Manager)
	_, builtinHasher := e.hasher.(*password.Hasher)

	pw := PasswordConfigReport{
		Algorithm:      e.config.Password.Algorithm,
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
	}
	if pw.Algorithm == "argon2id" {
		pw.Memory = e.config.Password.Memory
		pw.Time = e.config.Password.Time
		pw.Parallelism = e.config.Password.Parallelism
	} else {
		pw.Cost = e.config.Password.Cost
	}

	signing := e.config.Token.SigningMethod
	if !builtinSigner {
		signing = "custom"
	}

	return SecurityReport{
		SigningMethod:           signing,
		CustomSigner:            !builtinSigner,
		CustomHasher:            !builtinHasher,
		Password:                pw,
		TokenLifetime:           e.config.Token.Lifetime(),
		EmailTokenBytes:         e.config.EmailVerification.TokenBytes,
		UsernameRequired:        e.config.Account.UsernameRequired,
		EmailRequired:           e.config.Account.EmailRequired,
		AutoLogin:               e.config.Account.AutoLogin,
		RateLimitingActive:      e.limiter != nil,
		AuditActive:             e.audit != nil,
		MetricsActive:           e.metrics != nil && e.config.Metrics.Enabled,
		LatencyHistogramsActive: e.metrics != nil && e.config.Metrics.EnableLatencyHistograms,
	}
}
