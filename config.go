package goAccounts

import (
	"errors"
	"time"
)

// Config defines a public type used by goAccounts APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Account           AccountConfig           `mapstructure:"account"`
	Password          PasswordConfig          `mapstructure:"password"`
	Token             TokenConfig             `mapstructure:"token"`
	EmailVerification EmailVerificationConfig `mapstructure:"email_verification"`
	RateLimit         RateLimitConfig         `mapstructure:"rate_limit"`
	Audit             AuditConfig             `mapstructure:"audit"`
	Metrics           MetricsConfig           `mapstructure:"metrics"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig holds the required-field policy and auto-login default used
// by CreateAccount. Each flag can be overridden per call with
// CreateAccountPolicy.
type AccountConfig struct {
	UsernameRequired bool `mapstructure:"username_required"`
	EmailRequired    bool `mapstructure:"email_required"`
	AutoLogin        bool `mapstructure:"auto_login"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goAccounts APIs.
//
// Algorithm selects the digest format for new hashes ("bcrypt" or "argon2id").
// Digests of either format are always accepted on verify.
type PasswordConfig struct {
	Algorithm      string `mapstructure:"algorithm"`
	Cost           int    `mapstructure:"cost"`
	Memory         uint32 `mapstructure:"memory"` // in KB
	Time           uint32 `mapstructure:"time"`
	Parallelism    uint8  `mapstructure:"parallelism"`
	SaltLength     uint32 `mapstructure:"salt_length"`
	KeyLength      uint32 `mapstructure:"key_length"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goAccounts APIs.
//
// KeyID is written to the "kid" header of issued tokens. When VerifyKeys is
// set, tokens verify against the key registered under their kid, which
// allows ed25519 key rotation.
type TokenConfig struct {
	Secret        string            `mapstructure:"secret"`
	LifetimeDays  int               `mapstructure:"lifetime_days"`
	SigningMethod string            `mapstructure:"signing_method"` // "hs256" (default) or "ed25519"
	PrivateKey    []byte            `mapstructure:"-"`
	PublicKey     []byte            `mapstructure:"-"`
	Issuer        string            `mapstructure:"issuer"`
	Audience      string            `mapstructure:"audience"`
	Leeway        time.Duration     `mapstructure:"leeway"`
	RequireIAT    bool              `mapstructure:"require_iat"`
	MaxFutureIAT  time.Duration     `mapstructure:"max_future_iat"`
	KeyID         string            `mapstructure:"key_id"`
	VerifyKeys    map[string][]byte `mapstructure:"-"`
}

// Lifetime returns the token lifetime as a duration.
func (c TokenConfig) Lifetime() time.Duration {
	return time.Duration(c.LifetimeDays) * 24 * time.Hour
}

// EmailVerificationConfig defines a public type used by goAccounts APIs.
type EmailVerificationConfig struct {
	TokenBytes int `mapstructure:"token_bytes"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig enables redis-backed fixed-window throttles. A redis client
// must be supplied to the Builder when Enabled is true.
type RateLimitConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	RedisPrefix             string        `mapstructure:"redis_prefix"`
	MaxLoginAttempts        int           `mapstructure:"max_login_attempts"`
	LoginWindow             time.Duration `mapstructure:"login_window"`
	MaxAccountCreations     int           `mapstructure:"max_account_creations"`
	AccountCreationWindow   time.Duration `mapstructure:"account_creation_window"`
	MaxVerificationRequests int           `mapstructure:"max_verification_requests"`
	VerificationWindow      time.Duration `mapstructure:"verification_window"`
}

// AuditConfig defines a public type used by goAccounts APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig defines a public type used by goAccounts APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Token.Secret is left
// empty and must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Account: AccountConfig{
			UsernameRequired: false,
			EmailRequired:    false,
			AutoLogin:        false,
		},
		Password: PasswordConfig{
			Algorithm:      "bcrypt",
			Cost:           10,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: false,
		},
		Token: TokenConfig{
			LifetimeDays:  30,
			SigningMethod: "hs256",
			Leeway:        0,
		},
		EmailVerification: EmailVerificationConfig{
			TokenBytes: 32,
		},
		RateLimit: RateLimitConfig{
			Enabled:                 false,
			RedisPrefix:             "ga",
			MaxLoginAttempts:        5,
			LoginWindow:             15 * time.Minute,
			MaxAccountCreations:     5,
			AccountCreationWindow:   15 * time.Minute,
			MaxVerificationRequests: 5,
			VerificationWindow:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when a section holds an out-of-range value or required key material is missing.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips token key checks when requireKeys is false, which is the
// case when the Builder was given its own Signer.
func (c *Config) validate(requireKeys bool) error {
	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.Cost < 4 || c.Password.Cost > 31 {
			return errors.New("Password Cost must be between 4 and 31")
		}
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}

	// Token
	if c.Token.LifetimeDays <= 0 {
		return errors.New("Token LifetimeDays must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	if c.Token.MaxFutureIAT < 0 || c.Token.MaxFutureIAT > 24*time.Hour {
		return errors.New("Token MaxFutureIAT must be between 0 and 24h")
	}
	if requireKeys {
		switch c.Token.SigningMethod {
		case "hs256":
			if c.Token.Secret == "" {
				return errors.New("hs256 requires Token Secret")
			}
		case "ed25519":
			if len(c.Token.PrivateKey) == 0 {
				return errors.New("ed25519 requires PrivateKey")
			}
			if len(c.Token.PublicKey) == 0 && len(c.Token.VerifyKeys) == 0 {
				return errors.New("ed25519 requires PublicKey or VerifyKeys")
			}
		default:
			return errors.New("unsupported Token signing method")
		}
	}

	// Email verification
	if c.EmailVerification.TokenBytes < 16 || c.EmailVerification.TokenBytes > 128 {
		return errors.New("EmailVerification TokenBytes must be between 16 and 128")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.RedisPrefix == "" {
			return errors.New("RateLimit RedisPrefix must be set")
		}
		if c.RateLimit.MaxLoginAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit login budget must be > 0")
		}
		if c.RateLimit.MaxAccountCreations <= 0 || c.RateLimit.AccountCreationWindow <= 0 {
			return errors.New("RateLimit account creation budget must be > 0")
		}
		if c.RateLimit.MaxVerificationRequests <= 0 || c.RateLimit.VerificationWindow <= 0 {
			return errors.New("RateLimit verification budget must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
