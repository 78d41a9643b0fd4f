package goAccounts

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment prefix honoured by LoadConfig, e.g.
// GOACCOUNTS_TOKEN_SECRET overrides token.secret.
const EnvPrefix = "GOACCOUNTS"

// LoadConfig builds a Config from defaults, an optional file and the
// environment, in increasing order of precedence. An empty path skips the
// file. The result is validated before it is returned.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setConfigDefaults(v, defaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setConfigDefaults registers every key so AutomaticEnv can resolve it even
// when the file does not mention it.
func setConfigDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("account.username_required", cfg.Account.UsernameRequired)
	v.SetDefault("account.email_required", cfg.Account.EmailRequired)
	v.SetDefault("account.auto_login", cfg.Account.AutoLogin)

	v.SetDefault("password.algorithm", cfg.Password.Algorithm)
	v.SetDefault("password.cost", cfg.Password.Cost)
	v.SetDefault("password.memory", cfg.Password.Memory)
	v.SetDefault("password.time", cfg.Password.Time)
	v.SetDefault("password.parallelism", cfg.Password.Parallelism)
	v.SetDefault("password.salt_length", cfg.Password.SaltLength)
	v.SetDefault("password.key_length", cfg.Password.KeyLength)
	v.SetDefault("password.upgrade_on_login", cfg.Password.UpgradeOnLogin)

	v.SetDefault("token.secret", cfg.Token.Secret)
	v.SetDefault("token.lifetime_days", cfg.Token.LifetimeDays)
	v.SetDefault("token.signing_method", cfg.Token.SigningMethod)
	v.SetDefault("token.issuer", cfg.Token.Issuer)
	v.SetDefault("token.audience", cfg.Token.Audience)
	v.SetDefault("token.leeway", cfg.Token.Leeway)

	v.SetDefault("email_verification.token_bytes", cfg.EmailVerification.TokenBytes)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.redis_prefix", cfg.RateLimit.RedisPrefix)
	v.SetDefault("rate_limit.max_login_attempts", cfg.RateLimit.MaxLoginAttempts)
	v.SetDefault("rate_limit.login_window", cfg.RateLimit.LoginWindow)
	v.SetDefault("rate_limit.max_account_creations", cfg.RateLimit.MaxAccountCreations)
	v.SetDefault("rate_limit.account_creation_window", cfg.RateLimit.AccountCreationWindow)
	v.SetDefault("rate_limit.max_verification_requests", cfg.RateLimit.MaxVerificationRequests)
	v.SetDefault("rate_limit.verification_window", cfg.RateLimit.VerificationWindow)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.buffer_size", cfg.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", cfg.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", cfg.Metrics.EnableLatencyHistograms)
}
