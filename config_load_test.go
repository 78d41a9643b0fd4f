package goAccounts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GOACCOUNTS_TOKEN_SECRET", "env-secret")
	t.Setenv("GOACCOUNTS_ACCOUNT_AUTO_LOGIN", "true")
	t.Setenv("GOACCOUNTS_RATE_LIMIT_LOGIN_WINDOW", "90s")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Secret != "env-secret" {
		t.Fatalf("secret from env not applied: %q", cfg.Token.Secret)
	}
	if !cfg.Account.AutoLogin {
		t.Fatal("auto login from env not applied")
	}
	if cfg.RateLimit.LoginWindow != 90*time.Second {
		t.Fatalf("unexpected login window %s", cfg.RateLimit.LoginWindow)
	}
	if cfg.Password.Cost != 10 || cfg.Token.LifetimeDays != 30 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	data := []byte(`account:
  username_required: true
password:
  cost: 6
token:
  secret: file-secret
  lifetime_days: 7
email_verification:
  token_bytes: 48
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GOACCOUNTS_TOKEN_LIFETIME_DAYS", "3")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Account.UsernameRequired || cfg.Account.EmailRequired {
		t.Fatalf("unexpected account section %+v", cfg.Account)
	}
	if cfg.Password.Cost != 6 || cfg.Token.Secret != "file-secret" || cfg.EmailVerification.TokenBytes != 48 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Token.LifetimeDays != 3 {
		t.Fatalf("env must override file, got %d", cfg.Token.LifetimeDays)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file to fail")
	}

	t.Setenv("GOACCOUNTS_TOKEN_SECRET", "s")
	t.Setenv("GOACCOUNTS_PASSWORD_COST", "2")
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected invalid cost to fail validation")
	}
}
