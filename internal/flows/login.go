package flows

import (
	"context"
	"errors"
)

// LoginSelector is the resolved account query for a login attempt. Exactly
// one field is normally set.
type LoginSelector struct {
	ID           string
	Username     string
	EmailAddress string
}

// IsZero reports whether no selector field is set.
func (s LoginSelector) IsZero() bool {
	return s.ID == "" && s.Username == "" && s.EmailAddress == ""
}

// Key is the identifier used for throttling and audit metadata.
func (s LoginSelector) Key() string {
	switch {
	case s.EmailAddress != "":
		return s.EmailAddress
	case s.Username != "":
		return s.Username
	default:
		return "id:" + s.ID
	}
}

// LoginAccountRecord is a flow-local account model carrying the credential.
type LoginAccountRecord struct {
	ID         string
	Credential string
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordUpgraded int
}

type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

type LoginErrors struct {
	EngineNotReady    error
	SelectorRequired  error
	PasswordRequired  error
	UserNotFound      error
	CredentialNotSet  error
	IncorrectPassword error
	RateLimited       error
}

// LoginDeps captures loginWithPassword dependencies. The limiter functions
// are optional; when CheckLoginRate is nil no throttling happens.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	CheckLoginRate     func(context.Context, string) error
	IncrementLoginRate func(context.Context, string) error
	ResetLoginRate     func(context.Context, string) error

	FindAccount          func(context.Context, LoginSelector) (*LoginAccountRecord, error)
	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdateCredential     func(context.Context, string, string) error
	IssueToken           func(context.Context, string) (*IssuedToken, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLoginWithPassword resolves the account for sel, checks password
// against its stored credential, and issues an auth token on success.
func RunLoginWithPassword(ctx context.Context, sel LoginSelector, password string, deps LoginDeps) (*IssuedToken, error) {
	normalizeLoginDeps(&deps)

	if deps.FindAccount == nil || deps.VerifyPassword == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if sel.IsZero() {
		return nil, deps.Errors.SelectorRequired
	}
	if password == "" {
		return nil, deps.Errors.PasswordRequired
	}

	key := sel.Key()

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, key); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", err, func() map[string]string {
					return map[string]string{
						"selector": key,
					}
				})
			}
			return nil, err
		}
	}

	fail := func(accountID string, err error, reason string) (*IssuedToken, error) {
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, key); rerr != nil {
				deps.Warn("goaccounts: login limiter increment failed", "error", rerr)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, err, func() map[string]string {
			return map[string]string{
				"selector": key,
				"reason":   reason,
			}
		})
		return nil, err
	}

	account, err := deps.FindAccount(ctx, sel)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return fail("", deps.Errors.UserNotFound, "user_not_found")
	}
	if account.Credential == "" {
		return fail(account.ID, deps.Errors.CredentialNotSet, "credential_not_set")
	}

	ok, err := deps.VerifyPassword(password, account.Credential)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fail(account.ID, deps.Errors.IncorrectPassword, "incorrect_password")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, key); err != nil {
			deps.Warn("goaccounts: login limiter reset failed", "error", err)
		}
	}

	if deps.PasswordUpgradeOnLogin {
		upgradeCredential(ctx, account, password, deps)
	}

	token, err := deps.IssueToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, nil, nil)
	return token, nil
}

// upgradeCredential rehashes with current parameters. Failures are logged and
// never fail the login.
func upgradeCredential(ctx context.Context, account *LoginAccountRecord, password string, deps LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdateCredential == nil {
		return
	}
	needs, err := deps.PasswordNeedsUpgrade(account.Credential)
	if err != nil || !needs {
		return
	}
	digest, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("goaccounts: credential rehash failed", "account_id", account.ID, "error", err)
		return
	}
	if err := deps.UpdateCredential(ctx, account.ID, digest); err != nil {
		deps.Warn("goaccounts: credential upgrade not persisted", "account_id", account.ID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
