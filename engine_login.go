package goAccounts

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccounts/internal/flows"
	"github.com/MrEthical07/goAccounts/validate"
)

// LoginWithPassword describes the loginwithpassword operation and its observable behavior.
//
// LoginWithPassword may return an error when the selector or password is missing, no account matches,
// the account has no credential, the password does not match, or the login throttle is exhausted.
// LoginWithPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// selector is either a string (an address when it contains "@", a username
// otherwise) or a query accepted by FindAccountByQuery.
func (e *Engine) LoginWithPassword(ctx context.Context, selector any, plaintext string) (_ *AuthToken, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	ctx, span := e.startSpan(ctx, "login_with_password")
	defer func() { endSpan(span, err) }()

	if selectorMissing(selector) {
		return nil, ErrSelectorRequired
	}
	if plaintext == "" {
		return nil, ErrPasswordRequired
	}

	q, err := resolveLoginSelector(selector)
	if err != nil {
		return nil, err
	}

	issued, err := flows.RunLoginWithPassword(ctx, flows.LoginSelector{
		ID:           q.ID,
		Username:     q.Username,
		EmailAddress: q.EmailAddress,
	}, plaintext, e.loginDeps())
	if err != nil {
		return nil, err
	}
	return &AuthToken{UserID: issued.AccountID, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

func selectorMissing(selector any) bool {
	switch v := selector.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *Query:
		return v == nil
	}
	return false
}

func resolveLoginSelector(selector any) (Query, error) {
	if s, ok := selector.(string); ok {
		if validate.LooksLikeEmail(s) {
			return Query{EmailAddress: validate.NormalizeEmail(s)}, nil
		}
		return Query{Username: validate.NormalizeUsername(s)}, nil
	}
	return decodeQuery(selector)
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		FindAccount: func(ctx context.Context, sel flows.LoginSelector) (*flows.LoginAccountRecord, error) {
			acct, err := e.findOne(ctx, Query{ID: sel.ID, Username: sel.Username, EmailAddress: sel.EmailAddress}, true)
			if err != nil || acct == nil {
				return nil, err
			}
			return &flows.LoginAccountRecord{ID: acct.ID, Credential: acct.Credential}, nil
		},
		VerifyPassword:   e.hasher.Verify,
		HashPassword:     e.hasher.Hash,
		UpdateCredential: e.updateCredential,
		IssueToken:       e.issueToken,
		MetricInc:        e.metricIncInt,
		EmitAudit:        e.emitAudit,
		Warn:             e.warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:    ErrEngineNotReady,
			SelectorRequired:  ErrSelectorRequired,
			PasswordRequired:  ErrPasswordRequired,
			UserNotFound:      ErrUserNotFound,
			CredentialNotSet:  ErrCredentialNotSet,
			IncorrectPassword: ErrIncorrectPassword,
			RateLimited:       ErrRateLimited,
		},
	}

	if u, ok := e.hasher.(upgradeAware); ok {
		deps.PasswordNeedsUpgrade = u.NeedsUpgrade
	}

	if e.limiter != nil {
		policy := e.loginPolicy()
		deps.CheckLoginRate = func(ctx context.Context, key string) error {
			return e.limiterError(e.limiter.Check(ctx, policy, key))
		}
		deps.IncrementLoginRate = func(ctx context.Context, key string) error {
			_, err := e.limiter.Hit(ctx, policy, key)
			return err
		}
		deps.ResetLoginRate = func(ctx context.Context, key string) error {
			return e.limiter.Reset(ctx, policy, key)
		}
	}

	return deps
}
