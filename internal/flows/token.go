package flows

import (
	"context"
	"time"
)

// IssuedToken is a signed auth token and its decoded expiry.
type IssuedToken struct {
	AccountID string
	Token     string
	ExpiresAt time.Time
}

type TokenMetrics struct {
	TokenIssued  int
	TokenInvalid int
}

type TokenErrors struct {
	EngineNotReady    error
	AccountIDRequired error
	TokenInvalid      error
}

type TokenDeps struct {
	Lifetime time.Duration

	Sign   func(subject string, ttl time.Duration) (string, error)
	Verify func(token string) (subject string, expiresAt time.Time, err error)

	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics TokenMetrics
	Errors  TokenErrors
}

// RunGenerateAuthToken signs a token for accountID and then verifies the
// token it just produced. ExpiresAt is the decoded exp claim, so callers see
// the same second-granularity value any later verifier will see.
func RunGenerateAuthToken(ctx context.Context, accountID string, deps TokenDeps) (*IssuedToken, error) {
	normalizeTokenDeps(&deps)

	if deps.Sign == nil || deps.Verify == nil || deps.Lifetime <= 0 {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return nil, deps.Errors.AccountIDRequired
	}

	token, err := deps.Sign(accountID, deps.Lifetime)
	if err != nil {
		return nil, err
	}

	subject, expiresAt, err := deps.Verify(token)
	if err != nil {
		deps.Warn("goaccounts: freshly signed token failed verification", "error", err)
		return nil, err
	}
	if subject != accountID {
		return nil, deps.Errors.TokenInvalid
	}

	deps.MetricInc(deps.Metrics.TokenIssued)
	return &IssuedToken{AccountID: accountID, Token: token, ExpiresAt: expiresAt}, nil
}

// RunVerifyAuthToken checks token and returns its subject and expiry. All
// verification failures collapse to TokenInvalid.
func RunVerifyAuthToken(ctx context.Context, token string, deps TokenDeps) (*IssuedToken, error) {
	normalizeTokenDeps(&deps)

	if deps.Verify == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return nil, deps.Errors.TokenInvalid
	}

	subject, expiresAt, err := deps.Verify(token)
	if err != nil || subject == "" {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return nil, deps.Errors.TokenInvalid
	}
	return &IssuedToken{AccountID: subject, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeTokenDeps(deps *TokenDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
