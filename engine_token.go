package goAccounts

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccounts/internal/flows"
	"go.opentelemetry.io/otel/attribute"
)

// GenerateAuthToken describes the generateauthtoken operation and its observable behavior.
//
// GenerateAuthToken may return an error when accountID is empty or signing fails.
// GenerateAuthToken does not consult the store: the caller vouches that accountID exists.
func (e *Engine) GenerateAuthToken(ctx context.Context, accountID string) (_ *AuthToken, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "generate_auth_token", attribute.String("goaccounts.account_id", accountID))
	defer func() { endSpan(span, err) }()

	issued, err := e.issueToken(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AuthToken{UserID: issued.AccountID, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// VerifyAuthToken checks signature, expiry and issuer of token and returns
// the account id it was issued for. Every failure is ErrTokenInvalid.
func (e *Engine) VerifyAuthToken(ctx context.Context, token string) (accountID string, expiresAt time.Time, err error) {
	if !e.ready() {
		return "", time.Time{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "verify_auth_token")
	defer func() { endSpan(span, err) }()

	issued, err := flows.RunVerifyAuthToken(ctx, token, e.tokenDeps())
	if err != nil {
		return "", time.Time{}, err
	}
	return issued.AccountID, issued.ExpiresAt, nil
}

func (e *Engine) issueToken(ctx context.Context, accountID string) (*flows.IssuedToken, error) {
	return flows.RunGenerateAuthToken(ctx, accountID, e.tokenDeps())
}

func (e *Engine) tokenDeps() flows.TokenDeps {
	return flows.TokenDeps{
		Lifetime: e.config.Token.Lifetime(),
		Sign:     e.signer.Sign,
		Verify: func(token string) (string, time.Time, error) {
			claims, err := e.signer.Verify(token)
			if err != nil {
				return "", time.Time{}, err
			}
			var expiresAt time.Time
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			return claims.Subject, expiresAt, nil
		},
		MetricInc: e.metricIncInt,
		Warn:      e.warn,
		Metrics: flows.TokenMetrics{
			TokenIssued:  int(MetricTokenIssued),
			TokenInvalid: int(MetricTokenInvalid),
		},
		Errors: flows.TokenErrors{
			EngineNotReady:    ErrEngineNotReady,
			AccountIDRequired: ErrAccountIDRequired,
			TokenInvalid:      ErrTokenInvalid,
		},
	}
}
