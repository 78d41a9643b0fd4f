package flows

import (
	"context"
	"errors"
	"time"
)

// CreateAccountRequest is the normalized createAccount input plus the
// effective policy for this call.
type CreateAccountRequest struct {
	Username string
	Email    string
	Password string

	UsernameRequired bool
	EmailRequired    bool
	AutoLogin        bool
}

// CreateAccountResult is the flow-local createAccount response shape.
type CreateAccountResult struct {
	AccountID string
	Token     string
	ExpiresAt time.Time
}

type AccountMetrics struct {
	AccountCreated             int
	AccountCreationFailure     int
	AccountCreationDuplicate   int
	AccountCreationRateLimited int
}

type AccountEvents struct {
	AccountCreated             string
	AccountCreationFailure     string
	AccountCreationDuplicate   string
	AccountCreationRateLimited string
}

type AccountErrors struct {
	EngineNotReady    error
	MissingIdentifier error
	UsernameRequired  error
	EmailRequired     error
	InvalidEmail      error
	EmailTaken        error
	UsernameTaken     error
	RateLimited       error
	PasswordTooLong   error
}

type AccountDeps struct {
	IsEmail func(string) bool

	// EnforceCreateLimiter is optional; nil disables creation throttling.
	EnforceCreateLimiter func(context.Context, string) error

	EmailTaken    func(context.Context, string) (bool, error)
	UsernameTaken func(context.Context, string) (bool, error)

	HashPassword   func(string) (string, error)
	InsertAccount  func(ctx context.Context, username, email, credential string) (string, error)
	MapInsertError func(error) error
	IssueToken     func(context.Context, string) (*IssuedToken, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

// RunCreateAccount validates req, checks uniqueness, hashes the credential,
// persists the account, and optionally issues an auth token.
//
// Required-field checks always run before any store lookup. The lookups are
// a fast path only: a duplicate reported by InsertAccount is mapped through
// MapInsertError and is the authoritative answer.
func RunCreateAccount(ctx context.Context, req CreateAccountRequest, deps AccountDeps) (*CreateAccountResult, error) {
	normalizeAccountDeps(&deps)

	if deps.IsEmail == nil || deps.EmailTaken == nil || deps.UsernameTaken == nil ||
		deps.HashPassword == nil || deps.InsertAccount == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if req.AutoLogin && deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(err error, reason string) (*CreateAccountResult, error) {
		deps.MetricInc(deps.Metrics.AccountCreationFailure)
		deps.EmitAudit(ctx, deps.Events.AccountCreationFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return nil, err
	}

	switch {
	case req.Username == "" && req.Email == "":
		return fail(deps.Errors.MissingIdentifier, "missing_identifier")
	case req.Username == "" && req.UsernameRequired:
		return fail(deps.Errors.UsernameRequired, "username_required")
	case req.Email == "" && req.EmailRequired:
		return fail(deps.Errors.EmailRequired, "email_required")
	case req.Email != "" && !deps.IsEmail(req.Email):
		return fail(deps.Errors.InvalidEmail, "invalid_email")
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}

	if deps.EnforceCreateLimiter != nil {
		if err := deps.EnforceCreateLimiter(ctx, identifier); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.AccountCreationRateLimited)
				deps.EmitAudit(ctx, deps.Events.AccountCreationRateLimited, false, "", err, func() map[string]string {
					return map[string]string{
						"identifier": identifier,
					}
				})
			}
			return nil, err
		}
	}

	duplicate := func(err error, field string) (*CreateAccountResult, error) {
		deps.MetricInc(deps.Metrics.AccountCreationDuplicate)
		deps.EmitAudit(ctx, deps.Events.AccountCreationDuplicate, false, "", err, func() map[string]string {
			return map[string]string{
				"field": field,
			}
		})
		return nil, err
	}

	if req.Email != "" {
		taken, err := deps.EmailTaken(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			return duplicate(deps.Errors.EmailTaken, "email")
		}
	}
	if req.Username != "" {
		taken, err := deps.UsernameTaken(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			return duplicate(deps.Errors.UsernameTaken, "username")
		}
	}

	var credential string
	if req.Password != "" {
		digest, err := deps.HashPassword(req.Password)
		if err != nil {
			if deps.Errors.PasswordTooLong != nil && errors.Is(err, deps.Errors.PasswordTooLong) {
				return fail(err, "password_too_long")
			}
			return nil, err
		}
		credential = digest
	}

	accountID, err := deps.InsertAccount(ctx, req.Username, req.Email, credential)
	if err != nil {
		mapped := deps.MapInsertError(err)
		switch {
		case errors.Is(mapped, deps.Errors.EmailTaken):
			return duplicate(mapped, "email")
		case errors.Is(mapped, deps.Errors.UsernameTaken):
			return duplicate(mapped, "username")
		}
		return nil, mapped
	}

	deps.MetricInc(deps.Metrics.AccountCreated)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, accountID, nil, func() map[string]string {
		return map[string]string{
			"has_username": boolString(req.Username != ""),
			"has_email":    boolString(req.Email != ""),
			"has_password": boolString(credential != ""),
		}
	})

	if !req.AutoLogin {
		return &CreateAccountResult{AccountID: accountID}, nil
	}

	token, err := deps.IssueToken(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &CreateAccountResult{
		AccountID: accountID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.MapInsertError == nil {
		deps.MapInsertError = func(err error) error { return err }
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
