package flows

import (
	"context"
	"errors"
)

// CredentialAccount is the caller's view of an account. Credential may be
// empty when the account was read without hidden fields.
type CredentialAccount struct {
	ID         string
	Credential string
}

type CredentialMetrics struct {
	PasswordChangeSuccess    int
	PasswordChangeInvalidOld int
	PasswordChangeFailure    int
}

type CredentialEvents struct {
	PasswordChangeSuccess string
	PasswordChangeFailure string
}

type CredentialErrors struct {
	EngineNotReady      error
	AccountIDRequired   error
	AccountNotFound     error
	CredentialNotSet    error
	OldPasswordRequired error
	NewPasswordRequired error
	PasswordUnchanged   error
	IncorrectPassword   error
	PasswordTooLong     error
}

type CredentialDeps struct {
	// LoadCredential fetches the stored digest by account id. found is false
	// when the account does not exist.
	LoadCredential   func(ctx context.Context, accountID string) (digest string, found bool, err error)
	VerifyPassword   func(string, string) (bool, error)
	HashPassword     func(string) (string, error)
	UpdateCredential func(context.Context, string, string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics CredentialMetrics
	Events  CredentialEvents
	Errors  CredentialErrors
}

// RunComparePassword reports whether plaintext matches the account's stored
// credential, loading it by id when the caller's copy lacks it.
func RunComparePassword(ctx context.Context, account CredentialAccount, plaintext string, deps CredentialDeps) (bool, error) {
	normalizeCredentialDeps(&deps)

	if deps.LoadCredential == nil || deps.VerifyPassword == nil {
		return false, deps.Errors.EngineNotReady
	}
	if account.ID == "" {
		return false, deps.Errors.AccountIDRequired
	}

	digest := account.Credential
	if digest == "" {
		loaded, found, err := deps.LoadCredential(ctx, account.ID)
		if err != nil {
			return false, err
		}
		if !found {
			return false, deps.Errors.AccountNotFound
		}
		digest = loaded
	}
	if digest == "" {
		return false, deps.Errors.CredentialNotSet
	}

	return deps.VerifyPassword(plaintext, digest)
}

// RunChangePassword replaces the stored credential after verifying
// oldPassword, returning the new digest.
func RunChangePassword(ctx context.Context, account CredentialAccount, oldPassword, newPassword string, deps CredentialDeps) (string, error) {
	normalizeCredentialDeps(&deps)

	if deps.HashPassword == nil || deps.UpdateCredential == nil {
		return "", deps.Errors.EngineNotReady
	}

	fail := func(err error, metric int, reason string) (string, error) {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.PasswordChangeFailure, false, account.ID, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return "", err
	}

	switch {
	case oldPassword == "":
		return fail(deps.Errors.OldPasswordRequired, deps.Metrics.PasswordChangeFailure, "old_password_required")
	case newPassword == "":
		return fail(deps.Errors.NewPasswordRequired, deps.Metrics.PasswordChangeFailure, "new_password_required")
	case oldPassword == newPassword:
		return fail(deps.Errors.PasswordUnchanged, deps.Metrics.PasswordChangeFailure, "password_unchanged")
	}

	ok, err := RunComparePassword(ctx, account, oldPassword, deps)
	if err != nil {
		return "", err
	}
	if !ok {
		return fail(deps.Errors.IncorrectPassword, deps.Metrics.PasswordChangeInvalidOld, "incorrect_password")
	}

	digest, err := deps.HashPassword(newPassword)
	if err != nil {
		if deps.Errors.PasswordTooLong != nil && errors.Is(err, deps.Errors.PasswordTooLong) {
			return fail(err, deps.Metrics.PasswordChangeFailure, "password_too_long")
		}
		return "", err
	}
	if err := deps.UpdateCredential(ctx, account.ID, digest); err != nil {
		return "", err
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChangeSuccess, true, account.ID, nil, nil)
	return digest, nil
}

func normalizeCredentialDeps(deps *CredentialDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}
