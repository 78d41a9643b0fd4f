package goAccounts

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccounts/internal/flows"
	"github.com/MrEthical07/goAccounts/password"
	"go.opentelemetry.io/otel/attribute"
)

// ComparePassword describes the comparepassword operation and its observable behavior.
//
// ComparePassword may return an error when the account has no id, cannot be found, or has no credential.
// ComparePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// When account.Credential is empty the digest is loaded from the store by id.
func (e *Engine) ComparePassword(ctx context.Context, account *Account, plaintext string) (_ bool, err error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "compare_password")
	defer func() { endSpan(span, err) }()

	return flows.RunComparePassword(ctx, credentialAccount(account), plaintext, e.credentialDeps())
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when either password is empty, both are equal, or oldPassword does not match.
// On success the stored credential is replaced and account.Credential is refreshed.
func (e *Engine) ChangePassword(ctx context.Context, account *Account, oldPassword, newPassword string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	acct := credentialAccount(account)
	ctx, span := e.startSpan(ctx, "change_password", attribute.String("goaccounts.account_id", acct.ID))
	defer func() { endSpan(span, err) }()

	digest, err := flows.RunChangePassword(ctx, acct, oldPassword, newPassword, e.credentialDeps())
	if err != nil {
		return err
	}
	if account != nil {
		account.Credential = digest
	}
	return nil
}

// ChangePasswordFields is ChangePassword for loosely typed input, such as a
// decoded JSON body. fields must be a map with "oldPassword" and
// "newPassword" keys; a value that is present but not a string fails with
// ErrTypeMismatch.
func (e *Engine) ChangePasswordFields(ctx context.Context, account *Account, fields any) error {
	var oldRaw, newRaw any
	switch v := fields.(type) {
	case map[string]any:
		oldRaw, newRaw = v["oldPassword"], v["newPassword"]
	case map[string]string:
		oldRaw, newRaw = v["oldPassword"], v["newPassword"]
	default:
		return ErrInvalidArgument
	}

	if passwordFieldMissing(oldRaw) {
		return ErrOldPasswordRequired
	}
	if passwordFieldMissing(newRaw) {
		return ErrNewPasswordRequired
	}
	oldPassword, ok := oldRaw.(string)
	if !ok {
		return newError(KindTypeMismatch, "oldPassword must be a string.")
	}
	newPassword, ok := newRaw.(string)
	if !ok {
		return newError(KindTypeMismatch, "newPassword must be a string.")
	}
	return e.ChangePassword(ctx, account, oldPassword, newPassword)
}

func passwordFieldMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func credentialAccount(account *Account) flows.CredentialAccount {
	if account == nil {
		return flows.CredentialAccount{}
	}
	return flows.CredentialAccount{ID: account.ID, Credential: account.Credential}
}

func (e *Engine) credentialDeps() flows.CredentialDeps {
	return flows.CredentialDeps{
		LoadCredential: func(ctx context.Context, accountID string) (string, bool, error) {
			acct, err := e.findOne(ctx, Query{ID: accountID}, true)
			if err != nil {
				return "", false, err
			}
			if acct == nil {
				return "", false, nil
			}
			return acct.Credential, true, nil
		},
		VerifyPassword:   e.hasher.Verify,
		HashPassword:     e.hashPassword,
		UpdateCredential: e.updateCredential,
		MetricInc:        e.metricIncInt,
		EmitAudit:        e.emitAudit,
		Metrics: flows.CredentialMetrics{
			PasswordChangeSuccess:    int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld: int(MetricPasswordChangeInvalidOld),
			PasswordChangeFailure:    int(MetricPasswordChangeFailure),
		},
		Events: flows.CredentialEvents{
			PasswordChangeSuccess: auditEventPasswordChangeSuccess,
			PasswordChangeFailure: auditEventPasswordChangeFailure,
		},
		Errors: flows.CredentialErrors{
			EngineNotReady:      ErrEngineNotReady,
			AccountIDRequired:   ErrAccountIDRequired,
			AccountNotFound:     ErrAccountNotFound,
			CredentialNotSet:    ErrCredentialNotSet,
			OldPasswordRequired: ErrOldPasswordRequired,
			NewPasswordRequired: ErrNewPasswordRequired,
			PasswordUnchanged:   ErrPasswordUnchanged,
			IncorrectPassword:   ErrIncorrectPassword,
			PasswordTooLong:     ErrPasswordTooLong,
		},
	}
}

// hashPassword reports the hasher's length limit as ErrPasswordTooLong.
func (e *Engine) hashPassword(plaintext string) (string, error) {
	digest, err := e.hasher.Hash(plaintext)
	if errors.Is(err, password.ErrTooLong) {
		return "", ErrPasswordTooLong
	}
	return digest, err
}
