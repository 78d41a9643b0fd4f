package goAccounts

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccounts/internal/rate"
)

const (
	auditEventAccountCreated             = "account_created"
	auditEventAccountCreationFailure     = "account_creation_failure"
	auditEventAccountCreationDuplicate   = "account_creation_duplicate"
	auditEventAccountCreationRateLimited = "account_creation_rate_limited"
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventLoginRateLimited           = "login_rate_limited"
	auditEventPasswordChangeSuccess      = "password_change_success"
	auditEventPasswordChangeFailure      = "password_change_failure"
	auditEventEmailAdded                 = "email_added"
	auditEventEmailRemoved               = "email_removed"
	auditEventEmailVerificationIssued    = "email_verification_issued"
	auditEventEmailVerificationLimited   = "email_verification_rate_limited"
)

// AuditErrorCode is the coarse, log-safe code recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrCredentialNotSet   AuditErrorCode = "credential_not_set"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		metadata = withMeta(metadata, "client_ip", ip)
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		metadata = withMeta(metadata, "user_agent", ua)
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func withMeta(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string, 2)
	}
	m[key] = value
	return m
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIncorrectPassword):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrCredentialNotSet):
		return auditErrCredentialNotSet
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrEmailNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrDuplicateKey):
		return auditErrDuplicate
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, rate.ErrRedisUnavailable):
		return auditErrUnavailable
	}

	if CategoryOf(err) == CategoryValidation {
		return auditErrInvalidInput
	}
	return auditErrInternal
}
