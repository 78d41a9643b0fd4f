package goAccounts

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccounts/internal"
	"github.com/MrEthical07/goAccounts/internal/flows"
	"github.com/MrEthical07/goAccounts/validate"
	"go.opentelemetry.io/otel/attribute"
)

// AddEmail describes the addemail operation and its observable behavior.
//
// AddEmail may return an error when the id or address is missing, the address is malformed or already owned,
// or the account does not exist.
// AddEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned bool reports whether the store changed.
func (e *Engine) AddEmail(ctx context.Context, accountID, address string, verified bool) (_ bool, err error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "add_email", attribute.String("goaccounts.account_id", accountID))
	defer func() { endSpan(span, err) }()

	return flows.RunAddEmail(ctx, accountID, validate.NormalizeEmail(address), verified, e.emailDeps())
}

// RemoveEmail describes the removeemail operation and its observable behavior.
//
// RemoveEmail may return an error when the address is not on the account or is its only address.
// The returned bool reports whether the store changed.
func (e *Engine) RemoveEmail(ctx context.Context, accountID, address string) (_ bool, err error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "remove_email", attribute.String("goaccounts.account_id", accountID))
	defer func() { endSpan(span, err) }()

	return flows.RunRemoveEmail(ctx, accountID, validate.NormalizeEmail(address), e.emailDeps())
}

// GetEmailVerificationToken issues a verification token for address and
// records it on the owning account. An empty token with a nil error means the
// store did not accept the write.
func (e *Engine) GetEmailVerificationToken(ctx context.Context, address string) (_ string, err error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "get_email_verification_token")
	defer func() { endSpan(span, err) }()

	return flows.RunGetEmailVerificationToken(ctx, validate.NormalizeEmail(address), e.emailDeps())
}

func emailRecord(acct *Account) *flows.EmailAccountRecord {
	if acct == nil {
		return nil
	}
	return &flows.EmailAccountRecord{ID: acct.ID, Emails: emailAddresses(acct)}
}

func (e *Engine) emailDeps() flows.EmailDeps {
	tokenBytes := e.config.EmailVerification.TokenBytes

	return flows.EmailDeps{
		IsEmail: validate.IsEmail,
		Now:     time.Now,
		FindByID: func(ctx context.Context, id string) (*flows.EmailAccountRecord, error) {
			acct, err := e.findOne(ctx, Query{ID: id}, false)
			return emailRecord(acct), err
		},
		FindByEmail: func(ctx context.Context, address string) (*flows.EmailAccountRecord, error) {
			acct, err := e.findOne(ctx, Query{EmailAddress: address}, false)
			return emailRecord(acct), err
		},
		AddEmail: func(ctx context.Context, accountID, address string, verified bool) (bool, error) {
			res, err := e.store.UpdateByID(ctx, accountID, Patch{AddEmail: &EmailEntry{Address: address, Verified: verified}})
			if err != nil {
				return false, duplicateToConflict(err)
			}
			return res.Modified, nil
		},
		RemoveEmail: func(ctx context.Context, accountID, address string) (bool, error) {
			res, err := e.store.UpdateByID(ctx, accountID, Patch{RemoveEmail: address})
			if err != nil {
				return false, err
			}
			return res.Modified, nil
		},
		AddVerificationToken: func(ctx context.Context, accountID, address, token string, createdAt time.Time) (bool, error) {
			res, err := e.store.UpdateByID(ctx, accountID, Patch{AddVerificationToken: &VerificationToken{
				Address:   address,
				Token:     token,
				CreatedAt: createdAt,
			}})
			if err != nil {
				return false, err
			}
			return res.Modified, nil
		},
		NewToken: func() (string, error) {
			return internal.NewVerificationToken(tokenBytes)
		},
		EnforceVerificationLimiter: e.allow(e.verifyPolicy()),
		MetricInc:                  e.metricIncInt,
		EmitAudit:                  e.emitAudit,
		Metrics: flows.EmailMetrics{
			EmailAdded:                   int(MetricEmailAdded),
			EmailRemoved:                 int(MetricEmailRemoved),
			EmailVerificationIssued:      int(MetricEmailVerificationIssued),
			EmailVerificationRateLimited: int(MetricEmailVerificationRateLimited),
		},
		Events: flows.EmailEvents{
			EmailAdded:                   auditEventEmailAdded,
			EmailRemoved:                 auditEventEmailRemoved,
			EmailVerificationIssued:      auditEventEmailVerificationIssued,
			EmailVerificationRateLimited: auditEventEmailVerificationLimited,
		},
		Errors: flows.EmailErrors{
			EngineNotReady:    ErrEngineNotReady,
			AccountIDRequired: ErrAccountIDRequired,
			EmailRequired:     ErrEmailRequired,
			InvalidEmail:      ErrInvalidEmail,
			EmailTaken:        ErrEmailTaken,
			AccountNotFound:   ErrAccountNotFound,
			EmailNotFound:     ErrEmailNotFound,
			MinimumEmailCount: ErrMinimumEmailCount,
			RateLimited:       ErrRateLimited,
		},
	}
}
