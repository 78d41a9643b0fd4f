package flows

import (
	"context"
	"errors"
	"time"
)

// EmailAccountRecord is a flow-local account model for email set changes.
type EmailAccountRecord struct {
	ID     string
	Emails []string
}

func (r *EmailAccountRecord) has(address string) bool {
	for _, e := range r.Emails {
		if e == address {
			return true
		}
	}
	return false
}

type EmailMetrics struct {
	EmailAdded                   int
	EmailRemoved                 int
	EmailVerificationIssued      int
	EmailVerificationRateLimited int
}

type EmailEvents struct {
	EmailAdded                   string
	EmailRemoved                 string
	EmailVerificationIssued      string
	EmailVerificationRateLimited string
}

type EmailErrors struct {
	EngineNotReady    error
	AccountIDRequired error
	EmailRequired     error
	InvalidEmail      error
	EmailTaken        error
	AccountNotFound   error
	EmailNotFound     error
	MinimumEmailCount error
	RateLimited       error
}

type EmailDeps struct {
	IsEmail func(string) bool
	Now     func() time.Time

	FindByID    func(context.Context, string) (*EmailAccountRecord, error)
	FindByEmail func(context.Context, string) (*EmailAccountRecord, error)

	AddEmail             func(ctx context.Context, accountID, address string, verified bool) (bool, error)
	RemoveEmail          func(ctx context.Context, accountID, address string) (bool, error)
	AddVerificationToken func(ctx context.Context, accountID, address, token string, createdAt time.Time) (bool, error)
	NewToken             func() (string, error)

	// EnforceVerificationLimiter is optional; nil disables throttling.
	EnforceVerificationLimiter func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics EmailMetrics
	Events  EmailEvents
	Errors  EmailErrors
}

func checkAddress(address string, deps EmailDeps) error {
	if address == "" {
		return deps.Errors.EmailRequired
	}
	if !deps.IsEmail(address) {
		return deps.Errors.InvalidEmail
	}
	return nil
}

// RunAddEmail adds address to the account's email set. Addresses already
// owned by any account, this one included, are rejected.
func RunAddEmail(ctx context.Context, accountID, address string, verified bool, deps EmailDeps) (bool, error) {
	normalizeEmailDeps(&deps)

	if deps.IsEmail == nil || deps.FindByID == nil || deps.FindByEmail == nil || deps.AddEmail == nil {
		return false, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return false, deps.Errors.AccountIDRequired
	}
	if err := checkAddress(address, deps); err != nil {
		return false, err
	}

	owner, err := deps.FindByEmail(ctx, address)
	if err != nil {
		return false, err
	}
	if owner != nil {
		return false, deps.Errors.EmailTaken
	}

	account, err := deps.FindByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, deps.Errors.AccountNotFound
	}

	modified, err := deps.AddEmail(ctx, accountID, address, verified)
	if err != nil {
		return false, err
	}
	if modified {
		deps.MetricInc(deps.Metrics.EmailAdded)
		deps.EmitAudit(ctx, deps.Events.EmailAdded, true, accountID, nil, func() map[string]string {
			return map[string]string{
				"verified": boolString(verified),
			}
		})
	}
	return modified, nil
}

// RunRemoveEmail removes address from the account's email set, refusing to
// remove the last remaining entry. The single-entry check runs before the
// address is validated or matched.
func RunRemoveEmail(ctx context.Context, accountID, address string, deps EmailDeps) (bool, error) {
	normalizeEmailDeps(&deps)

	if deps.IsEmail == nil || deps.FindByID == nil || deps.RemoveEmail == nil {
		return false, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return false, deps.Errors.AccountIDRequired
	}
	if address == "" {
		return false, deps.Errors.EmailRequired
	}

	account, err := deps.FindByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, deps.Errors.AccountNotFound
	}
	// A single-email account refuses every removal, whatever the address.
	if len(account.Emails) <= 1 {
		return false, deps.Errors.MinimumEmailCount
	}
	if !deps.IsEmail(address) {
		return false, deps.Errors.InvalidEmail
	}
	if !account.has(address) {
		return false, deps.Errors.EmailNotFound
	}

	modified, err := deps.RemoveEmail(ctx, accountID, address)
	if err != nil {
		return false, err
	}
	if modified {
		deps.MetricInc(deps.Metrics.EmailRemoved)
		deps.EmitAudit(ctx, deps.Events.EmailRemoved, true, accountID, nil, nil)
	}
	return modified, nil
}

// RunGetEmailVerificationToken issues a fresh verification token for
// address and records it on the owning account. The token is returned only
// when the store reports the write.
func RunGetEmailVerificationToken(ctx context.Context, address string, deps EmailDeps) (string, error) {
	normalizeEmailDeps(&deps)

	if deps.IsEmail == nil || deps.FindByEmail == nil || deps.AddVerificationToken == nil || deps.NewToken == nil {
		return "", deps.Errors.EngineNotReady
	}
	if err := checkAddress(address, deps); err != nil {
		return "", err
	}

	if deps.EnforceVerificationLimiter != nil {
		if err := deps.EnforceVerificationLimiter(ctx, address); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.EmailVerificationRateLimited)
				deps.EmitAudit(ctx, deps.Events.EmailVerificationRateLimited, false, "", err, nil)
			}
			return "", err
		}
	}

	account, err := deps.FindByEmail(ctx, address)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", deps.Errors.AccountNotFound
	}

	token, err := deps.NewToken()
	if err != nil {
		return "", err
	}

	modified, err := deps.AddVerificationToken(ctx, account.ID, address, token, deps.Now())
	if err != nil {
		return "", err
	}
	if !modified {
		return "", nil
	}

	deps.MetricInc(deps.Metrics.EmailVerificationIssued)
	deps.EmitAudit(ctx, deps.Events.EmailVerificationIssued, true, account.ID, nil, nil)
	return token, nil
}

func normalizeEmailDeps(deps *EmailDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}
