package goAccounts

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccounts/internal/flows"
	"github.com/MrEthical07/goAccounts/validate"
	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/otel/attribute"
)

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when fields is not a record, a required identifier is missing, the email is malformed,
// the username or email is already owned, the creation throttle is exhausted, or a collaborator fails.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// fields may be a CreateAccountFields (or pointer), a map[string]string or a
// map[string]any keyed by "username", "email" and "password". policy may be
// nil to use the configured defaults.
func (e *Engine) CreateAccount(ctx context.Context, fields any, policy *CreateAccountPolicy) (_ *CreateAccountResult, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricCreateAccountLatency, start)

	ctx, span := e.startSpan(ctx, "create_account")
	defer func() { endSpan(span, err) }()

	in, err := decodeCreateFields(fields)
	if err != nil {
		return nil, err
	}

	effective := e.config.Account
	if policy != nil {
		if policy.UsernameRequired != nil {
			effective.UsernameRequired = *policy.UsernameRequired
		}
		if policy.EmailRequired != nil {
			effective.EmailRequired = *policy.EmailRequired
		}
		if policy.AutoLogin != nil {
			effective.AutoLogin = *policy.AutoLogin
		}
	}
	span.SetAttributes(attribute.Bool("goaccounts.auto_login", effective.AutoLogin))

	res, err := flows.RunCreateAccount(ctx, flows.CreateAccountRequest{
		Username:         validate.NormalizeUsername(in.Username),
		Email:            validate.NormalizeEmail(in.Email),
		Password:         in.Password,
		UsernameRequired: effective.UsernameRequired,
		EmailRequired:    effective.EmailRequired,
		AutoLogin:        effective.AutoLogin,
	}, e.accountDeps())
	if err != nil {
		return nil, err
	}

	return &CreateAccountResult{
		AccountID: res.AccountID,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

func decodeCreateFields(fields any) (CreateAccountFields, error) {
	switch v := fields.(type) {
	case CreateAccountFields:
		return v, nil
	case *CreateAccountFields:
		if v == nil {
			return CreateAccountFields{}, ErrInvalidArgument
		}
		return *v, nil
	case map[string]string:
		return CreateAccountFields{
			Username: v["username"],
			Email:    v["email"],
			Password: v["password"],
		}, nil
	case map[string]any:
		if v == nil {
			return CreateAccountFields{}, ErrInvalidArgument
		}
		var out CreateAccountFields
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  &out,
			TagName: "mapstructure",
		})
		if err != nil {
			return CreateAccountFields{}, err
		}
		if err := dec.Decode(v); err != nil {
			return CreateAccountFields{}, newError(KindInvalidArgument, fmt.Sprintf("Invalid account fields: %v", err))
		}
		return out, nil
	default:
		return CreateAccountFields{}, ErrInvalidArgument
	}
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		IsEmail:              validate.IsEmail,
		EnforceCreateLimiter: e.allow(e.createPolicy()),
		EmailTaken: func(ctx context.Context, address string) (bool, error) {
			acct, err := e.findOne(ctx, Query{EmailAddress: address}, false)
			return acct != nil, err
		},
		UsernameTaken: func(ctx context.Context, username string) (bool, error) {
			acct, err := e.findOne(ctx, Query{Username: username}, false)
			return acct != nil, err
		},
		HashPassword: e.hashPassword,
		InsertAccount: func(ctx context.Context, username, email, credential string) (string, error) {
			in := NewAccount{Username: username, Credential: credential}
			if email != "" {
				in.Emails = []EmailEntry{{Address: email}}
			}
			created, err := e.store.Create(ctx, in)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
		MapInsertError: duplicateToConflict,
		IssueToken:     e.issueToken,
		MetricInc:      e.metricIncInt,
		EmitAudit:      e.emitAudit,
		Metrics: flows.AccountMetrics{
			AccountCreated:             int(MetricAccountCreated),
			AccountCreationFailure:     int(MetricAccountCreationFailure),
			AccountCreationDuplicate:   int(MetricAccountCreationDuplicate),
			AccountCreationRateLimited: int(MetricAccountCreationRateLimited),
		},
		Events: flows.AccountEvents{
			AccountCreated:             auditEventAccountCreated,
			AccountCreationFailure:     auditEventAccountCreationFailure,
			AccountCreationDuplicate:   auditEventAccountCreationDuplicate,
			AccountCreationRateLimited: auditEventAccountCreationRateLimited,
		},
		Errors: flows.AccountErrors{
			EngineNotReady:    ErrEngineNotReady,
			MissingIdentifier: ErrMissingIdentifier,
			UsernameRequired:  ErrUsernameRequired,
			EmailRequired:     ErrEmailRequired,
			InvalidEmail:      ErrInvalidEmail,
			EmailTaken:        ErrEmailTaken,
			UsernameTaken:     ErrUsernameTaken,
			RateLimited:       ErrRateLimited,
			PasswordTooLong:   ErrPasswordTooLong,
		},
	}
}
