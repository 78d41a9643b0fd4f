package goAccounts

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccounts/jwt"
)

// Account is the persisted identity record.
//
// Credential is only populated when the read was made with
// FindOptions.IncludeHidden.
type Account struct {
	ID                 string
	Username           string
	Emails             []EmailEntry
	Credential         string
	VerificationTokens []VerificationToken
	CreatedAt          time.Time
}

// HasEmail reports whether address (already normalized) is in the account's email set.
func (a *Account) HasEmail(address string) bool {
	if a == nil {
		return false
	}
	for _, e := range a.Emails {
		if e.Address == address {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Emails = append([]EmailEntry(nil), a.Emails...)
	out.VerificationTokens = append([]VerificationToken(nil), a.VerificationTokens...)
	return &out
}

// EmailEntry is one address in an account's email set.
type EmailEntry struct {
	Address  string
	Verified bool
}

// VerificationToken is a pending proof-of-ownership challenge for an address.
type VerificationToken struct {
	Address   string
	Token     string
	CreatedAt time.Time
}

// AuthToken is the result of a successful login or auto-login.
type AuthToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// CreateAccountFields is the typed form of the createAccount input record.
// Empty strings are treated as absent.
type CreateAccountFields struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// CreateAccountPolicy overrides configuration for a single CreateAccount call.
// A nil field keeps the configured value.
type CreateAccountPolicy struct {
	UsernameRequired *bool
	EmailRequired    *bool
	AutoLogin        *bool
}

// Flag returns a pointer to v, for use in CreateAccountPolicy literals.
func Flag(v bool) *bool {
	return &v
}

// CreateAccountResult is returned by CreateAccount. Token and ExpiresAt are
// only set when auto-login was applied.
type CreateAccountResult struct {
	AccountID string
	Token     string
	ExpiresAt time.Time
}

// Query selects a single account. Empty fields are ignored; a Query with no
// fields set matches nothing.
type Query struct {
	ID           string `mapstructure:"id"`
	Username     string `mapstructure:"username"`
	EmailAddress string `mapstructure:"email"`
}

// IsZero reports whether no selector field is set.
func (q Query) IsZero() bool {
	return q.ID == "" && q.Username == "" && q.EmailAddress == ""
}

// FindOptions tunes AccountStore.FindOne.
type FindOptions struct {
	// IncludeHidden loads the credential digest.
	IncludeHidden bool
}

// NewAccount is the write model handed to AccountStore.Create.
type NewAccount struct {
	Username   string
	Emails     []EmailEntry
	Credential string
}

// Patch is a partial update applied atomically to one account.
//
// AddEmail has set semantics: adding an address the account already holds is
// a no-op. RemoveEmail never leaves the email set empty.
type Patch struct {
	Credential           *string
	AddEmail             *EmailEntry
	RemoveEmail          string
	AddVerificationToken *VerificationToken
}

// UpdateResult reports whether UpdateByID changed stored state.
type UpdateResult struct {
	Modified bool
}

// AccountStore is the persistence collaborator.
//
// FindOne returns (nil, nil) when no account matches. Create and UpdateByID
// must enforce username and email uniqueness themselves and report violations
// as *DuplicateKeyError.
type AccountStore interface {
	FindOne(ctx context.Context, q Query, opts FindOptions) (*Account, error)
	Create(ctx context.Context, in NewAccount) (*Account, error)
	UpdateByID(ctx context.Context, id string, patch Patch) (UpdateResult, error)
}

// Hasher produces and checks one-way credential digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

// upgradeAware is implemented by hashers that can tell when a stored digest
// should be replaced.
type upgradeAware interface {
	NeedsUpgrade(digest string) (bool, error)
}

// Signer issues and verifies signed, time-bound tokens.
type Signer interface {
	Sign(subject string, ttl time.Duration) (string, error)
	Verify(token string) (*jwt.Claims, error)
}
