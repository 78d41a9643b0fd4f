// Package memory is an AccountStore held in process memory. Username and
// email uniqueness are enforced under a single mutex, so concurrent creates
// racing for the same identifier resolve to exactly one winner.
package memory

import (
	"context"
	"sync"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/google/uuid"
)

// Store implements goAccounts.AccountStore.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]*goAccounts.Account
	byUsername map[string]string
	byEmail    map[string]string

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:   make(map[string]*goAccounts.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// FindOne returns a copy of the first account matching every set field of q.
func (s *Store) FindOne(ctx context.Context, q goAccounts.Query, opts goAccounts.FindOptions) (*goAccounts.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.IsZero() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id := q.ID
	if q.Username != "" {
		owner, ok := s.byUsername[q.Username]
		if !ok || (id != "" && owner != id) {
			return nil, nil
		}
		id = owner
	}
	if q.EmailAddress != "" {
		owner, ok := s.byEmail[q.EmailAddress]
		if !ok || (id != "" && owner != id) {
			return nil, nil
		}
		id = owner
	}

	acct, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	out := acct.Clone()
	if !opts.IncludeHidden {
		out.Credential = ""
	}
	return out, nil
}

// Create inserts a new account, failing with *goAccounts.DuplicateKeyError
// when the username or any address is already owned.
func (s *Store) Create(ctx context.Context, in goAccounts.NewAccount) (*goAccounts.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Username != "" {
		if _, taken := s.byUsername[in.Username]; taken {
			return nil, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldUsername}
		}
	}
	seen := make(map[string]struct{}, len(in.Emails))
	for _, e := range in.Emails {
		if _, taken := s.byEmail[e.Address]; taken {
			return nil, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress}
		}
		if _, dup := seen[e.Address]; dup {
			return nil, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress}
		}
		seen[e.Address] = struct{}{}
	}

	acct := &goAccounts.Account{
		ID:         uuid.NewString(),
		Username:   in.Username,
		Emails:     append([]goAccounts.EmailEntry(nil), in.Emails...),
		Credential: in.Credential,
		CreatedAt:  s.now().UTC(),
	}

	s.accounts[acct.ID] = acct
	if acct.Username != "" {
		s.byUsername[acct.Username] = acct.ID
	}
	for _, e := range acct.Emails {
		s.byEmail[e.Address] = acct.ID
	}

	return acct.Clone(), nil
}

// UpdateByID applies patch atomically. A missing account reports
// Modified=false with a nil error.
func (s *Store) UpdateByID(ctx context.Context, id string, patch goAccounts.Patch) (goAccounts.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return goAccounts.UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return goAccounts.UpdateResult{}, nil
	}

	// Validate the whole patch before touching the record.
	if patch.AddEmail != nil && !acct.HasEmail(patch.AddEmail.Address) {
		if owner, taken := s.byEmail[patch.AddEmail.Address]; taken && owner != id {
			return goAccounts.UpdateResult{}, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress}
		}
	}

	modified := false

	if patch.Credential != nil && *patch.Credential != acct.Credential {
		acct.Credential = *patch.Credential
		modified = true
	}

	if patch.AddEmail != nil && !acct.HasEmail(patch.AddEmail.Address) {
		acct.Emails = append(acct.Emails, *patch.AddEmail)
		s.byEmail[patch.AddEmail.Address] = id
		modified = true
	}

	if patch.RemoveEmail != "" && acct.HasEmail(patch.RemoveEmail) && len(acct.Emails) > 1 {
		kept := acct.Emails[:0:0]
		for _, e := range acct.Emails {
			if e.Address != patch.RemoveEmail {
				kept = append(kept, e)
			}
		}
		acct.Emails = kept
		delete(s.byEmail, patch.RemoveEmail)
		modified = true
	}

	if patch.AddVerificationToken != nil {
		acct.VerificationTokens = append(acct.VerificationTokens, *patch.AddVerificationToken)
		modified = true
	}

	return goAccounts.UpdateResult{Modified: modified}, nil
}

var _ goAccounts.AccountStore = (*Store)(nil)
