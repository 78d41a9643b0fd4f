// Package postgres is an AccountStore backed by PostgreSQL through
// database/sql and the pgx stdlib driver. Uniqueness of usernames and email
// addresses is enforced by table constraints; violations surface as
// *goAccounts.DuplicateKeyError.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	usernameConstraint = "accounts_username_key"
	addressConstraint  = "account_emails_address_key"
)

// Store implements goAccounts.AccountStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store using db. Run Migrate once before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) FindOne(ctx context.Context, q goAccounts.Query, opts goAccounts.FindOptions) (*goAccounts.Account, error) {
	if q.IsZero() {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	if q.ID != "" {
		args = append(args, q.ID)
		conds = append(conds, fmt.Sprintf("a.id = $%d", len(args)))
	}
	if q.Username != "" {
		args = append(args, q.Username)
		conds = append(conds, fmt.Sprintf("a.username = $%d", len(args)))
	}
	if q.EmailAddress != "" {
		args = append(args, q.EmailAddress)
		conds = append(conds, fmt.Sprintf("a.id IN (SELECT account_id FROM account_emails WHERE address = $%d)", len(args)))
	}

	query := `SELECT a.id, COALESCE(a.username, ''), a.credential, a.created_at
		 FROM accounts a
		 WHERE ` + strings.Join(conds, " AND ")

	acct := &goAccounts.Account{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&acct.ID, &acct.Username, &acct.Credential, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !opts.IncludeHidden {
		acct.Credential = ""
	}

	if acct.Emails, err = loadEmails(ctx, s.db, acct.ID); err != nil {
		return nil, err
	}
	if acct.VerificationTokens, err = loadTokens(ctx, s.db, acct.ID); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) Create(ctx context.Context, in goAccounts.NewAccount) (*goAccounts.Account, error) {
	acct := &goAccounts.Account{
		ID:         uuid.NewString(),
		Username:   in.Username,
		Emails:     append([]goAccounts.EmailEntry(nil), in.Emails...),
		Credential: in.Credential,
		CreatedAt:  s.now().UTC(),
	}

	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, username, credential, created_at)
			 VALUES ($1, NULLIF($2, ''), $3, $4)`,
			acct.ID, acct.Username, acct.Credential, acct.CreatedAt)
		if err != nil {
			return mapError(err)
		}
		for _, e := range acct.Emails {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO account_emails (address, account_id, verified)
				 VALUES ($1, $2, $3)`,
				e.Address, acct.ID, e.Verified)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateByID applies patch in one transaction holding the account row lock,
// so concurrent removals cannot both pass the minimum-count guard.
func (s *Store) UpdateByID(ctx context.Context, id string, patch goAccounts.Patch) (goAccounts.UpdateResult, error) {
	var modified bool

	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("db error: %w", err)
		}

		if patch.Credential != nil {
			n, err := execAffected(ctx, tx,
				`UPDATE accounts SET credential = $2 WHERE id = $1 AND credential <> $2`,
				id, *patch.Credential)
			if err != nil {
				return err
			}
			modified = modified || n > 0
		}

		if patch.AddEmail != nil {
			added, err := addEmail(ctx, tx, id, *patch.AddEmail)
			if err != nil {
				return err
			}
			modified = modified || added
		}

		if patch.RemoveEmail != "" {
			n, err := execAffected(ctx, tx,
				`DELETE FROM account_emails
				 WHERE account_id = $1 AND address = $2
				   AND (SELECT count(*) FROM account_emails WHERE account_id = $1) > 1`,
				id, patch.RemoveEmail)
			if err != nil {
				return err
			}
			modified = modified || n > 0
		}

		if t := patch.AddVerificationToken; t != nil {
			n, err := execAffected(ctx, tx,
				`INSERT INTO verification_tokens (account_id, address, token, created_at)
				 VALUES ($1, $2, $3, $4)`,
				id, t.Address, t.Token, t.CreatedAt.UTC())
			if err != nil {
				return err
			}
			modified = modified || n > 0
		}
		return nil
	})
	if err != nil {
		return goAccounts.UpdateResult{}, err
	}
	return goAccounts.UpdateResult{Modified: modified}, nil
}

// addEmail inserts the address unless it exists. An existing row owned by
// another account is a duplicate; one owned by id is a no-op.
func addEmail(ctx context.Context, tx DBTX, id string, e goAccounts.EmailEntry) (bool, error) {
	n, err := execAffected(ctx, tx,
		`INSERT INTO account_emails (address, account_id, verified)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (address) DO NOTHING`,
		e.Address, id, e.Verified)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT account_id FROM account_emails WHERE address = $1`, e.Address).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	if owner != id {
		return false, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress}
	}
	return false, nil
}

func execAffected(ctx context.Context, db DBTX, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func loadEmails(ctx context.Context, db DBTX, id string) ([]goAccounts.EmailEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT address, verified FROM account_emails
		 WHERE account_id = $1
		 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []goAccounts.EmailEntry
	for rows.Next() {
		var e goAccounts.EmailEntry
		if err := rows.Scan(&e.Address, &e.Verified); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func loadTokens(ctx context.Context, db DBTX, id string) ([]goAccounts.VerificationToken, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT address, token, created_at FROM verification_tokens
		 WHERE account_id = $1
		 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []goAccounts.VerificationToken
	for rows.Next() {
		var t goAccounts.VerificationToken
		if err := rows.Scan(&t.Address, &t.Token, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// mapError turns unique violations on the username or address constraints
// into *goAccounts.DuplicateKeyError and wraps everything else.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameConstraint:
			return &goAccounts.DuplicateKeyError{Field: goAccounts.FieldUsername, Err: err}
		case addressConstraint:
			return &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress, Err: err}
		}
	}
	return fmt.Errorf("db error: %w", err)
}

var _ goAccounts.AccountStore = (*Store)(nil)
