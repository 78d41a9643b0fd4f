// Package gormstore is an AccountStore on top of GORM. Any GORM dialect
// works; OpenSQLite wires the pure-Go glebarez sqlite driver for embedded
// and test use.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements goAccounts.AccountStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a Store using db. Call AutoMigrate once before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// OpenSQLite opens a sqlite database with the glebarez driver. The
// connection pool is limited to one connection, so writers queue instead of
// failing with SQLITE_BUSY.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates the account tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&accountRow{}, &emailRow{}, &tokenRow{})
}

func (s *Store) FindOne(ctx context.Context, q goAccounts.Query, opts goAccounts.FindOptions) (*goAccounts.Account, error) {
	if q.IsZero() {
		return nil, nil
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&accountRow{})
	if q.ID != "" {
		query = query.Where("id = ?", q.ID)
	}
	if q.Username != "" {
		query = query.Where("username = ?", q.Username)
	}
	if q.EmailAddress != "" {
		query = query.Where("id IN (?)", db.Model(&emailRow{}).Select("account_id").Where("address = ?", q.EmailAddress))
	}

	var row accountRow
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var emails []emailRow
	if err := db.Where("account_id = ?", row.ID).Order("position").Find(&emails).Error; err != nil {
		return nil, err
	}
	var tokens []tokenRow
	if err := db.Where("account_id = ?", row.ID).Order("id").Find(&tokens).Error; err != nil {
		return nil, err
	}

	acct := toAccount(&row, emails, tokens)
	if !opts.IncludeHidden {
		acct.Credential = ""
	}
	return acct, nil
}

func (s *Store) Create(ctx context.Context, in goAccounts.NewAccount) (*goAccounts.Account, error) {
	row := accountRow{
		ID:         uuid.NewString(),
		Username:   nullable(in.Username),
		Credential: in.Credential,
		CreatedAt:  s.now().UTC(),
	}
	emails := make([]emailRow, 0, len(in.Emails))
	for i, e := range in.Emails {
		emails = append(emails, emailRow{Address: e.Address, AccountID: row.ID, Verified: e.Verified, Position: i})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return mapError(err)
		}
		if len(emails) > 0 {
			if err := tx.Create(&emails).Error; err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toAccount(&row, emails, nil), nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch goAccounts.Patch) (goAccounts.UpdateResult, error) {
	var modified bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row accountRow
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if patch.Credential != nil {
			res := tx.Model(&accountRow{}).
				Where("id = ? AND credential <> ?", id, *patch.Credential).
				Update("credential", *patch.Credential)
			if res.Error != nil {
				return res.Error
			}
			modified = modified || res.RowsAffected > 0
		}

		if patch.AddEmail != nil {
			added, err := addEmail(tx, id, *patch.AddEmail)
			if err != nil {
				return err
			}
			modified = modified || added
		}

		if patch.RemoveEmail != "" {
			var count int64
			if err := tx.Model(&emailRow{}).Where("account_id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count > 1 {
				res := tx.Where("account_id = ? AND address = ?", id, patch.RemoveEmail).Delete(&emailRow{})
				if res.Error != nil {
					return res.Error
				}
				modified = modified || res.RowsAffected > 0
			}
		}

		if t := patch.AddVerificationToken; t != nil {
			if err := tx.Create(&tokenRow{
				AccountID: id,
				Address:   t.Address,
				Token:     t.Token,
				CreatedAt: t.CreatedAt.UTC(),
			}).Error; err != nil {
				return err
			}
			modified = true
		}
		return nil
	})
	if err != nil {
		return goAccounts.UpdateResult{}, err
	}
	return goAccounts.UpdateResult{Modified: modified}, nil
}

func addEmail(tx *gorm.DB, id string, e goAccounts.EmailEntry) (bool, error) {
	var existing emailRow
	err := tx.Take(&existing, "address = ?", e.Address).Error
	switch {
	case err == nil:
		if existing.AccountID != id {
			return false, &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress}
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	// Positions are never reused; removals leave gaps.
	var next int
	if err := tx.Model(&emailRow{}).
		Where("account_id = ?", id).
		Select("COALESCE(MAX(position), -1) + 1").
		Scan(&next).Error; err != nil {
		return false, err
	}
	if err := tx.Create(&emailRow{
		Address:   e.Address,
		AccountID: id,
		Verified:  e.Verified,
		Position:  next,
	}).Error; err != nil {
		return false, mapError(err)
	}
	return true, nil
}

// mapError recognises unique violations by message, which is the only
// detail shared by the sqlite and postgres dialects.
func mapError(err error) error {
	msg := strings.ToLower(err.Error())
	unique := strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") ||
		errors.Is(err, gorm.ErrDuplicatedKey)
	if !unique {
		return fmt.Errorf("gormstore: %w", err)
	}
	switch {
	case strings.Contains(msg, "username"):
		return &goAccounts.DuplicateKeyError{Field: goAccounts.FieldUsername, Err: err}
	case strings.Contains(msg, "account_emails"), strings.Contains(msg, "address"):
		return &goAccounts.DuplicateKeyError{Field: goAccounts.FieldEmailAddress, Err: err}
	}
	return fmt.Errorf("gormstore: %w", err)
}

var _ goAccounts.AccountStore = (*Store)(nil)
