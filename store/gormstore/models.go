package gormstore

import (
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
)

type accountRow struct {
	ID         string  `gorm:"primaryKey"`
	Username   *string `gorm:"uniqueIndex"`
	Credential string  `gorm:"not null;default:''"`
	CreatedAt  time.Time
}

func (accountRow) TableName() string { return "accounts" }

type emailRow struct {
	Address   string `gorm:"primaryKey"`
	AccountID string `gorm:"index;not null"`
	Verified  bool
	Position  int
}

func (emailRow) TableName() string { return "account_emails" }

type tokenRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"index;not null"`
	Address   string
	Token     string
	CreatedAt time.Time
}

func (tokenRow) TableName() string { return "verification_tokens" }

func toAccount(row *accountRow, emails []emailRow, tokens []tokenRow) *goAccounts.Account {
	acct := &goAccounts.Account{
		ID:         row.ID,
		Credential: row.Credential,
		CreatedAt:  row.CreatedAt,
	}
	if row.Username != nil {
		acct.Username = *row.Username
	}
	for _, e := range emails {
		acct.Emails = append(acct.Emails, goAccounts.EmailEntry{Address: e.Address, Verified: e.Verified})
	}
	for _, t := range tokens {
		acct.VerificationTokens = append(acct.VerificationTokens, goAccounts.VerificationToken{
			Address:   t.Address,
			Token:     t.Token,
			CreatedAt: t.CreatedAt,
		})
	}
	return acct
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
