package goAccounts_test

import (
	"context"
	"encoding/base64"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
)

func TestAddEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	alice := mustCreate(t, engine, goAccounts.CreateAccountFields{Username: "alice", Email: "alice@example.com"})
	mustCreate(t, engine, goAccounts.CreateAccountFields{Username: "bob", Email: "bob@example.com"})

	tests := []struct {
		name    string
		id      string
		address string
		want    *goAccounts.Error
	}{
		{name: "missing id", id: "", address: "x@example.com", want: goAccounts.ErrAccountIDRequired},
		{name: "missing address", id: alice, address: "  ", want: goAccounts.ErrEmailRequired},
		{name: "malformed address", id: alice, address: "nope", want: goAccounts.ErrInvalidEmail},
		{name: "owned by another account", id: alice, address: "BOB@example.com", want: goAccounts.ErrEmailTaken},
		{name: "already on this account", id: alice, address: "alice@example.com", want: goAccounts.ErrEmailTaken},
		{name: "unknown account", id: "missing", address: "new@example.com", want: goAccounts.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			modified, err := engine.AddEmail(ctx, tc.id, tc.address, false)
			if modified {
				t.Fatal("failed add must not report a modification")
			}
			expectKind(t, err, tc.want)
		})
	}

	modified, err := engine.AddEmail(ctx, alice, " Alice.Work@Example.com", true)
	if err != nil || !modified {
		t.Fatalf("expected add, got modified=%v err=%v", modified, err)
	}

	acct, err := engine.FindAccountByEmail(ctx, "alice.work@example.com")
	if err != nil || acct == nil || acct.ID != alice {
		t.Fatalf("new address should resolve to alice: %+v %v", acct, err)
	}
	if len(acct.Emails) != 2 || !acct.Emails[1].Verified {
		t.Fatalf("unexpected email set %+v", acct.Emails)
	}
}

func TestRemoveEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	alice := mustCreate(t, engine, goAccounts.CreateAccountFields{Email: "alice@example.com"})
	bob := mustCreate(t, engine, goAccounts.CreateAccountFields{Email: "bob@example.com"})

	_, err := engine.RemoveEmail(ctx, "", "alice@example.com")
	expectKind(t, err, goAccounts.ErrAccountIDRequired)

	_, err = engine.RemoveEmail(ctx, alice, "")
	expectKind(t, err, goAccounts.ErrEmailRequired)

	_, err = engine.RemoveEmail(ctx, "missing", "alice@example.com")
	expectKind(t, err, goAccounts.ErrAccountNotFound)

	_, err = engine.RemoveEmail(ctx, alice, "alice@example.com")
	expectKind(t, err, goAccounts.ErrMinimumEmailCount)

	if _, err := engine.AddEmail(ctx, alice, "alice2@example.com", false); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = engine.RemoveEmail(ctx, alice, "bob@example.com")
	expectKind(t, err, goAccounts.ErrEmailNotFound)

	_, err = engine.RemoveEmail(ctx, alice, "not-an-email")
	expectKind(t, err, goAccounts.ErrInvalidEmail)
	modified, err := engine.RemoveEmail(ctx, alice, "ALICE@example.com")
	if err != nil || !modified {
		t.Fatalf("expected removal, got modified=%v err=%v", modified, err)
	}

	// a released address can be claimed again
	if _, err := engine.AddEmail(ctx, bob, "alice@example.com", false); err != nil {
		t.Fatalf("re-add released address: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[goAccounts.MetricEmailRemoved] != 1 || snap.Counters[goAccounts.MetricEmailAdded] != 2 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestRemoveEmailSingleEntryAlwaysRefused(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	solo := mustCreate(t, engine, goAccounts.CreateAccountFields{Email: "solo@example.com"})
	mustCreate(t, engine, goAccounts.CreateAccountFields{Email: "other@example.com"})

	tests := []struct {
		name    string
		address string
	}{
		{name: "own address", address: "solo@example.com"},
		{name: "foreign address", address: "other@example.com"},
		{name: "unregistered address", address: "nobody@example.com"},
		{name: "malformed address", address: "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modified, err := engine.RemoveEmail(ctx, solo, tt.address)
			expectKind(t, err, goAccounts.ErrMinimumEmailCount)
			if modified {
				t.Fatal("nothing should be modified")
			}
		})
	}

	acct, err := engine.FindAccountByID(ctx, solo)
	if err != nil || acct == nil || len(acct.Emails) != 1 {
		t.Fatalf("email set changed: %+v %v", acct, err)
	}
}

func TestGetEmailVerificationToken(t *testing.T) {
	cfg := testConfig()
	cfg.EmailVerification.TokenBytes = 24
	engine, store := newTestEngine(t, cfg)
	ctx := context.Background()

	id := mustCreate(t, engine, goAccounts.CreateAccountFields{Email: "alice@example.com"})

	_, err := engine.GetEmailVerificationToken(ctx, "")
	expectKind(t, err, goAccounts.ErrEmailRequired)

	_, err = engine.GetEmailVerificationToken(ctx, "nope")
	expectKind(t, err, goAccounts.ErrInvalidEmail)

	_, err = engine.GetEmailVerificationToken(ctx, "ghost@example.com")
	expectKind(t, err, goAccounts.ErrAccountNotFound)

	first, err := engine.GetEmailVerificationToken(ctx, " Alice@Example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil || len(raw) != 24 {
		t.Fatalf("expected 24 random bytes, got %d (%v)", len(raw), err)
	}

	second, err := engine.GetEmailVerificationToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if second == first {
		t.Fatal("tokens must be unique")
	}

	acct, err := store.FindOne(ctx, goAccounts.Query{ID: id}, goAccounts.FindOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(acct.VerificationTokens) != 2 {
		t.Fatalf("expected both tokens recorded, got %d", len(acct.VerificationTokens))
	}
	for i, want := range []string{first, second} {
		got := acct.VerificationTokens[i]
		if got.Token != want || got.Address != "alice@example.com" || got.CreatedAt.IsZero() {
			t.Fatalf("token %d recorded as %+v", i, got)
		}
	}
}
