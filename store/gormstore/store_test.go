package gormstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s := New(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func TestCreateFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.Create(ctx, goAccounts.NewAccount{
		Username:   "alice",
		Emails:     []goAccounts.EmailEntry{{Address: "alice@example.com", Verified: true}},
		Credential: "digest",
	})
	require.NoError(t, err)

	got, err := s.FindOne(ctx, goAccounts.Query{EmailAddress: "alice@example.com"}, goAccounts.FindOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.Credential)
	assert.Equal(t, []goAccounts.EmailEntry{{Address: "alice@example.com", Verified: true}}, got.Emails)

	hidden, err := s.FindOne(ctx, goAccounts.Query{ID: created.ID, Username: "alice"}, goAccounts.FindOptions{IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, "digest", hidden.Credential)

	none, err := s.FindOne(ctx, goAccounts.Query{Username: "nobody"}, goAccounts.FindOptions{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAccountsWithoutUsernameCoexist(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, goAccounts.NewAccount{Emails: []goAccounts.EmailEntry{{Address: "a@example.com"}}})
	require.NoError(t, err)
	_, err = s.Create(ctx, goAccounts.NewAccount{Emails: []goAccounts.EmailEntry{{Address: "b@example.com"}}})
	require.NoError(t, err)
}

func TestCreateDuplicatesMapToField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, goAccounts.NewAccount{Username: "alice", Emails: []goAccounts.EmailEntry{{Address: "alice@example.com"}}})
	require.NoError(t, err)

	var dup *goAccounts.DuplicateKeyError
	_, err = s.Create(ctx, goAccounts.NewAccount{Username: "alice"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, goAccounts.FieldUsername, dup.Field)

	_, err = s.Create(ctx, goAccounts.NewAccount{Username: "bob", Emails: []goAccounts.EmailEntry{{Address: "alice@example.com"}}})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, goAccounts.FieldEmailAddress, dup.Field)

	got, err := s.FindOne(ctx, goAccounts.Query{Username: "bob"}, goAccounts.FindOptions{})
	require.NoError(t, err)
	assert.Nil(t, got, "failed create must roll back the account row")
}

func TestUpdateByIDPatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, goAccounts.NewAccount{Username: "alice", Emails: []goAccounts.EmailEntry{{Address: "a@example.com"}}})
	require.NoError(t, err)
	b, err := s.Create(ctx, goAccounts.NewAccount{Username: "bob", Emails: []goAccounts.EmailEntry{{Address: "b@example.com"}}})
	require.NoError(t, err)

	res, err := s.UpdateByID(ctx, a.ID, goAccounts.Patch{AddEmail: &goAccounts.EmailEntry{Address: "a2@example.com"}})
	require.NoError(t, err)
	assert.True(t, res.Modified)

	res, err = s.UpdateByID(ctx, a.ID, goAccounts.Patch{AddEmail: &goAccounts.EmailEntry{Address: "a2@example.com"}})
	require.NoError(t, err)
	assert.False(t, res.Modified)

	_, err = s.UpdateByID(ctx, b.ID, goAccounts.Patch{AddEmail: &goAccounts.EmailEntry{Address: "a2@example.com"}})
	assert.ErrorIs(t, err, goAccounts.ErrDuplicateKey)

	res, err = s.UpdateByID(ctx, b.ID, goAccounts.Patch{RemoveEmail: "b@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Modified, "only address must be kept")

	res, err = s.UpdateByID(ctx, a.ID, goAccounts.Patch{RemoveEmail: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Modified)

	digest := "digest-2"
	issued := time.Now().UTC().Truncate(time.Second)
	res, err = s.UpdateByID(ctx, a.ID, goAccounts.Patch{
		Credential:           &digest,
		AddVerificationToken: &goAccounts.VerificationToken{Address: "a2@example.com", Token: "tok", CreatedAt: issued},
	})
	require.NoError(t, err)
	assert.True(t, res.Modified)

	got, err := s.FindOne(ctx, goAccounts.Query{ID: a.ID}, goAccounts.FindOptions{IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, digest, got.Credential)
	assert.Equal(t, []goAccounts.EmailEntry{{Address: "a2@example.com"}}, got.Emails)
	require.Len(t, got.VerificationTokens, 1)
	assert.Equal(t, "tok", got.VerificationTokens[0].Token)

	res, err = s.UpdateByID(ctx, "missing", goAccounts.Patch{Credential: &digest})
	require.NoError(t, err)
	assert.False(t, res.Modified)
}

func TestEmailOrderSurvivesRemoval(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acct, err := s.Create(ctx, goAccounts.NewAccount{
		Username: "alice",
		Emails:   []goAccounts.EmailEntry{{Address: "a@example.com"}, {Address: "b@example.com"}},
	})
	require.NoError(t, err)

	res, err := s.UpdateByID(ctx, acct.ID, goAccounts.Patch{RemoveEmail: "a@example.com"})
	require.NoError(t, err)
	require.True(t, res.Modified)

	for _, addr := range []string{"c@example.com", "d@example.com"} {
		res, err = s.UpdateByID(ctx, acct.ID, goAccounts.Patch{AddEmail: &goAccounts.EmailEntry{Address: addr}})
		require.NoError(t, err)
		require.True(t, res.Modified)
	}

	var positions []int
	require.NoError(t, s.db.Model(&emailRow{}).
		Where("account_id = ?", acct.ID).
		Order("position").
		Pluck("position", &positions).Error)
	assert.Equal(t, []int{1, 2, 3}, positions)

	got, err := s.FindOne(ctx, goAccounts.Query{ID: acct.ID}, goAccounts.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []goAccounts.EmailEntry{
		{Address: "b@example.com"},
		{Address: "c@example.com"},
		{Address: "d@example.com"},
	}, got.Emails)
}

func TestConcurrentCreateOneWinner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const racers = 16
	var wins, dups atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			_, err := s.Create(gctx, goAccounts.NewAccount{
				Username: "contended",
				Emails:   []goAccounts.EmailEntry{{Address: fmt.Sprintf("racer-%d@example.com", i)}},
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, goAccounts.ErrDuplicateKey):
				dups.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, racers-1, dups.Load())
}
