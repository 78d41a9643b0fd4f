package goAccounts_test

import (
	"context"
	"errors"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "engine-test-secret-0123456789abcdef"

func testConfig() goAccounts.Config {
	cfg := goAccounts.DefaultConfig()
	cfg.Password.Cost = 4
	cfg.Token.Secret = testSecret
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg goAccounts.Config) (*goAccounts.Engine, *memory.Store) {
	t.Helper()

	store := memory.New()
	return buildEngine(t, goAccounts.New().WithConfig(cfg).WithStore(store)), store
}

func buildEngine(t *testing.T, b *goAccounts.Builder) *goAccounts.Engine {
	t.Helper()

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func mustCreate(t *testing.T, engine *goAccounts.Engine, fields goAccounts.CreateAccountFields) string {
	t.Helper()

	res, err := engine.CreateAccount(context.Background(), fields, nil)
	if err != nil {
		t.Fatalf("create %+v: %v", fields, err)
	}
	if res.AccountID == "" {
		t.Fatal("expected account id")
	}
	return res.AccountID
}

func expectKind(t *testing.T, err error, want *goAccounts.Error) {
	t.Helper()

	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Kind, err)
	}
}

func storedCredential(t *testing.T, store *memory.Store, id string) string {
	t.Helper()

	acct, err := store.FindOne(context.Background(), goAccounts.Query{ID: id}, goAccounts.FindOptions{IncludeHidden: true})
	if err != nil || acct == nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return acct.Credential
}
