package goAccounts_test

import (
	"strings"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/store/memory"
)

func TestBuilderRejects(t *testing.T) {
	noSecret := testConfig()
	noSecret.Token.Secret = ""

	rateLimited := testConfig()
	rateLimited.RateLimit.Enabled = true

	tests := []struct {
		name    string
		builder *goAccounts.Builder
		want    string
	}{
		{
			name:    "missing store",
			builder: goAccounts.New().WithConfig(testConfig()),
			want:    "account store required",
		},
		{
			name:    "missing secret",
			builder: goAccounts.New().WithConfig(noSecret).WithStore(memory.New()),
			want:    "Token Secret",
		},
		{
			name:    "rate limit without redis",
			builder: goAccounts.New().WithConfig(rateLimited).WithStore(memory.New()),
			want:    "redis",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := tc.builder.Build()
			if engine != nil {
				t.Fatal("expected no engine")
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := goAccounts.New().WithConfig(testConfig()).WithStore(memory.New())
	buildEngine(t, b)

	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "already used") {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	b := goAccounts.New().WithConfig(cfg).WithStore(memory.New())
	cfg.Token.LifetimeDays = 99

	engine := buildEngine(t, b.WithMetricsEnabled(false))
	got := engine.Config()
	if got.Token.LifetimeDays != 30 {
		t.Fatalf("later config edits must not leak into the engine, got %d", got.Token.LifetimeDays)
	}
	if got.Metrics.Enabled {
		t.Fatal("WithMetricsEnabled(false) should win")
	}
	if snap := engine.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled metrics should snapshot empty, got %d counters", len(snap.Counters))
	}
}
