package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/store/gormstore"
	"github.com/MrEthical07/goAccounts/store/memory"
	"github.com/MrEthical07/goAccounts/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type settings struct {
	Store       string `env:"ACCOUNTS_LOADTEST_STORE"       envDefault:"memory"`
	DSN         string `env:"ACCOUNTS_LOADTEST_DSN"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RateLimit   bool   `env:"ACCOUNTS_LOADTEST_RATE_LIMIT"`
	Accounts    int    `env:"ACCOUNTS_LOADTEST_ACCOUNTS"    envDefault:"2000"`
	Concurrency int    `env:"ACCOUNTS_LOADTEST_CONCURRENCY" envDefault:"64"`
	Ops         int    `env:"ACCOUNTS_LOADTEST_OPS"         envDefault:"10000"`
	Racers      int    `env:"ACCOUNTS_LOADTEST_RACERS"      envDefault:"64"`
	Cost        int    `env:"ACCOUNTS_LOADTEST_BCRYPT_COST" envDefault:"4"`
	LogFormat   string `env:"ACCOUNTS_LOADTEST_LOG_FORMAT"  envDefault:"text"`
}

func main() {
	s, err := env.ParseAs[settings]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&s.Store, "store", s.Store, "account store: memory, sqlite or postgres")
	flag.StringVar(&s.DSN, "dsn", s.DSN, "database DSN for the sqlite and postgres stores")
	flag.StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "redis address; miniredis is used when empty and rate limiting is on")
	flag.BoolVar(&s.RateLimit, "rate-limit", s.RateLimit, "enable redis-backed throttles")
	flag.IntVar(&s.Accounts, "accounts", s.Accounts, "number of accounts to create")
	flag.IntVar(&s.Concurrency, "concurrency", s.Concurrency, "number of concurrent workers")
	flag.IntVar(&s.Ops, "ops", s.Ops, "login operations to run")
	flag.IntVar(&s.Racers, "racers", s.Racers, "goroutines competing for one username in the contention phase")
	flag.IntVar(&s.Cost, "cost", s.Cost, "bcrypt cost factor")
	flag.StringVar(&s.LogFormat, "log-format", s.LogFormat, "text or json")
	flag.Parse()

	logger := newLogger(s.LogFormat)

	if s.Accounts <= 0 || s.Concurrency <= 0 || s.Ops <= 0 || s.Racers <= 0 {
		logger.Error("accounts, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), s, logger); err != nil {
		logger.Error("load test failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}

func run(ctx context.Context, s settings, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, s)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := goAccounts.DefaultConfig()
	cfg.Password.Cost = s.Cost
	cfg.Token.Secret = "loadtest-secret-0123456789abcdef"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := goAccounts.New().WithStore(store).WithLogger(logger)

	if s.RateLimit {
		client, closeRedis, err := openRedis(s.RedisAddr, logger)
		if err != nil {
			return err
		}
		defer closeRedis()
		cfg.RateLimit.Enabled = true
		builder = builder.WithRedis(client)
	}

	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	logger.Info("starting", "store", s.Store, "accounts", s.Accounts, "concurrency", s.Concurrency, "ops", s.Ops)

	createStats, err := runCreatePhase(ctx, engine, s.Accounts, s.Concurrency)
	if err != nil {
		return err
	}
	loginStats, err := runLoginPhase(ctx, engine, s.Accounts, s.Ops, s.Concurrency)
	if err != nil {
		return err
	}
	winners, err := runContentionPhase(ctx, engine, s.Racers)
	if err != nil {
		return err
	}

	logStats(logger, "create", createStats)
	logStats(logger, "login", loginStats)
	logger.Info("contention", "racers", s.Racers, "winners", winners)
	if winners != 1 {
		return fmt.Errorf("expected one winner for a contended username, got %d", winners)
	}

	snap := engine.MetricsSnapshot()
	logger.Info("engine counters",
		"created", snap.Counters[goAccounts.MetricAccountCreated],
		"duplicates", snap.Counters[goAccounts.MetricAccountCreationDuplicate],
		"login_success", snap.Counters[goAccounts.MetricLoginSuccess],
		"login_failure", snap.Counters[goAccounts.MetricLoginFailure],
		"rate_limited", snap.Counters[goAccounts.MetricRateLimitHit],
	)
	return nil
}

func openStore(ctx context.Context, s settings) (goAccounts.AccountStore, func(), error) {
	switch s.Store {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		dsn := s.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := gormstore.OpenSQLite(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store := gormstore.New(db)
		if err := store.AutoMigrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return store, closeFn, nil
	case "postgres":
		if s.DSN == "" {
			return nil, nil, errors.New("postgres store requires -dsn")
		}
		db, err := postgres.Open(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.New(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", s.Store)
	}
}

func openRedis(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info("using redis", "addr", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info("using miniredis", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func username(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func passwordFor(i int) string {
	return fmt.Sprintf("pw-%d-load", i)
}

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  atomic.Int64
}

func (r *recorder) observe(d time.Duration, err error) {
	if err != nil {
		r.failures.Add(1)
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.mu.Unlock()
}

func runCreatePhase(ctx context.Context, engine *goAccounts.Engine, accounts, concurrency int) (phaseStats, error) {
	rec := &recorder{latencies: make([]time.Duration, 0, accounts)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	start := time.Now()
	for i := 0; i < accounts; i++ {
		g.Go(func() error {
			t0 := time.Now()
			_, err := engine.CreateAccount(gctx, goAccounts.CreateAccountFields{
				Username: username(i),
				Email:    fmt.Sprintf("user-%d@load.example.com", i),
				Password: passwordFor(i),
			}, nil)
			rec.observe(time.Since(t0), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), rec.latencies, rec.failures.Load()), nil
}

func runLoginPhase(ctx context.Context, engine *goAccounts.Engine, accounts, ops, concurrency int) (phaseStats, error) {
	rec := &recorder{latencies: make([]time.Duration, 0, ops)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	start := time.Now()
	for i := 0; i < ops; i++ {
		g.Go(func() error {
			idx := (i * 7919) % accounts
			pw := passwordFor(idx)
			// every tenth attempt uses a wrong password
			if i%10 == 9 {
				pw = "wrong"
			}
			t0 := time.Now()
			_, err := engine.LoginWithPassword(gctx, username(idx), pw)
			rec.observe(time.Since(t0), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), rec.latencies, rec.failures.Load()), nil
}

// runContentionPhase starts racers creating the same username at once and
// returns how many succeeded.
func runContentionPhase(ctx context.Context, engine *goAccounts.Engine, racers int) (int, error) {
	var (
		winners atomic.Int64
		gate    = make(chan struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			<-gate
			_, err := engine.CreateAccount(gctx, goAccounts.CreateAccountFields{
				Username: "contended",
				Email:    fmt.Sprintf("racer-%d@load.example.com", i),
			}, nil)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, goAccounts.ErrUsernameTaken), errors.Is(err, goAccounts.ErrRateLimited):
			default:
				return err
			}
			return nil
		})
	}
	close(gate)
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(winners.Load()), nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func logStats(logger *slog.Logger, name string, s phaseStats) {
	logger.Info(name,
		"ops", s.ops,
		"failures", s.failures,
		"total", s.total.Round(time.Millisecond),
		"ops_per_sec", fmt.Sprintf("%.0f", s.opsPerS),
		"p50", s.p50.Round(time.Microsecond),
		"p95", s.p95.Round(time.Microsecond),
		"p99", s.p99.Round(time.Microsecond),
	)
}
