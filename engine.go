package goAccounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccounts/internal/audit"
	"github.com/MrEthical07/goAccounts/internal/rate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goAccounts"

// Rate limiter scopes. They appear in redis keys as <prefix>:<scope>:<id>.
const (
	scopeLogin  = "login"
	scopeCreate = "create"
	scopeVerify = "verify"
)

// Engine defines a public type used by goAccounts APIs.
//
// Engine instances are built once through Builder and are safe for
// concurrent use. The configuration is copied at Build time.
type Engine struct {
	config  Config
	store   AccountStore
	hasher  Hasher
	signer  Signer
	limiter *rate.Limiter
	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Close describes the close operation and its observable behavior.
//
// Close drains the audit dispatcher. It does not close the store or the redis client.
// Close is idempotent and safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped returns the number of audit events discarded because the dispatcher buffer was full.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.signer != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// metricIncInt adapts metricInc to the int ids used by internal flows.
func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "goaccounts."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if kind := KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("goaccounts.error_kind", string(kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

/*
====================================
RATE LIMITING
====================================
*/

func (e *Engine) loginPolicy() rate.Policy {
	return rate.Policy{Scope: scopeLogin, Max: e.config.RateLimit.MaxLoginAttempts, Window: e.config.RateLimit.LoginWindow}
}

func (e *Engine) createPolicy() rate.Policy {
	return rate.Policy{Scope: scopeCreate, Max: e.config.RateLimit.MaxAccountCreations, Window: e.config.RateLimit.AccountCreationWindow}
}

func (e *Engine) verifyPolicy() rate.Policy {
	return rate.Policy{Scope: scopeVerify, Max: e.config.RateLimit.MaxVerificationRequests, Window: e.config.RateLimit.VerificationWindow}
}

// limiterError translates limiter failures into engine errors. Redis
// failures are returned wrapped so callers can still match
// rate.ErrRedisUnavailable through the audit code.
func (e *Engine) limiterError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricRateLimitHit)
		return ErrRateLimited
	}
	return err
}

func (e *Engine) allow(policy rate.Policy) func(context.Context, string) error {
	if e.limiter == nil {
		return nil
	}
	return func(ctx context.Context, id string) error {
		return e.limiterError(e.limiter.Allow(ctx, policy, id))
	}
}

/*
====================================
STORE ADAPTERS
====================================
*/

func (e *Engine) findOne(ctx context.Context, q Query, includeHidden bool) (*Account, error) {
	if q.IsZero() {
		return nil, nil
	}
	return e.store.FindOne(ctx, q, FindOptions{IncludeHidden: includeHidden})
}

func (e *Engine) updateCredential(ctx context.Context, accountID, digest string) error {
	res, err := e.store.UpdateByID(ctx, accountID, Patch{Credential: &digest})
	if err != nil {
		return err
	}
	if !res.Modified {
		return ErrAccountNotFound
	}
	return nil
}

func emailAddresses(a *Account) []string {
	out := make([]string, 0, len(a.Emails))
	for _, entry := range a.Emails {
		out = append(out, entry.Address)
	}
	return out
}
