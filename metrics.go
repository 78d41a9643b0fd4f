package goAccounts

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	// MetricAccountCreated is an exported constant or variable used by the account engine.
	MetricAccountCreated MetricID = iota
	// MetricAccountCreationFailure is an exported constant or variable used by the account engine.
	MetricAccountCreationFailure
	// MetricAccountCreationDuplicate is an exported constant or variable used by the account engine.
	MetricAccountCreationDuplicate
	// MetricAccountCreationRateLimited is an exported constant or variable used by the account engine.
	MetricAccountCreationRateLimited
	// MetricLoginSuccess is an exported constant or variable used by the account engine.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the account engine.
	MetricLoginFailure
	// MetricLoginRateLimited is an exported constant or variable used by the account engine.
	MetricLoginRateLimited
	// MetricPasswordUpgraded counts digests rehashed after a successful login.
	MetricPasswordUpgraded
	// MetricPasswordChangeSuccess is an exported constant or variable used by the account engine.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld is an exported constant or variable used by the account engine.
	MetricPasswordChangeInvalidOld
	// MetricPasswordChangeFailure is an exported constant or variable used by the account engine.
	MetricPasswordChangeFailure
	// MetricEmailAdded is an exported constant or variable used by the account engine.
	MetricEmailAdded
	// MetricEmailRemoved is an exported constant or variable used by the account engine.
	MetricEmailRemoved
	// MetricEmailVerificationIssued is an exported constant or variable used by the account engine.
	MetricEmailVerificationIssued
	// MetricEmailVerificationRateLimited is an exported constant or variable used by the account engine.
	MetricEmailVerificationRateLimited
	// MetricTokenIssued is an exported constant or variable used by the account engine.
	MetricTokenIssued
	// MetricTokenInvalid is an exported constant or variable used by the account engine.
	MetricTokenInvalid
	// MetricRateLimitHit is an exported constant or variable used by the account engine.
	MetricRateLimitHit
	// MetricLoginLatency is the latency histogram for LoginWithPassword.
	MetricLoginLatency
	// MetricCreateAccountLatency is the latency histogram for CreateAccount.
	MetricCreateAccountLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters and fixed-bucket latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics instance. A disabled instance ignores all updates.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
//
// Inc is a no-op on a nil or disabled receiver and for unknown ids.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only latency ids carry histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !IsLatencyMetric(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if IsLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricCreateAccountLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// IsLatencyMetric reports whether id names a histogram rather than a counter.
func IsLatencyMetric(id MetricID) bool {
	return id == MetricLoginLatency || id == MetricCreateAccountLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
