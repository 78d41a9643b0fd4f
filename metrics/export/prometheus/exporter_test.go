package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goAccounts.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAccounts.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goAccounts.MetricsSnapshot{
			Counters:   map[goAccounts.MetricID]uint64{},
			Histograms: map[goAccounts.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no metrics for disabled source, got %d", n)
	}
}

func TestCollectCounterValues(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goAccounts.MetricsSnapshot{
			Counters: map[goAccounts.MetricID]uint64{
				goAccounts.MetricLoginSuccess:   7,
				goAccounts.MetricAccountCreated: 3,
			},
			Histograms: map[goAccounts.MetricID][]uint64{},
		},
		dropped: 2,
	})

	expected := `
# HELP goaccounts_login_success_total Successful password logins.
# TYPE goaccounts_login_success_total counter
goaccounts_login_success_total 7
# HELP goaccounts_account_created_total Accounts created.
# TYPE goaccounts_account_created_total counter
goaccounts_account_created_total 3
# HELP goaccounts_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE goaccounts_audit_dropped_total counter
goaccounts_audit_dropped_total 2
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"goaccounts_login_success_total",
		"goaccounts_account_created_total",
		internaldefs.AuditDroppedName,
	)
	if err != nil {
		t.Fatalf("unexpected collection result: %v", err)
	}

	want := len(internaldefs.CounterDefs) + len(internaldefs.HistogramDefs) + 1
	if n := testutil.CollectAndCount(exp); n != want {
		t.Fatalf("expected %d metrics, got %d", want, n)
	}
}

func TestHandlerRendersHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goAccounts.MetricsSnapshot{
			Counters: map[goAccounts.MetricID]uint64{},
			Histograms: map[goAccounts.MetricID][]uint64{
				goAccounts.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	rr := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)

	if !strings.Contains(out, `goaccounts_login_latency_seconds_bucket{le="0.005"} 1`) {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, `goaccounts_login_latency_seconds_bucket{le="+Inf"} 36`) {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "goaccounts_login_latency_seconds_count 36") {
		t.Fatalf("expected histogram count in output, got:\n%s", out)
	}
}
