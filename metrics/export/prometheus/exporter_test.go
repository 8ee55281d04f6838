package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authguard "github.com/authguard-dev/authguard"
)

type fakeSource struct {
	snapshot authguard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters:   map[authguard.MetricID]uint64{},
			Histograms: map[authguard.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters: map[authguard.MetricID]uint64{
				authguard.MetricTokenIssued: 7,
			},
			Histograms: map[authguard.MetricID][]uint64{
				authguard.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "authguard_token_issued_total 7") {
		t.Fatalf("expected token issued counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authguard_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authguard_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authguard_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters:   map[authguard.MetricID]uint64{authguard.MetricTokenIssued: 1},
			Histograms: map[authguard.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters: map[authguard.MetricID]uint64{
				authguard.MetricTokenIssued:          1000,
				authguard.MetricTokenValidateSuccess: 900,
				authguard.MetricRefreshSuccess:       800,
				authguard.MetricRefreshFailure:       10,
				authguard.MetricSessionEvicted:       12,
				authguard.MetricSessionInvalidated:   20,
			},
			Histograms: map[authguard.MetricID][]uint64{
				authguard.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
