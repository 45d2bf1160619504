package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campaigner/internal/campaign"
	"campaigner/internal/dispatch"
	logx "campaigner/pkg/logx"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestNewMetricsTwice(t *testing.T) {
	t.Parallel()
	for i := 0; i < 2; i++ {
		m, err := NewMetrics()
		if err != nil {
			t.Fatalf("NewMetrics #%d: %v", i, err)
		}
		if m.Handler() == nil {
			t.Fatal("Expected handler to be non-nil")
		}
		_ = m.Shutdown(context.Background())
	}
}

func TestObserverRecordsRun(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	obs := m.Observer()
	obs.RunStarted(dispatch.RunInfo{RunID: "r1", Campaign: "seminar", Total: 3, Batches: 1})
	obs.BatchStarted(1, 1, 3)
	obs.ResultRecorded(dispatch.Result{Recipient: campaign.Recipient{Destination: "a"}, Outcome: dispatch.OutcomeSuccess, Attempts: 1}, 1, 3)
	obs.ResultRecorded(dispatch.Result{Recipient: campaign.Recipient{Destination: "b"}, Outcome: dispatch.OutcomeFailure, Attempts: 4}, 2, 3)
	obs.ResultRecorded(dispatch.Result{Recipient: campaign.Recipient{Destination: "c"}, Outcome: dispatch.OutcomeFailure}, 3, 3)
	obs.RunFinished(dispatch.Summary{Campaign: "seminar", Total: 3, SuccessCount: 1, Duration: 12 * time.Second})

	body := scrape(t, m.Handler())
	for _, want := range []string{
		"campaign_messages",
		`campaign="seminar"`,
		`outcome="success"`,
		`outcome="failure"`,
		"campaign_send_attempts",
		"campaign_run_duration_seconds",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q:\n%s", want, body)
		}
	}
}

func TestNilMetricsObserver(t *testing.T) {
	t.Parallel()
	var m *Metrics
	if m.Observer() != nil {
		t.Fatal("nil metrics should give a nil observer")
	}
}

func TestServerServesMetricsWithToken(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", Token: "s3cret"}, m.Handler(), logx.Nop())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(context.Background())

	base := "http://" + srv.Addr()
	get := func(path string, header string) (int, string) {
		req, _ := http.NewRequest(http.MethodGet, base+path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/healthz", ""); code != http.StatusOK || body != "ok" {
		t.Fatalf("/healthz = %d %q", code, body)
	}
	if code, _ := get("/metrics", ""); code != http.StatusUnauthorized {
		t.Fatalf("/metrics without token = %d", code)
	}
	if code, _ := get("/metrics?token=wrong", ""); code != http.StatusUnauthorized {
		t.Fatalf("/metrics with wrong token = %d", code)
	}
	if code, body := get("/metrics", "Bearer s3cret"); code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Fatalf("/metrics with token = %d", code)
	}
}

func TestServerRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	srv := NewServer(ServerConfig{Addr: "0.0.0.0:0"}, http.NotFoundHandler(), logx.Nop())
	if err := srv.Start(context.Background()); err == nil {
		srv.Stop(context.Background())
		t.Fatal("expected refusal for insecure public bind")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:9464", true},
		{"localhost:9464", true},
		{"[::1]:9464", true},
		{":9464", false},
		{"0.0.0.0:9464", false},
		{"10.0.0.5:9464", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := isLoopbackAddr(tt.addr); got != tt.want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
