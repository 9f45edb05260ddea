package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestMonitor(now time.Time) *Monitor {
	m := NewMonitor(map[string]time.Duration{"eos": time.Minute})
	m.now = func() time.Time { return now }
	m.started = now
	return m
}

func TestMonitor_Status(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		summary *RoundSummary
		want    SystemStatus
	}{
		{
			name: "no round yet",
			want: StatusDegraded,
		},
		{
			name:    "clean round",
			summary: &RoundSummary{FinishedAt: now.Add(-time.Minute), Duration: 30 * time.Second, Guilds: 21},
			want:    StatusHealthy,
		},
		{
			name:    "directory refresh failed",
			summary: &RoundSummary{FinishedAt: now, Guilds: 21, DirectoryError: "timeout"},
			want:    StatusDegraded,
		},
		{
			name:    "some guilds failed",
			summary: &RoundSummary{FinishedAt: now, Guilds: 21, FailedGuilds: 2},
			want:    StatusDegraded,
		},
		{
			name:    "every guild failed",
			summary: &RoundSummary{FinishedAt: now, Guilds: 21, FailedGuilds: 21},
			want:    StatusCritical,
		},
		{
			name:    "stale round",
			summary: &RoundSummary{FinishedAt: now.Add(-10 * time.Minute), Duration: time.Minute, Guilds: 21},
			want:    StatusCritical,
		},
		{
			name:    "long round is not stale",
			summary: &RoundSummary{FinishedAt: now.Add(-10 * time.Minute), Duration: 5 * time.Minute, Guilds: 21},
			want:    StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(now)
			if tt.summary != nil {
				tt.summary.Chain = "eos"
				m.RecordRound(*tt.summary)
			}

			got := m.CheckHealth(context.Background())["eos"]
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Status)
			}
		})
	}
}

func TestMonitor_FirstRoundOverdueIsCritical(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestMonitor(now)
	m.started = now.Add(-time.Hour)

	if got := m.CheckHealth(context.Background())["eos"].Status; got != StatusCritical {
		t.Errorf("expected critical, got %s", got)
	}
}

func TestServer_Health(t *testing.T) {
	now := time.Now()
	m := newTestMonitor(now)
	srv := NewServer(m, 0)

	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 3})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 3, FailedGuilds: 3})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.SystemStatus != StatusCritical || report.Chains["eos"].FailedGuilds != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestGRPCServer_FollowsMonitor(t *testing.T) {
	now := time.Now()
	m := newTestMonitor(now)
	s := NewGRPCServer(m, 0)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		return resp.Status
	}

	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 3})
	if got := check("eos"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", got)
	}

	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 3, FailedGuilds: 3})
	if got := check("eos"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %s", got)
	}
	if got := check(""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected overall NOT_SERVING, got %s", got)
	}
}

func TestMonitor_RecordRoundNotifiesListeners(t *testing.T) {
	now := time.Now()
	m := newTestMonitor(now)

	var first, second []map[string]ChainHealth
	m.OnUpdate(func(r map[string]ChainHealth) { first = append(first, r) })
	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 2})
	m.OnUpdate(func(r map[string]ChainHealth) { second = append(second, r) })
	m.RecordRound(RoundSummary{Chain: "eos", FinishedAt: now, Guilds: 2, FailedGuilds: 1})

	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("expected 2 and 1 notifications, got %d and %d", len(first), len(second))
	}
	if got := first[0]["eos"].Status; got != StatusHealthy {
		t.Errorf("expected healthy, got %s", got)
	}
	if got := second[0]["eos"].Status; got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}
