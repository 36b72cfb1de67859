package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
)

func TestSystemServiceHealthEnrichesReport(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-3 * time.Hour)

	repo := &stubHealthRepo{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusOK,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, LatencyMS: 12, CheckedAt: now},
				"pubsub":    {Status: domain.HealthStatusOK, LatencyMS: 8},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		Health: repo,
		Build: BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "production",
			StartedAt:   started,
		},
		Clock: func() time.Time {
			return now
		},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %s", report.Status)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc1234" || report.Environment != "production" {
		t.Fatalf("expected build info carried, got %+v", report)
	}
	if report.Uptime != 3*time.Hour {
		t.Fatalf("expected 3h uptime, got %s", report.Uptime)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatalf("expected generated at set")
	}
	if report.Checks["pubsub"].CheckedAt.IsZero() {
		t.Fatalf("expected missing check timestamp backfilled")
	}
}

func TestSystemServiceHealthDerivesWorstStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)

	repo := &stubHealthRepo{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded, Error: "slow publish"},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		Health: repo,
		Clock: func() time.Time {
			return now
		},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}

	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
	if report.Version != "dev" || report.Environment != "local" {
		t.Fatalf("expected build fallbacks, got %+v", report)
	}
	if report.Uptime != 0 {
		t.Fatalf("expected zero uptime without start time, got %s", report.Uptime)
	}
}

type stubHealthRepo struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepo) Collect(_ context.Context) (domain.SystemHealthReport, error) {
	if s.err != nil {
		return domain.SystemHealthReport{}, s.err
	}
	return s.report, nil
}
