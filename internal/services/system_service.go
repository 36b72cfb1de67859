package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/repositories"
)

// BuildInfo carries release metadata stamped at deploy time.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct the system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Build  BuildInfo
	Clock  func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

// NewSystemService wires dependencies into a concrete SystemService implementation.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &systemService{
		health: deps.Health,
		build:  deps.Build,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Health probes every registered dependency and folds the results into one
// report. Probe errors are reflected in the per-check status rather than
// returned: readiness handlers need the degraded report, not an error.
func (s *systemService) Health(ctx context.Context) (SystemHealthReport, error) {
	now := s.clock()

	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	normalized := make(map[string]domain.SystemHealthCheck, len(report.Checks))
	for name, check := range report.Checks {
		check.CheckedAt = ensureTimestamp(check.CheckedAt, now)
		normalized[name] = check
	}
	report.Checks = normalized

	report.Status = chooseFirstNonEmpty(report.Status, deriveStatus(normalized))
	report.Version = chooseFirstNonEmpty(s.build.Version, "dev")
	report.CommitSHA = chooseFirstNonEmpty(s.build.CommitSHA, "unknown")
	report.Environment = chooseFirstNonEmpty(s.build.Environment, "local")
	report.GeneratedAt = ensureTimestamp(report.GeneratedAt, now)
	if !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt.UTC())
	}

	return report, nil
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusDegraded:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}

func ensureTimestamp(value, fallback time.Time) time.Time {
	if value.IsZero() {
		return fallback
	}
	return value.UTC()
}

func chooseFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
