package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) Health(ctx context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthHandlersHealthz(t *testing.T) {
	handler := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHealthHandlersReadyzWithoutSystemService(t *testing.T) {
	handler := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzReportsChecks(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	system := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusOK,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, LatencyMS: 12, CheckedAt: now},
				"pubsub":    {Status: domain.HealthStatusOK, LatencyMS: 4, CheckedAt: now},
			},
			Version:     "1.4.0",
			Environment: "prod",
			GeneratedAt: now,
		},
	}
	handler := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload healthReportPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if payload.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %s", payload.Status)
	}
	if len(payload.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(payload.Checks))
	}
	if payload.Checks["firestore"].LatencyMS != 12 {
		t.Fatalf("unexpected firestore check %#v", payload.Checks["firestore"])
	}
	if payload.Version != "1.4.0" || payload.Environment != "prod" {
		t.Fatalf("expected build info in payload, got %#v", payload)
	}
}

func TestHealthHandlersReadyzUnhealthy(t *testing.T) {
	system := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
			},
		},
	}
	handler := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzCollectionError(t *testing.T) {
	system := &stubSystemService{err: context.DeadlineExceeded}
	handler := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
