package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/platform/httpx"
	"github.com/tavolo-app/api/internal/services"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AdminHandlers exposes operator-facing endpoints, currently the audit trail.
type AdminHandlers struct {
	audit services.AuditLogService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(audit services.AuditLogService) *AdminHandlers {
	return &AdminHandlers{audit: audit}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.audit == nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_service_unavailable", "audit log service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultAuditPageSize, maxAuditPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		from, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be RFC3339", http.StatusBadRequest))
			return
		}
		dateRange.From = &from
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		to, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be RFC3339", http.StatusBadRequest))
			return
		}
		dateRange.To = &to
	}

	page, err := h.audit.List(ctx, services.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		Action:    strings.TrimSpace(query.Get("action")),
		DateRange: dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_error", "failed to list audit logs", http.StatusInternalServerError))
		return
	}

	items := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildAuditLogPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, auditLogListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

type auditLogListResponse struct {
	Items         []auditLogPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actor_type"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Severity  string         `json:"severity"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func buildAuditLogPayload(entry services.AuditLogEntry) auditLogPayload {
	return auditLogPayload{
		ID:        entry.ID,
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Metadata:  cloneMap(entry.Metadata),
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		CreatedAt: formatTime(entry.CreatedAt),
	}
}
