package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/repositories"
)

const (
	auditIDPrefix = "adt_"

	maxAuditTextLength     = 256
	maxAuditMetadataValues = 32
)

var allowedAuditSeverities = map[string]struct{}{
	"info":     {},
	"warning":  {},
	"critical": {},
}

var allowedActorTypes = map[string]struct{}{
	"user":    {},
	"admin":   {},
	"service": {},
}

// AuditLogServiceDeps bundles collaborators required to construct the audit service.
type AuditLogServiceDeps struct {
	AuditLogs   repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type auditLogService struct {
	auditLogs repositories.AuditLogRepository
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewAuditLogService wires dependencies into a concrete AuditLogService implementation.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.AuditLogs == nil {
		return nil, errors.New("audit log service: audit log repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &auditLogService{
		auditLogs: deps.AuditLogs,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Record appends one entry to the audit trail. Failures are logged and
// swallowed: the mutation that triggered the record has already committed
// and must not be rolled back or surfaced as failed because of a missing
// audit row.
func (s *auditLogService) Record(ctx context.Context, cmd RecordAuditCommand) {
	action := sanitizeAuditText(cmd.Action)
	if action == "" {
		s.logger(ctx, "audit.record.skipped", map[string]any{
			"reason": "empty action",
		})
		return
	}

	entry := domain.AuditLogEntry{
		ID:        auditIDPrefix + s.newID(),
		Actor:     sanitizeAuditText(cmd.Actor),
		ActorType: normalizeActorType(cmd.ActorType),
		Action:    action,
		TargetRef: sanitizeAuditText(cmd.TargetRef),
		Metadata:  sanitizeAuditMetadata(cmd.Metadata),
		Severity:  normalizeSeverity(cmd.Severity),
		RequestID: sanitizeAuditText(cmd.RequestID),
		CreatedAt: s.clock(),
	}
	if entry.Actor == "" {
		entry.Actor = "unknown"
	}

	if err := s.auditLogs.Append(ctx, entry); err != nil {
		s.logger(ctx, "audit.record.failed", map[string]any{
			"action": entry.Action,
			"actor":  entry.Actor,
			"error":  err.Error(),
		})
	}
}

func (s *auditLogService) List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error) {
	filter.Actor = strings.TrimSpace(filter.Actor)
	filter.Action = strings.TrimSpace(filter.Action)
	filter.TargetRef = strings.TrimSpace(filter.TargetRef)

	page, err := s.auditLogs.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[AuditLogEntry]{}, err
	}
	return page, nil
}

func sanitizeAuditText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(value))
	for _, r := range value {
		if r == '\n' || r == '\r' || r == '\t' {
			builder.WriteRune(' ')
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		builder.WriteRune(r)
	}

	cleaned := strings.Join(strings.Fields(builder.String()), " ")
	if len(cleaned) > maxAuditTextLength {
		cleaned = cleaned[:maxAuditTextLength]
	}
	return cleaned
}

func sanitizeAuditMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if len(sanitized) >= maxAuditMetadataValues {
			break
		}
		cleanKey := sanitizeAuditText(key)
		if cleanKey == "" {
			continue
		}
		switch typed := value.(type) {
		case string:
			sanitized[cleanKey] = sanitizeAuditText(typed)
		case bool, int, int32, int64, float32, float64:
			sanitized[cleanKey] = typed
		case time.Time:
			sanitized[cleanKey] = typed.UTC().Format(time.RFC3339Nano)
		default:
			// Nested structures are not audit-worthy detail.
			continue
		}
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}

func normalizeSeverity(severity string) string {
	severity = strings.ToLower(strings.TrimSpace(severity))
	if _, ok := allowedAuditSeverities[severity]; ok {
		return severity
	}
	return "info"
}

func normalizeActorType(actorType string) string {
	actorType = strings.ToLower(strings.TrimSpace(actorType))
	if _, ok := allowedActorTypes[actorType]; ok {
		return actorType
	}
	return "user"
}
