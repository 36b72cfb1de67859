package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tavolo-app/api/internal/domain"
	pfirestore "github.com/tavolo-app/api/internal/platform/firestore"
	"github.com/tavolo-app/api/internal/repositories"
)

const auditLogCollection = "auditLogs"

// AuditLogRepository appends immutable audit trail entries. Entries are never
// updated or deleted once written.
type AuditLogRepository struct {
	base     *pfirestore.BaseRepository[auditLogDocument]
	provider *pfirestore.Provider
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[auditLogDocument](provider, auditLogCollection, nil, nil)
	return &AuditLogRepository{base: base, provider: provider}, nil
}

// Append writes the entry. Reusing an entry ID surfaces as a conflict.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.base == nil {
		return errors.New("audit log repository not initialised")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("audit log entry id is required")
	}

	ref, err := r.base.DocumentRef(ctx, entry.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainAuditEntry(entry)); err != nil {
		return pfirestore.WrapError("auditlogs.append", err)
	}
	return nil
}

// List returns a cursor page of entries matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, errors.New("audit log repository not initialised")
	}

	cursor, err := decodeListCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, err
	}
	pageSize := normalisePageSize(filter.Pagination.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if target := strings.TrimSpace(filter.TargetRef); target != "" {
			query = query.Where("targetRef", "==", target)
		}
		if actor := strings.TrimSpace(filter.Actor); actor != "" {
			query = query.Where("actor", "==", actor)
		}
		if action := strings.TrimSpace(filter.Action); action != "" {
			query = query.Where("action", "==", action)
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, err
	}

	page := domain.CursorPage[domain.AuditLogEntry]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainAuditEntry(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type auditLogDocument struct {
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	Severity  string         `firestore:"severity"`
	RequestID string         `firestore:"requestId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func fromDomainAuditEntry(entry domain.AuditLogEntry) auditLogDocument {
	return auditLogDocument{
		Actor:     strings.TrimSpace(entry.Actor),
		ActorType: strings.TrimSpace(entry.ActorType),
		Action:    strings.TrimSpace(entry.Action),
		TargetRef: strings.TrimSpace(entry.TargetRef),
		Metadata:  entry.Metadata,
		Severity:  strings.TrimSpace(entry.Severity),
		RequestID: strings.TrimSpace(entry.RequestID),
		CreatedAt: entry.CreatedAt.UTC(),
	}
}

func toDomainAuditEntry(id string, doc auditLogDocument) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        id,
		Actor:     doc.Actor,
		ActorType: doc.ActorType,
		Action:    doc.Action,
		TargetRef: doc.TargetRef,
		Metadata:  doc.Metadata,
		Severity:  doc.Severity,
		RequestID: doc.RequestID,
		CreatedAt: doc.CreatedAt,
	}
}
