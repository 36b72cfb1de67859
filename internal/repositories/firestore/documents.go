package firestore

import (
	"strings"
	"time"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/platform/pagination"
)

// userSummaryDocument is the denormalised recipient snapshot stored inside
// order, booking, and review documents.
type userSummaryDocument struct {
	ID        string `firestore:"id"`
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Email     string `firestore:"email"`
}

func toUserSummaryDocument(summary domain.UserSummary) userSummaryDocument {
	return userSummaryDocument{
		ID:        strings.TrimSpace(summary.ID),
		FirstName: strings.TrimSpace(summary.FirstName),
		LastName:  strings.TrimSpace(summary.LastName),
		Email:     strings.TrimSpace(summary.Email),
	}
}

func toDomainUserSummary(doc userSummaryDocument) domain.UserSummary {
	return domain.UserSummary{
		ID:        doc.ID,
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Email:     doc.Email,
	}
}

// listCursor is the decoded shape shared by the list queries: the createdAt
// and document ID of the last item on the previous page.
type listCursor struct {
	createdAt time.Time
	id        string
}

func decodeListCursor(token string) (*listCursor, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if len(cursor.StartAfter) != 2 {
		if len(cursor.StartAfter) == 0 {
			return nil, nil
		}
		return nil, pagination.ErrInvalidPageToken
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, pagination.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return nil, pagination.ErrInvalidPageToken
	}
	return &listCursor{createdAt: createdAt, id: id}, nil
}

func encodeListCursor(createdAt time.Time, id string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), id},
	})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalisePageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	default:
		return size
	}
}
