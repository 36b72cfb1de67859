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

const userCollection = "users"

// UserRepository persists platform user profiles in Firestore.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// FindByID loads the user profile by its ID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainProfile(doc.ID, doc.Data), nil
}

// UpdateProfile upserts the user profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(profile.ID) == "" {
		return domain.UserProfile{}, errors.New("profile id is required")
	}

	now := time.Now().UTC()
	doc := fromDomainProfile(profile, now)
	if _, err := r.base.Set(ctx, profile.ID, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainProfile(profile.ID, doc), nil
}

// ListByRole returns a cursor page of profiles holding the given role.
func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role, pager domain.Pagination) (domain.CursorPage[domain.UserProfile], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.UserProfile]{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(string(role)) == "" {
		return domain.CursorPage[domain.UserProfile]{}, errors.New("role is required")
	}

	cursor, err := decodeListCursor(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.UserProfile]{}, err
	}
	pageSize := normalisePageSize(pager.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.
			Where("role", "==", string(role)).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.UserProfile]{}, err
	}

	page := domain.CursorPage[domain.UserProfile]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainProfile(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.UserProfile]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type userDocument struct {
	Email         string         `firestore:"email"`
	FirstName     string         `firestore:"firstName"`
	LastName      string         `firestore:"lastName"`
	Role          string         `firestore:"role"`
	RestaurantRef *string        `firestore:"restaurantRef,omitempty"`
	IsActive      bool           `firestore:"isActive"`
	Metadata      map[string]any `firestore:"metadata,omitempty"`
	CreatedAt     time.Time      `firestore:"createdAt"`
	UpdatedAt     time.Time      `firestore:"updatedAt"`
}

func fromDomainProfile(profile domain.UserProfile, now time.Time) userDocument {
	doc := userDocument{
		Email:         strings.ToLower(strings.TrimSpace(profile.Email)),
		FirstName:     strings.TrimSpace(profile.FirstName),
		LastName:      strings.TrimSpace(profile.LastName),
		Role:          string(profile.Role),
		RestaurantRef: profile.RestaurantRef,
		IsActive:      profile.IsActive,
		Metadata:      profile.Metadata,
		CreatedAt:     profile.CreatedAt,
		UpdatedAt:     now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func toDomainProfile(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:            id,
		Email:         doc.Email,
		FirstName:     doc.FirstName,
		LastName:      doc.LastName,
		Role:          domain.Role(doc.Role),
		RestaurantRef: doc.RestaurantRef,
		IsActive:      doc.IsActive,
		Metadata:      doc.Metadata,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}
