package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tavolo-app/api/internal/domain"
	pfirestore "github.com/tavolo-app/api/internal/platform/firestore"
	"github.com/tavolo-app/api/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository stores order reviews and their moderation metadata. The
// one-review-per-order rule is enforced here: Insert checks for an existing
// review of the order inside the transaction that creates the new one, so two
// racing submissions for the same order cannot both commit.
type ReviewRepository struct {
	base     *pfirestore.BaseRepository[reviewDocument]
	provider *pfirestore.Provider
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil)
	return &ReviewRepository{base: base, provider: provider}, nil
}

// Insert creates the review. A second review for the same order surfaces as a
// conflict.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.provider == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	if strings.TrimSpace(review.ID) == "" {
		return domain.Review{}, errors.New("review id is required")
	}
	if strings.TrimSpace(review.OrderRef) == "" {
		return domain.Review{}, errors.New("review order reference is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := r.findByOrderTx(ctx, tx, review.OrderRef)
		if err != nil {
			return err
		}
		if existing {
			return status.Errorf(codes.AlreadyExists, "order %s already has a review", review.OrderRef)
		}
		ref, err := r.base.DocumentRef(ctx, review.ID)
		if err != nil {
			return err
		}
		return tx.Create(ref, fromDomainReview(review))
	})
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.insert", err)
	}
	return review, nil
}

// FindByID loads the review by its document ID.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	doc, err := r.base.Get(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	return toDomainReview(doc.ID, doc.Data), nil
}

// FindByOrder loads the single review attached to the order.
func (r *ReviewRepository) FindByOrder(ctx context.Context, orderID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Review{}, errors.New("order id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("orderRef", "==", strings.TrimSpace(orderID)).Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.WrapError("reviews.query", status.Errorf(codes.NotFound, "no review for order %s", orderID))
	}
	return toDomainReview(docs[0].ID, docs[0].Data), nil
}

// ListByRestaurant returns a cursor page of the restaurant's reviews, newest first.
func (r *ReviewRepository) ListByRestaurant(ctx context.Context, restaurantID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Review]{}, errors.New("review repository not initialised")
	}
	if strings.TrimSpace(restaurantID) == "" {
		return domain.CursorPage[domain.Review]{}, errors.New("restaurant id is required")
	}

	cursor, err := decodeListCursor(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	pageSize := normalisePageSize(pager.PageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.
			Where("restaurant.id", "==", strings.TrimSpace(restaurantID)).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	page := domain.CursorPage[domain.Review]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, toDomainReview(doc.ID, doc.Data))
	}
	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := encodeListCursor(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// UpdateStatus records a moderation decision on the review.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, reviewID string, reviewStatus domain.ReviewStatus, update repositories.ReviewModerationUpdate) (domain.Review, error) {
	if r == nil || r.provider == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	if strings.TrimSpace(reviewID) == "" {
		return domain.Review{}, errors.New("review id is required")
	}

	var moderated domain.Review
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, reviewID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored reviewDocument
		if err := snap.DataTo(&stored); err != nil {
			return err
		}

		moderatedAt := update.ModeratedAt.UTC()
		stored.Status = string(reviewStatus)
		stored.ModeratedBy = optionalTrimmed(update.ModeratedBy)
		stored.ModeratedAt = &moderatedAt
		stored.UpdatedAt = moderatedAt

		moderated = toDomainReview(snap.Ref.ID, stored)
		return tx.Set(ref, stored)
	})
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.moderate", err)
	}
	return moderated, nil
}

func (r *ReviewRepository) findByOrderTx(ctx context.Context, tx *firestore.Transaction, orderID string) (bool, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return false, err
	}
	query := client.Collection(reviewCollection).Query.Where("orderRef", "==", strings.TrimSpace(orderID)).Limit(1)
	docs, err := tx.Documents(query).GetAll()
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func optionalTrimmed(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type reviewDocument struct {
	OrderRef    string                  `firestore:"orderRef"`
	Restaurant  orderRestaurantDocument `firestore:"restaurant"`
	Author      userSummaryDocument     `firestore:"author"`
	Rating      int                     `firestore:"rating"`
	Comment     string                  `firestore:"comment"`
	Status      string                  `firestore:"status"`
	ModeratedBy *string                 `firestore:"moderatedBy,omitempty"`
	ModeratedAt *time.Time              `firestore:"moderatedAt,omitempty"`
	Reply       *reviewReplyDocument    `firestore:"reply,omitempty"`
	CreatedAt   time.Time               `firestore:"createdAt"`
	UpdatedAt   time.Time               `firestore:"updatedAt"`
}

type reviewReplyDocument struct {
	AuthorID  string    `firestore:"authorId"`
	Message   string    `firestore:"message"`
	Visible   bool      `firestore:"visible"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func fromDomainReview(review domain.Review) reviewDocument {
	doc := reviewDocument{
		OrderRef:    strings.TrimSpace(review.OrderRef),
		Restaurant:  fromDomainOrderRestaurant(review.Restaurant),
		Author:      toUserSummaryDocument(review.Author),
		Rating:      review.Rating,
		Comment:     review.Comment,
		Status:      string(review.Status),
		ModeratedBy: review.ModeratedBy,
		ModeratedAt: review.ModeratedAt,
		CreatedAt:   review.CreatedAt.UTC(),
		UpdatedAt:   review.UpdatedAt.UTC(),
	}
	if review.Reply != nil {
		doc.Reply = &reviewReplyDocument{
			AuthorID:  review.Reply.AuthorID,
			Message:   review.Reply.Message,
			Visible:   review.Reply.Visible,
			CreatedAt: review.Reply.CreatedAt.UTC(),
		}
	}
	return doc
}

func toDomainReview(id string, doc reviewDocument) domain.Review {
	review := domain.Review{
		ID:          id,
		OrderRef:    doc.OrderRef,
		Restaurant:  toDomainOrderRestaurant(doc.Restaurant),
		Author:      toDomainUserSummary(doc.Author),
		Rating:      doc.Rating,
		Comment:     doc.Comment,
		Status:      domain.ReviewStatus(doc.Status),
		ModeratedBy: doc.ModeratedBy,
		ModeratedAt: doc.ModeratedAt,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Reply != nil {
		review.Reply = &domain.ReviewReply{
			AuthorID:  doc.Reply.AuthorID,
			Message:   doc.Reply.Message,
			Visible:   doc.Reply.Visible,
			CreatedAt: doc.Reply.CreatedAt,
		}
	}
	return review
}
