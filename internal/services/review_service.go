package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/events"
	"github.com/tavolo-app/api/internal/repositories"
)

const reviewIDPrefix = "rev_"

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates a review could not be located.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewConflict signals duplicate submissions or conflicting updates.
	ErrReviewConflict = errors.New("review: conflict")
	// ErrReviewInvalidState is returned when an invalid moderation transition is attempted.
	ErrReviewInvalidState = errors.New("review: invalid state transition")
)

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	orders   repositories.OrderRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
	events   EventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
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
	sanitize := deps.Sanitizer
	if sanitize == nil {
		policy := bluemonday.StrictPolicy()
		sanitize = func(input string) string {
			return strings.TrimSpace(policy.Sanitize(input))
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews: deps.Reviews,
		orders:  deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		sanitize: sanitize,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *reviewService) Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	authorID := strings.TrimSpace(cmd.AuthorID)
	if orderID == "" {
		return Review{}, fmt.Errorf("%w: order id is required", ErrReviewInvalidInput)
	}
	if authorID == "" {
		return Review{}, fmt.Errorf("%w: author id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}

	comment := s.sanitize(cmd.Comment)
	if comment == "" {
		return Review{}, fmt.Errorf("%w: comment is required", ErrReviewInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Review{}, s.mapOrderError(err)
	}
	if order.Buyer.ID != authorID {
		return Review{}, fmt.Errorf("%w: order does not belong to author", ErrReviewInvalidInput)
	}
	if order.Status != domain.OrderStatusCompleted {
		return Review{}, fmt.Errorf("%w: order must be completed before review submission", ErrReviewInvalidInput)
	}

	now := s.now()
	review := Review{
		ID:         reviewIDPrefix + s.newID(),
		OrderRef:   order.ID,
		Restaurant: order.Restaurant,
		Author:     order.Buyer,
		Rating:     cmd.Rating,
		Comment:    comment,
		Status:     domain.ReviewStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.TypeReviewCreated,
		Review:     &created,
		ActorID:    strings.TrimSpace(cmd.ActorID),
		OccurredAt: now,
	})

	return created, nil
}

func (s *reviewService) Get(ctx context.Context, reviewID string) (Review, error) {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return Review{}, fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}
	return review, nil
}

func (s *reviewService) GetByOrder(ctx context.Context, orderID string) (Review, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Review{}, fmt.Errorf("%w: order id is required", ErrReviewInvalidInput)
	}

	review, err := s.reviews.FindByOrder(ctx, orderID)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}
	return review, nil
}

func (s *reviewService) ListByRestaurant(ctx context.Context, restaurantID string, pager Pagination) (domain.CursorPage[Review], error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: restaurant id is required", ErrReviewInvalidInput)
	}

	page, err := s.reviews.ListByRestaurant(ctx, restaurantID, pager)
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapReviewError(err)
	}
	return page, nil
}

func (s *reviewService) Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error) {
	reviewID := strings.TrimSpace(cmd.ReviewID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if reviewID == "" {
		return Review{}, fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}
	if actorID == "" {
		return Review{}, fmt.Errorf("%w: actor id is required", ErrReviewInvalidInput)
	}
	if cmd.Status != domain.ReviewStatusPublished && cmd.Status != domain.ReviewStatusRejected {
		return Review{}, fmt.Errorf("%w: unsupported moderation status %s", ErrReviewInvalidInput, cmd.Status)
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}

	if review.Status == cmd.Status {
		return review, nil
	}
	if review.Status != domain.ReviewStatusPending {
		return Review{}, fmt.Errorf("%w: cannot transition from %s to %s", ErrReviewInvalidState, review.Status, cmd.Status)
	}

	updated, err := s.reviews.UpdateStatus(ctx, reviewID, cmd.Status, repositories.ReviewModerationUpdate{
		ModeratedBy: actorID,
		ModeratedAt: s.now(),
	})
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}

	return updated, nil
}

func (s *reviewService) mapReviewError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReviewConflict, err)
		}
	}
	return err
}

func (s *reviewService) mapOrderError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: order not found", ErrReviewInvalidInput)
	}
	return err
}

func (s *reviewService) now() time.Time {
	return s.clock()
}

func (s *reviewService) publishEvent(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		fields := map[string]any{
			"type":  string(event.Type),
			"error": err.Error(),
		}
		if event.Review != nil {
			fields["review"] = event.Review.ID
		}
		s.logger(ctx, "review.event.publish.failed", fields)
	}
}
