package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/platform/httpx"
	"github.com/tavolo-app/api/internal/services"
)

const maxReviewBodySize = 32 * 1024

// ReviewHandlers exposes review submission and moderation endpoints.
type ReviewHandlers struct {
	reviews services.ReviewService
	audit   services.AuditLogService
	limiter rateLimiter
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(reviews services.ReviewService, audit services.AuditLogService) *ReviewHandlers {
	return &ReviewHandlers{
		reviews: reviews,
		audit:   audit,
		limiter: newActorRateLimiter(10, time.Minute, nil),
	}
}

// Routes registers the /reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submitReview)
	r.Get("/{reviewID}", h.getReview)
	r.Post("/{reviewID}:moderate", h.moderateReview)
}

type submitReviewRequest struct {
	OrderID  string `json:"order_id"`
	AuthorID string `json:"author_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

type moderateReviewRequest struct {
	Status string `json:"status"`
}

func (h *ReviewHandlers) submitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(actorID(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many review submissions", http.StatusTooManyRequests))
		return
	}

	var req submitReviewRequest
	if err := decodeJSONBody(r, maxReviewBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	review, err := h.reviews.Submit(ctx, services.SubmitReviewCommand{
		OrderID:  req.OrderID,
		AuthorID: req.AuthorID,
		Rating:   req.Rating,
		Comment:  req.Comment,
		ActorID:  actorID(r),
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "review.submit", "reviews/"+review.ID)
	writeJSONResponse(w, http.StatusCreated, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	if reviewID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "review id is required", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.Get(ctx, reviewID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) moderateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	if reviewID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "review id is required", http.StatusBadRequest))
		return
	}

	var req moderateReviewRequest
	if err := decodeJSONBody(r, maxReviewBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	review, err := h.reviews.Moderate(ctx, services.ModerateReviewCommand{
		ReviewID: reviewID,
		Status:   domain.ReviewStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		ActorID:  actorID(r),
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, r, "review.moderate", "reviews/"+review.ID)
	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) recordAudit(ctx context.Context, r *http.Request, action, targetRef string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ctx, services.RecordAuditCommand{
		Actor:     actorID(r),
		ActorType: "user",
		Action:    action,
		TargetRef: targetRef,
		RequestID: requestID(r),
	})
}

type reviewListResponse struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type reviewResponse struct {
	Review reviewPayload `json:"review"`
}

type reviewPayload struct {
	ID          string              `json:"id"`
	OrderRef    string              `json:"order_ref"`
	Restaurant  string              `json:"restaurant"`
	Author      userSummaryPayload  `json:"author"`
	Rating      int                 `json:"rating"`
	Comment     string              `json:"comment"`
	Status      string              `json:"status"`
	ModeratedBy *string             `json:"moderated_by,omitempty"`
	ModeratedAt string              `json:"moderated_at,omitempty"`
	Reply       *reviewReplyPayload `json:"reply,omitempty"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at,omitempty"`
}

type reviewReplyPayload struct {
	AuthorID  string `json:"author_id"`
	Message   string `json:"message"`
	Visible   bool   `json:"visible"`
	CreatedAt string `json:"created_at"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	payload := reviewPayload{
		ID:          review.ID,
		OrderRef:    review.OrderRef,
		Restaurant:  review.Restaurant.ID,
		Author:      buildUserSummary(review.Author),
		Rating:      review.Rating,
		Comment:     review.Comment,
		Status:      string(review.Status),
		ModeratedBy: cloneStringPointer(review.ModeratedBy),
		ModeratedAt: formatTime(pointerTime(review.ModeratedAt)),
		CreatedAt:   formatTime(review.CreatedAt),
		UpdatedAt:   formatTime(review.UpdatedAt),
	}
	if review.Reply != nil {
		payload.Reply = &reviewReplyPayload{
			AuthorID:  review.Reply.AuthorID,
			Message:   review.Reply.Message,
			Visible:   review.Reply.Visible,
			CreatedAt: formatTime(review.Reply.CreatedAt),
		}
	}
	return payload
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("review_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrReviewConflict):
		httpx.WriteError(ctx, w, httpx.NewError("review_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "failed to process review request", http.StatusInternalServerError))
	}
}
