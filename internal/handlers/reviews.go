package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/threadcart/api/internal/platform/httpx"
	"github.com/threadcart/api/internal/platform/observability"
	"github.com/threadcart/api/internal/services"
)

const maxReviewBodySize = 32 * 1024

// ReviewHandlers exposes endpoints for submitting and listing product reviews.
type ReviewHandlers struct {
	reviews services.ReviewService
	metrics *observability.APIMetrics
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(reviews services.ReviewService, metrics *observability.APIMetrics) *ReviewHandlers {
	return &ReviewHandlers{
		reviews: reviews,
		metrics: metrics,
	}
}

// Routes registers the /products/{productId}/reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{productId}/reviews", h.submitReview)
	r.Get("/{productId}/reviews", h.listReviews)
}

func (h *ReviewHandlers) submitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxReviewBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.SubmitReviewCommand{
		ProductID:      productID,
		UserID:         strings.TrimSpace(req.UserID),
		OrderID:        strings.TrimSpace(req.OrderID),
		OrderItemIndex: req.OrderItemIndex,
		Rating:         req.Rating,
		Comment:        req.Comment,
	}

	detail, err := h.reviews.Submit(ctx, cmd)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	h.metrics.ReviewSubmitted(ctx)
	writeJSONResponse(w, http.StatusCreated, submitReviewResponse{
		Review: buildReviewPayload(detail),
	})
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	details, err := h.reviews.ListByProduct(ctx, productID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	payloads := make([]reviewPayload, 0, len(details))
	for _, detail := range details {
		payloads = append(payloads, buildReviewPayload(detail))
	}

	writeJSONResponse(w, http.StatusOK, listReviewsResponse{
		Reviews: payloads,
	})
}

type submitReviewRequest struct {
	UserID         string `json:"userId"`
	OrderID        string `json:"orderId"`
	OrderItemIndex int    `json:"orderItemIndex"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment"`
}

type submitReviewResponse struct {
	Review reviewPayload `json:"review"`
}

type listReviewsResponse struct {
	Reviews []reviewPayload `json:"reviews"`
}

type reviewPayload struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	UserID         string `json:"userId"`
	OrderID        string `json:"orderId"`
	OrderItemIndex int    `json:"orderItemIndex"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
	ReviewerName   string `json:"reviewerName,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func buildReviewPayload(detail services.ReviewDetail) reviewPayload {
	review := detail.Review
	return reviewPayload{
		ID:             review.ID,
		ProductID:      review.ProductID,
		UserID:         review.UserID,
		OrderID:        review.OrderID,
		OrderItemIndex: review.OrderItemIndex,
		Rating:         review.Rating,
		Comment:        review.Comment,
		ReviewerName:   detail.ReviewerName,
		CreatedAt:      formatTime(review.CreatedAt),
	}
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrReviewNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_delivered", "reviews require a delivered order", http.StatusConflict))
	case errors.Is(err, services.ErrReviewConflict):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "item already reviewed", http.StatusConflict))
	case isUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
