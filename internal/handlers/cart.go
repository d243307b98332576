package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/platform/httpx"
	"github.com/threadcart/api/internal/platform/observability"
	"github.com/threadcart/api/internal/services"
)

const maxCartBodySize = 64 * 1024

// CartHandlers exposes endpoints for reading and replacing a user's cart.
type CartHandlers struct {
	cart    services.CartService
	metrics *observability.APIMetrics
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(cart services.CartService, metrics *observability.APIMetrics) *CartHandlers {
	return &CartHandlers{
		cart:    cart,
		metrics: metrics,
	}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{userId}", h.getCart)
	r.Put("/{userId}", h.replaceCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	items, err := h.cart.Get(ctx, userID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{
		UserID: userID,
		Items:  buildCartItemPayloads(items),
	})
}

func (h *CartHandlers) replaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req replaceCartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			Size:      strings.TrimSpace(item.Size),
			Color:     strings.TrimSpace(item.Color),
		})
	}

	saved, err := h.cart.Replace(ctx, userID, items)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.metrics.CartReplaced(ctx)
	writeJSONResponse(w, http.StatusOK, cartResponse{
		UserID: userID,
		Items:  buildCartItemPayloads(saved),
	})
}

type replaceCartRequest struct {
	Items []cartItemObject `json:"items"`
}

type cartResponse struct {
	UserID string           `json:"userId"`
	Items  []cartItemObject `json:"items"`
}

type cartItemObject struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"qty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func buildCartItemPayloads(items []domain.CartItem) []cartItemObject {
	out := make([]cartItemObject, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemObject{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return out
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case isUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
