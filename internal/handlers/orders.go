package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/platform/httpx"
	"github.com/threadcart/api/internal/platform/observability"
	"github.com/threadcart/api/internal/repositories"
	"github.com/threadcart/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes endpoints for placing orders, appending tracking
// updates, and listing order history.
type OrderHandlers struct {
	orders  services.OrderService
	metrics *observability.APIMetrics
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, metrics *observability.APIMetrics) *OrderHandlers {
	return &OrderHandlers{
		orders:  orders,
		metrics: metrics,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Put("/{orderId}/tracking", h.appendTracking)
	r.Get("/user/{userId}", h.listUserOrders)
	r.Get("/admin/all", h.listAllOrders)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.PlaceOrderCommand{
		UserID:      strings.TrimSpace(req.UserID),
		Items:       buildOrderItems(req.Items),
		Shipping:    buildShipping(req.Shipping),
		TotalAmount: req.TotalAmount,
	}

	order, err := h.orders.Place(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.metrics.OrderPlaced(ctx)
	writeJSONResponse(w, http.StatusCreated, placeOrderResponse{
		Order: buildOrderPayload(order),
	})
}

func (h *OrderHandlers) appendTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req appendTrackingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.AppendTrackingCommand{
		OrderID:        orderID,
		Status:         strings.TrimSpace(req.Status),
		Message:        req.Message,
		Timestamp:      req.Timestamp,
		CourierPartner: req.CourierPartner,
		TrackingNumber: req.TrackingNumber,
	}

	detail, err := h.orders.AppendTracking(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.metrics.TrackingAppended(ctx, string(detail.Order.Status))
	writeJSONResponse(w, http.StatusOK, orderDetailResponse{
		Order:    buildOrderPayload(detail.Order),
		Products: buildProductMap(detail.Products),
		User:     buildUserPayload(detail.User),
	})
}

func (h *OrderHandlers) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	details, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, listOrdersResponse{
		Orders: buildOrderDetailPayloads(details),
	})
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	details, err := h.orders.ListAll(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, listOrdersResponse{
		Orders: buildOrderDetailPayloads(details),
	})
}

type placeOrderRequest struct {
	UserID      string                `json:"userId"`
	Items       []orderItemRequest    `json:"items"`
	Shipping    shippingDetailsObject `json:"shipping"`
	TotalAmount int64                 `json:"totalAmount"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"qty"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type shippingDetailsObject struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Contact    string `json:"contact"`
}

type appendTrackingRequest struct {
	Status         string     `json:"status"`
	Message        string     `json:"message"`
	Timestamp      *time.Time `json:"timestamp"`
	CourierPartner *string    `json:"courierPartner"`
	TrackingNumber *string    `json:"trackingNumber"`
}

type placeOrderResponse struct {
	Order orderPayload `json:"order"`
}

type orderDetailResponse struct {
	Order    orderPayload              `json:"order"`
	Products map[string]productPayload `json:"products,omitempty"`
	User     *userPayload              `json:"user,omitempty"`
}

type listOrdersResponse struct {
	Orders []orderDetailResponse `json:"orders"`
}

type orderPayload struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	Items          []orderItemPayload     `json:"items"`
	Shipping       shippingDetailsObject  `json:"shipping"`
	TotalAmount    int64                  `json:"totalAmount"`
	Status         string                 `json:"status"`
	CourierPartner string                 `json:"courierPartner,omitempty"`
	TrackingNumber string                 `json:"trackingNumber,omitempty"`
	Tracking       []trackingEventPayload `json:"tracking"`
	CreatedAt      string                 `json:"createdAt"`
}

type orderItemPayload struct {
	ProductID       string `json:"productId"`
	Quantity        int    `json:"qty"`
	Size            string `json:"size,omitempty"`
	Color           string `json:"color,omitempty"`
	ReviewSubmitted bool   `json:"reviewSubmitted"`
}

type trackingEventPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

type productPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       int64    `json:"price"`
	Images      []string `json:"images,omitempty"`
	Discount    int64    `json:"discount,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
}

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func buildOrderItems(items []orderItemRequest) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			Size:      strings.TrimSpace(item.Size),
			Color:     strings.TrimSpace(item.Color),
		})
	}
	return out
}

func buildShipping(req shippingDetailsObject) domain.ShippingDetails {
	return domain.ShippingDetails{
		Name:       req.Name,
		Email:      req.Email,
		Address:    req.Address,
		City:       req.City,
		Country:    req.Country,
		PostalCode: req.PostalCode,
		Contact:    req.Contact,
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			Size:            item.Size,
			Color:           item.Color,
			ReviewSubmitted: item.ReviewSubmitted,
		})
	}

	tracking := make([]trackingEventPayload, 0, len(order.Tracking))
	for _, event := range order.Tracking {
		tracking = append(tracking, trackingEventPayload{
			Status:    string(event.Status),
			Message:   event.Message,
			Timestamp: formatTime(event.Timestamp),
		})
	}

	return orderPayload{
		ID:     order.ID,
		UserID: order.UserID,
		Items:  items,
		Shipping: shippingDetailsObject{
			Name:       order.Shipping.Name,
			Email:      order.Shipping.Email,
			Address:    order.Shipping.Address,
			City:       order.Shipping.City,
			Country:    order.Shipping.Country,
			PostalCode: order.Shipping.PostalCode,
			Contact:    order.Shipping.Contact,
		},
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		CourierPartner: order.CourierPartner,
		TrackingNumber: order.TrackingNumber,
		Tracking:       tracking,
		CreatedAt:      formatTime(order.CreatedAt),
	}
}

func buildProductMap(products map[string]services.ProductSummary) map[string]productPayload {
	if len(products) == 0 {
		return nil
	}
	out := make(map[string]productPayload, len(products))
	for id, product := range products {
		out[id] = productPayload{
			ID:          product.ID,
			Title:       product.Title,
			Price:       product.Price,
			Images:      product.Images,
			Discount:    product.Discount,
			Category:    product.Category,
			Subcategory: product.Subcategory,
		}
	}
	return out
}

func buildUserPayload(user *services.UserSummary) *userPayload {
	if user == nil {
		return nil
	}
	return &userPayload{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
}

func buildOrderDetailPayloads(details []services.OrderDetail) []orderDetailResponse {
	out := make([]orderDetailResponse, 0, len(details))
	for _, detail := range details {
		out = append(out, orderDetailResponse{
			Order:    buildOrderPayload(detail.Order),
			Products: buildProductMap(detail.Products),
			User:     buildUserPayload(detail.User),
		})
	}
	return out
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "order update conflicted", http.StatusConflict))
	case isUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

func isUnavailable(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
