package services

import (
	"context"
	"time"

	domain "github.com/threadcart/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	TrackingEvent   = domain.TrackingEvent
	ShippingDetails = domain.ShippingDetails
	Review          = domain.Review
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	ProductSummary  = domain.ProductSummary
	UserSummary     = domain.UserSummary
)

// OrderService applies the order lifecycle: creation in the initial state,
// tracking appends with the denormalised status, and ordered reads.
type OrderService interface {
	Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	AppendTracking(ctx context.Context, cmd AppendTrackingCommand) (OrderDetail, error)
	ListByUser(ctx context.Context, userID string) ([]OrderDetail, error)
	ListAll(ctx context.Context) ([]OrderDetail, error)
}

// ReviewService gates review submission on delivery state and line-item
// eligibility, and reads reviews with reviewer context resolved.
type ReviewService interface {
	Submit(ctx context.Context, cmd SubmitReviewCommand) (ReviewDetail, error)
	ListByProduct(ctx context.Context, productID string) ([]ReviewDetail, error)
}

// CartService replaces and reads the single cart document kept per user.
type CartService interface {
	Get(ctx context.Context, userID string) ([]CartItem, error)
	Replace(ctx context.Context, userID string, items []CartItem) ([]CartItem, error)
}

// PlaceOrderCommand captures the inputs for order placement. TotalAmount is
// computed by the caller and trusted as given.
type PlaceOrderCommand struct {
	UserID      string
	Items       []OrderItem
	Shipping    ShippingDetails
	TotalAmount int64
}

// AppendTrackingCommand captures a tracking update. Timestamp may be
// backdated by the caller; a zero value defaults to now. The courier fields
// follow field-presence semantics: nil leaves the stored value untouched,
// a pointer to the empty string clears it.
type AppendTrackingCommand struct {
	OrderID        string
	Status         string
	Message        string
	Timestamp      *time.Time
	CourierPartner *string
	TrackingNumber *string
}

// SubmitReviewCommand captures a review submission for one purchased line item.
type SubmitReviewCommand struct {
	ProductID      string
	UserID         string
	OrderID        string
	OrderItemIndex int
	Rating         int
	Comment        string
}

// OrderDetail pairs an order with the catalog and identity context resolved
// for display.
type OrderDetail struct {
	Order    Order
	Products map[string]ProductSummary
	User     *UserSummary
}

// ReviewDetail pairs a review with the reviewer's display name.
type ReviewDetail struct {
	Review       Review
	ReviewerName string
}
