package domain

import (
	"time"
)

// OrderStatus enumerates the closed set of fulfilment states an order may carry.
type OrderStatus string

const (
	// OrderStatusPlaced is the initial state assigned when an order is created.
	OrderStatusPlaced OrderStatus = "Order Placed"
	// OrderStatusConfirmed indicates the order has been confirmed by an operator.
	OrderStatusConfirmed OrderStatus = "Order Confirmed"
	// OrderStatusShipped indicates the order has left the warehouse.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusInHub indicates the parcel has reached a courier hub.
	OrderStatusInHub OrderStatus = "In Hub"
	// OrderStatusOutForDelivery indicates the parcel is on its final leg.
	OrderStatusOutForDelivery OrderStatus = "Out For Delivery"
	// OrderStatusDelivered indicates the parcel reached the customer. Reviews
	// become possible only in this state.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "Cancelled"
	// OrderStatusReturned indicates the parcel was returned to the seller.
	OrderStatusReturned OrderStatus = "Returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusInHub,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// OrderStatuses returns the enumeration in declaration order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus validates a raw status string against the enumeration.
// Status values outside the closed set are rejected at the boundary rather
// than carried as free-form strings.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	for _, status := range orderStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// TrackingEvent is an immutable, timestamped status record appended to an
// order's history. The sequence is append-only and arrival-ordered.
type TrackingEvent struct {
	Status    OrderStatus
	Message   string
	Timestamp time.Time
}

// OrderItem is one purchased line of an order. Only ReviewSubmitted mutates
// after creation, and only from false to true.
type OrderItem struct {
	ProductID       string
	Quantity        int
	Size            string
	Color           string
	ReviewSubmitted bool
}

// ShippingDetails is the delivery address snapshot captured at order time.
// It is a copy, not a live reference to the user's profile.
type ShippingDetails struct {
	Name       string
	Email      string
	Address    string
	City       string
	Country    string
	PostalCode string
	Contact    string
}

// Order captures an order header together with its line items and full
// tracking history. Status always equals the status of the most recently
// appended tracking event.
type Order struct {
	ID             string
	UserID         string
	Items          []OrderItem
	Shipping       ShippingDetails
	TotalAmount    int64
	Status         OrderStatus
	CourierPartner string
	TrackingNumber string
	Tracking       []TrackingEvent
	CreatedAt      time.Time
}

// LastTrackingEvent returns the most recently appended tracking event.
func (o Order) LastTrackingEvent() (TrackingEvent, bool) {
	if len(o.Tracking) == 0 {
		return TrackingEvent{}, false
	}
	return o.Tracking[len(o.Tracking)-1], true
}

// Review is a customer review bound to a single purchased line item. The
// (ProductID, UserID, OrderID, OrderItemIndex) tuple is globally unique.
type Review struct {
	ID             string
	ProductID      string
	UserID         string
	OrderID        string
	OrderItemIndex int
	Rating         int
	Comment        string
	CreatedAt      time.Time
}

// CartItem is a single entry in a user's cart.
type CartItem struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// Cart is a single document per user, replaced wholesale on update.
type Cart struct {
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductSummary carries the catalog fields resolved onto order and review
// reads for display. The catalog itself is owned elsewhere.
type ProductSummary struct {
	ID          string
	Title       string
	Price       int64
	Images      []string
	Discount    int64
	Category    string
	Subcategory string
}

// UserSummary carries the identity fields resolved onto admin and tracking
// views for display.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}
