package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/threadcart/api/internal/domain"
	pfirestore "github.com/threadcart/api/internal/platform/firestore"
	"github.com/threadcart/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders within Firestore. Tracking appends and
// line-item flag updates run inside transactions so concurrent writers
// serialise at the store without application-level locks.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, opts ...Option) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, resolveCollection(orderCollection, opts)),
	}, nil
}

// Insert creates the order document, failing when the ID is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Create(ctx, order.ID, encodeOrder(order))
}

func (r *OrderRepository) findByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByIDForUser loads an order only when owned by userID. An ownership
// mismatch reads the same as a missing document.
func (r *OrderRepository) FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error) {
	order, err := r.findByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != strings.TrimSpace(userID) {
		return domain.Order{}, pfirestore.NotFoundError("orders.get", fmt.Errorf("order %s not found for user", orderID))
	}
	return order, nil
}

// AppendTracking appends one tracking event and applies the denormalised
// status and optional courier fields in a single transaction. Nil courier
// pointers leave stored values untouched; arrival order at the transaction
// determines the event's position in the history.
func (r *OrderRepository) AppendTracking(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}

	var updated orderDocument
	err = r.base.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}

		doc.Tracking = append(doc.Tracking, trackingEventDocument{
			Status:    string(event.Status),
			Message:   event.Message,
			Timestamp: event.Timestamp,
		})
		doc.Status = string(event.Status)

		updates := []firestore.Update{
			{Path: "tracking", Value: doc.Tracking},
			{Path: "status", Value: doc.Status},
		}
		if courierPartner != nil {
			doc.CourierPartner = *courierPartner
			updates = append(updates, firestore.Update{Path: "courierPartner", Value: doc.CourierPartner})
		}
		if trackingNumber != nil {
			doc.TrackingNumber = *trackingNumber
			updates = append(updates, firestore.Update{Path: "trackingNumber", Value: doc.TrackingNumber})
		}

		updated = doc
		return tx.Update(ref, updates)
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.tracking", err)
	}
	return decodeOrder(ref.ID, updated), nil
}

// MarkItemReviewed flips the reviewSubmitted flag of one line item. The flag
// is monotonic: an already-set flag is left untouched.
func (r *OrderRepository) MarkItemReviewed(ctx context.Context, orderID string, itemIndex int) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}

	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}

	err = r.base.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		if itemIndex < 0 || itemIndex >= len(doc.Items) {
			return pfirestore.ConflictError("orders.review_flag", fmt.Errorf("item index %d out of range", itemIndex))
		}
		if doc.Items[itemIndex].ReviewSubmitted {
			return nil
		}
		doc.Items[itemIndex].ReviewSubmitted = true
		return tx.Update(ref, []firestore.Update{
			{Path: "items", Value: doc.Items},
		})
	})
	return pfirestore.WrapError("orders.review_flag", err)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("userId", "==", strings.TrimSpace(userID)).
			OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

func decodeOrders(docs []pfirestore.Document[orderDocument]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			Size:            item.Size,
			Color:           item.Color,
			ReviewSubmitted: item.ReviewSubmitted,
		})
	}
	tracking := make([]trackingEventDocument, 0, len(order.Tracking))
	for _, event := range order.Tracking {
		tracking = append(tracking, trackingEventDocument{
			Status:    string(event.Status),
			Message:   event.Message,
			Timestamp: event.Timestamp,
		})
	}
	return orderDocument{
		UserID: order.UserID,
		Items:  items,
		Shipping: shippingDocument{
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
		CreatedAt:      order.CreatedAt,
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			Size:            item.Size,
			Color:           item.Color,
			ReviewSubmitted: item.ReviewSubmitted,
		})
	}
	tracking := make([]domain.TrackingEvent, 0, len(doc.Tracking))
	for _, event := range doc.Tracking {
		tracking = append(tracking, domain.TrackingEvent{
			Status:    domain.OrderStatus(event.Status),
			Message:   event.Message,
			Timestamp: event.Timestamp,
		})
	}
	return domain.Order{
		ID:     id,
		UserID: doc.UserID,
		Items:  items,
		Shipping: domain.ShippingDetails{
			Name:       doc.Shipping.Name,
			Email:      doc.Shipping.Email,
			Address:    doc.Shipping.Address,
			City:       doc.Shipping.City,
			Country:    doc.Shipping.Country,
			PostalCode: doc.Shipping.PostalCode,
			Contact:    doc.Shipping.Contact,
		},
		TotalAmount:    doc.TotalAmount,
		Status:         domain.OrderStatus(doc.Status),
		CourierPartner: doc.CourierPartner,
		TrackingNumber: doc.TrackingNumber,
		Tracking:       tracking,
		CreatedAt:      doc.CreatedAt,
	}
}

type orderDocument struct {
	UserID         string                  `firestore:"userId"`
	Items          []orderItemDocument     `firestore:"items"`
	Shipping       shippingDocument        `firestore:"shipping"`
	TotalAmount    int64                   `firestore:"totalAmount"`
	Status         string                  `firestore:"status"`
	CourierPartner string                  `firestore:"courierPartner"`
	TrackingNumber string                  `firestore:"trackingNumber"`
	Tracking       []trackingEventDocument `firestore:"tracking"`
	CreatedAt      time.Time               `firestore:"createdAt"`
}

type orderItemDocument struct {
	ProductID       string `firestore:"productId"`
	Quantity        int    `firestore:"qty"`
	Size            string `firestore:"size,omitempty"`
	Color           string `firestore:"color,omitempty"`
	ReviewSubmitted bool   `firestore:"reviewSubmitted"`
}

type shippingDocument struct {
	Name       string `firestore:"name,omitempty"`
	Email      string `firestore:"email,omitempty"`
	Address    string `firestore:"address,omitempty"`
	City       string `firestore:"city,omitempty"`
	Country    string `firestore:"country,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Contact    string `firestore:"contact,omitempty"`
}

type trackingEventDocument struct {
	Status    string    `firestore:"status"`
	Message   string    `firestore:"message"`
	Timestamp time.Time `firestore:"timestamp"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
