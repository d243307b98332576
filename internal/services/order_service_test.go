package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/repositories"
)

func strPtr(v string) *string {
	return &v
}

type stubOrderRepository struct {
	insertFunc           func(ctx context.Context, order domain.Order) error
	findByIDForUserFunc  func(ctx context.Context, orderID, userID string) (domain.Order, error)
	appendTrackingFunc   func(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error)
	markItemReviewedFunc func(ctx context.Context, orderID string, itemIndex int) error
	listByUserFunc       func(ctx context.Context, userID string) ([]domain.Order, error)
	listAllFunc          func(ctx context.Context) ([]domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error) {
	if s.findByIDForUserFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDForUserFunc(ctx, orderID, userID)
}

func (s *stubOrderRepository) AppendTracking(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error) {
	if s.appendTrackingFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.appendTrackingFunc(ctx, orderID, event, courierPartner, trackingNumber)
}

func (s *stubOrderRepository) MarkItemReviewed(ctx context.Context, orderID string, itemIndex int) error {
	if s.markItemReviewedFunc == nil {
		return nil
	}
	return s.markItemReviewedFunc(ctx, orderID, itemIndex)
}

func (s *stubOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if s.listByUserFunc == nil {
		return nil, nil
	}
	return s.listByUserFunc(ctx, userID)
}

func (s *stubOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s.listAllFunc == nil {
		return nil, nil
	}
	return s.listAllFunc(ctx)
}

type stubCatalogRepository struct {
	findProductFunc      func(ctx context.Context, productID string) (domain.ProductSummary, error)
	productSummariesFunc func(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error)
}

func (s *stubCatalogRepository) FindProduct(ctx context.Context, productID string) (domain.ProductSummary, error) {
	if s.findProductFunc == nil {
		return domain.ProductSummary{ID: productID}, nil
	}
	return s.findProductFunc(ctx, productID)
}

func (s *stubCatalogRepository) ProductSummaries(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error) {
	if s.productSummariesFunc == nil {
		return map[string]domain.ProductSummary{}, nil
	}
	return s.productSummariesFunc(ctx, productIDs)
}

type stubIdentityRepository struct {
	findUserFunc      func(ctx context.Context, userID string) (domain.UserSummary, error)
	userSummariesFunc func(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error)
}

func (s *stubIdentityRepository) FindUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	if s.findUserFunc == nil {
		return domain.UserSummary{ID: userID}, nil
	}
	return s.findUserFunc(ctx, userID)
}

func (s *stubIdentityRepository) UserSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	if s.userSummariesFunc == nil {
		return map[string]domain.UserSummary{}, nil
	}
	return s.userSummariesFunc(ctx, userIDs)
}

type stubOrderEvents struct {
	events []OrderEvent
	err    error
}

func (s *stubOrderEvents) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	return "repository error"
}

func (e *repositoryErrorStub) IsNotFound() bool {
	return e.notFound
}

func (e *repositoryErrorStub) IsConflict() bool {
	return e.conflict
}

func (e *repositoryErrorStub) IsUnavailable() bool {
	return e.unavailable
}

var _ repositories.RepositoryError = (*repositoryErrorStub)(nil)

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepository{}
	}
	if deps.Catalog == nil {
		deps.Catalog = &stubCatalogRepository{}
	}
	if deps.Identity == nil {
		deps.Identity = &stubIdentityRepository{}
	}
	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing order service: %v", err)
	}
	return service
}

func TestOrderServicePlaceCreatesInitialTracking(t *testing.T) {
	now := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	var inserted domain.Order

	repo := &stubOrderRepository{
		insertFunc: func(ctx context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	events := &stubOrderEvents{}

	service := newTestOrderService(t, OrderServiceDeps{
		Orders:      repo,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "ord_test1" },
		Events:      events,
	})

	order, err := service.Place(context.Background(), PlaceOrderCommand{
		UserID: " user-1 ",
		Items: []OrderItem{
			{ProductID: " prod-1 ", Quantity: 2, Size: "M", Color: "navy"},
		},
		Shipping: ShippingDetails{
			Name:    " Ada Lovelace ",
			Email:   "ada@example.com",
			Address: "1 Analytical Way",
			City:    "London",
		},
		TotalAmount: 4200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.ID != "ord_test1" {
		t.Fatalf("expected generated id, got %q", order.ID)
	}
	if order.UserID != "user-1" {
		t.Fatalf("expected trimmed user id, got %q", order.UserID)
	}
	if order.Status != domain.OrderStatusPlaced {
		t.Fatalf("expected initial status, got %q", order.Status)
	}
	if len(order.Tracking) != 1 {
		t.Fatalf("expected one tracking event, got %d", len(order.Tracking))
	}
	first := order.Tracking[0]
	if first.Status != domain.OrderStatusPlaced {
		t.Fatalf("expected tracking status %q, got %q", domain.OrderStatusPlaced, first.Status)
	}
	if first.Message != "Your order has been placed." {
		t.Fatalf("unexpected initial message %q", first.Message)
	}
	if !first.Timestamp.Equal(now) {
		t.Fatalf("expected tracking timestamp %v, got %v", now, first.Timestamp)
	}
	if inserted.Shipping.Name != "Ada Lovelace" {
		t.Fatalf("expected trimmed shipping name, got %q", inserted.Shipping.Name)
	}
	if inserted.Items[0].ProductID != "prod-1" {
		t.Fatalf("expected trimmed product id, got %q", inserted.Items[0].ProductID)
	}
	if inserted.Items[0].ReviewSubmitted {
		t.Fatalf("expected review flag to start false")
	}

	if len(events.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(events.events))
	}
	if events.events[0].Type != "order.placed" {
		t.Fatalf("unexpected event type %q", events.events[0].Type)
	}
}

func TestOrderServicePlaceValidation(t *testing.T) {
	service := newTestOrderService(t, OrderServiceDeps{})
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  PlaceOrderCommand
	}{
		{"missing user", PlaceOrderCommand{Items: []OrderItem{{ProductID: "p", Quantity: 1}}}},
		{"no items", PlaceOrderCommand{UserID: "user-1"}},
		{"missing product", PlaceOrderCommand{UserID: "user-1", Items: []OrderItem{{Quantity: 1}}}},
		{"zero quantity", PlaceOrderCommand{UserID: "user-1", Items: []OrderItem{{ProductID: "p", Quantity: 0}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Place(ctx, tc.cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestOrderServicePlaceUnknownUser(t *testing.T) {
	identity := &stubIdentityRepository{
		findUserFunc: func(ctx context.Context, userID string) (domain.UserSummary, error) {
			return domain.UserSummary{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Identity: identity})

	_, err := service.Place(context.Background(), PlaceOrderCommand{
		UserID: "ghost",
		Items:  []OrderItem{{ProductID: "prod-1", Quantity: 1}},
	})
	if !errors.Is(err, ErrOrderUserNotFound) {
		t.Fatalf("expected ErrOrderUserNotFound, got %v", err)
	}
}

func TestOrderServiceAppendTrackingUpdatesStatus(t *testing.T) {
	now := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)
	var (
		gotEvent   domain.TrackingEvent
		gotCourier *string
		gotNumber  *string
	)

	repo := &stubOrderRepository{
		appendTrackingFunc: func(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error) {
			gotEvent = event
			gotCourier = courierPartner
			gotNumber = trackingNumber
			return domain.Order{
				ID:             orderID,
				UserID:         "user-1",
				Items:          []domain.OrderItem{{ProductID: "prod-1", Quantity: 1}},
				Status:         event.Status,
				CourierPartner: "Speedy",
				TrackingNumber: "TRK-9",
				Tracking: []domain.TrackingEvent{
					{Status: domain.OrderStatusPlaced, Timestamp: now.Add(-time.Hour)},
					event,
				},
			}, nil
		},
	}
	catalog := &stubCatalogRepository{
		productSummariesFunc: func(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error) {
			return map[string]domain.ProductSummary{
				"prod-1": {ID: "prod-1", Title: "Linen Shirt", Price: 2100},
			}, nil
		},
	}
	identity := &stubIdentityRepository{
		userSummariesFunc: func(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
			return map[string]domain.UserSummary{
				"user-1": {ID: "user-1", Name: "Ada"},
			}, nil
		},
	}
	events := &stubOrderEvents{}

	service := newTestOrderService(t, OrderServiceDeps{
		Orders:   repo,
		Catalog:  catalog,
		Identity: identity,
		Clock:    func() time.Time { return now },
		Events:   events,
	})

	detail, err := service.AppendTracking(context.Background(), AppendTrackingCommand{
		OrderID:        "ord-1",
		Status:         "Shipped",
		Message:        "  left the warehouse  ",
		CourierPartner: strPtr(" Speedy "),
		TrackingNumber: strPtr("TRK-9"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotEvent.Status != domain.OrderStatusShipped {
		t.Fatalf("expected parsed status, got %q", gotEvent.Status)
	}
	if gotEvent.Message != "left the warehouse" {
		t.Fatalf("expected sanitised message, got %q", gotEvent.Message)
	}
	if !gotEvent.Timestamp.Equal(now) {
		t.Fatalf("expected default timestamp %v, got %v", now, gotEvent.Timestamp)
	}
	if gotCourier == nil || *gotCourier != "Speedy" {
		t.Fatalf("expected trimmed courier pointer, got %v", gotCourier)
	}
	if gotNumber == nil || *gotNumber != "TRK-9" {
		t.Fatalf("expected tracking number pointer, got %v", gotNumber)
	}
	if detail.Order.Status != domain.OrderStatusShipped {
		t.Fatalf("expected shipped status, got %q", detail.Order.Status)
	}
	if detail.Products["prod-1"].Title != "Linen Shirt" {
		t.Fatalf("expected product summary resolved, got %+v", detail.Products)
	}
	if detail.User == nil || detail.User.Name != "Ada" {
		t.Fatalf("expected user summary resolved, got %+v", detail.User)
	}
	if len(events.events) != 1 || events.events[0].Type != "order.tracking.appended" {
		t.Fatalf("expected tracking event published, got %+v", events.events)
	}
}

func TestOrderServiceAppendTrackingBackdates(t *testing.T) {
	now := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)
	backdated := now.Add(-48 * time.Hour)
	var gotEvent domain.TrackingEvent

	repo := &stubOrderRepository{
		appendTrackingFunc: func(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error) {
			gotEvent = event
			return domain.Order{ID: orderID, Status: event.Status, Tracking: []domain.TrackingEvent{event}}, nil
		},
	}

	service := newTestOrderService(t, OrderServiceDeps{
		Orders: repo,
		Clock:  func() time.Time { return now },
	})

	_, err := service.AppendTracking(context.Background(), AppendTrackingCommand{
		OrderID:   "ord-1",
		Status:    "Delivered",
		Timestamp: &backdated,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotEvent.Timestamp.Equal(backdated) {
		t.Fatalf("expected backdated timestamp %v, got %v", backdated, gotEvent.Timestamp)
	}
}

func TestOrderServiceAppendTrackingRejectsUnknownStatus(t *testing.T) {
	service := newTestOrderService(t, OrderServiceDeps{})

	_, err := service.AppendTracking(context.Background(), AppendTrackingCommand{
		OrderID: "ord-1",
		Status:  "Teleported",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "Teleported") {
		t.Fatalf("expected offending status in error, got %v", err)
	}
}

func TestOrderServiceAppendTrackingMissingOrder(t *testing.T) {
	repo := &stubOrderRepository{
		appendTrackingFunc: func(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error) {
			return domain.Order{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: repo})

	_, err := service.AppendTracking(context.Background(), AppendTrackingCommand{
		OrderID: "missing",
		Status:  "Shipped",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceListByUserResolvesProducts(t *testing.T) {
	repo := &stubOrderRepository{
		listByUserFunc: func(ctx context.Context, userID string) ([]domain.Order, error) {
			return []domain.Order{
				{ID: "ord-2", UserID: userID, Items: []domain.OrderItem{{ProductID: "prod-2", Quantity: 1}}},
				{ID: "ord-1", UserID: userID, Items: []domain.OrderItem{{ProductID: "prod-1", Quantity: 1}}},
			}, nil
		},
	}
	var requestedIDs []string
	catalog := &stubCatalogRepository{
		productSummariesFunc: func(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error) {
			requestedIDs = productIDs
			return map[string]domain.ProductSummary{
				"prod-1": {ID: "prod-1", Title: "Shirt"},
				"prod-2": {ID: "prod-2", Title: "Scarf"},
			}, nil
		},
	}
	identity := &stubIdentityRepository{
		userSummariesFunc: func(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
			t.Fatal("user summaries should not be resolved for user-scoped listing")
			return nil, nil
		},
	}

	service := newTestOrderService(t, OrderServiceDeps{Orders: repo, Catalog: catalog, Identity: identity})

	details, err := service.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(details))
	}
	if len(requestedIDs) != 2 {
		t.Fatalf("expected deduplicated product ids, got %v", requestedIDs)
	}
	if details[0].User != nil {
		t.Fatalf("expected no user summary on user-scoped listing")
	}
	if details[1].Products["prod-1"].Title != "Shirt" {
		t.Fatalf("expected product resolved, got %+v", details[1].Products)
	}
}

func TestOrderServiceListAllResolvesUsers(t *testing.T) {
	repo := &stubOrderRepository{
		listAllFunc: func(ctx context.Context) ([]domain.Order, error) {
			return []domain.Order{
				{ID: "ord-1", UserID: "user-1", Items: []domain.OrderItem{{ProductID: "prod-1", Quantity: 1}}},
				{ID: "ord-2", UserID: "user-2", Items: []domain.OrderItem{{ProductID: "prod-1", Quantity: 3}}},
			}, nil
		},
	}
	catalog := &stubCatalogRepository{
		productSummariesFunc: func(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error) {
			return map[string]domain.ProductSummary{"prod-1": {ID: "prod-1", Title: "Shirt"}}, nil
		},
	}
	identity := &stubIdentityRepository{
		userSummariesFunc: func(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
			if len(userIDs) != 2 {
				t.Fatalf("expected 2 user ids, got %v", userIDs)
			}
			return map[string]domain.UserSummary{
				"user-1": {ID: "user-1", Name: "Ada"},
				"user-2": {ID: "user-2", Name: "Grace"},
			}, nil
		},
	}

	service := newTestOrderService(t, OrderServiceDeps{Orders: repo, Catalog: catalog, Identity: identity})

	details, err := service.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(details))
	}
	if details[0].User == nil || details[0].User.Name != "Ada" {
		t.Fatalf("expected user resolved on admin listing, got %+v", details[0].User)
	}
	if details[1].User == nil || details[1].User.Name != "Grace" {
		t.Fatalf("expected user resolved on admin listing, got %+v", details[1].User)
	}
}

func TestOrderServicePublishFailureDoesNotFailPlacement(t *testing.T) {
	events := &stubOrderEvents{err: errors.New("broker down")}
	var logged []string

	service := newTestOrderService(t, OrderServiceDeps{
		Events: events,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			logged = append(logged, event)
		},
	})

	_, err := service.Place(context.Background(), PlaceOrderCommand{
		UserID: "user-1",
		Items:  []OrderItem{{ProductID: "prod-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logged) != 1 || logged[0] != "order.event.publish.failed" {
		t.Fatalf("expected publish failure logged, got %v", logged)
	}
}
