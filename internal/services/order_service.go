package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/repositories"
)

const (
	orderIDPrefix = "ord_"

	orderEventPlaced           = "order.placed"
	orderEventTrackingAppended = "order.tracking.appended"

	initialTrackingMessage = "Your order has been placed."
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderUserNotFound indicates the owning user could not be resolved.
	ErrOrderUserNotFound = errors.New("order: user not found")
	// ErrOrderConflict indicates a duplicate insert or conflicting update.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order lifecycle events.
type OrderEvent struct {
	Type       string
	OrderID    string
	UserID     string
	Status     string
	OccurredAt time.Time
	Metadata   map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Identity    repositories.IdentityRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	catalog  repositories.CatalogRepository
	identity repositories.IdentityRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
	events   OrderEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("order service: identity repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = strings.TrimSpace
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		identity: deps.Identity,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		sanitize: sanitize,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *orderService) Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return Order{}, fmt.Errorf("%w: items[%d] product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: items[%d] quantity must be at least 1", ErrOrderInvalidInput, i)
		}
		items = append(items, domain.OrderItem{
			ProductID:       productID,
			Quantity:        item.Quantity,
			Size:            strings.TrimSpace(item.Size),
			Color:           strings.TrimSpace(item.Color),
			ReviewSubmitted: false,
		})
	}

	if _, err := s.identity.FindUser(ctx, userID); err != nil {
		return Order{}, s.mapUserError(err)
	}

	now := s.now()
	order := Order{
		ID:          s.newID(),
		UserID:      userID,
		Items:       items,
		Shipping:    trimShipping(cmd.Shipping),
		TotalAmount: cmd.TotalAmount,
		Status:      domain.OrderStatusPlaced,
		Tracking: []domain.TrackingEvent{{
			Status:    domain.OrderStatusPlaced,
			Message:   initialTrackingMessage,
			Timestamp: now,
		}},
		CreatedAt: now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventPlaced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		OccurredAt: now,
		Metadata: map[string]any{
			"items":       len(order.Items),
			"totalAmount": order.TotalAmount,
		},
	})

	return order, nil
}

func (s *orderService) AppendTracking(ctx context.Context, cmd AppendTrackingCommand) (OrderDetail, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderDetail{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	raw := strings.TrimSpace(cmd.Status)
	if raw == "" {
		return OrderDetail{}, fmt.Errorf("%w: status is required", ErrOrderInvalidInput)
	}
	status, ok := domain.ParseOrderStatus(raw)
	if !ok {
		return OrderDetail{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, raw)
	}

	timestamp := s.now()
	if cmd.Timestamp != nil && !cmd.Timestamp.IsZero() {
		// Callers may backdate events; arrival order at the ledger still
		// governs the position in the history.
		timestamp = cmd.Timestamp.UTC()
	}

	event := domain.TrackingEvent{
		Status:    status,
		Message:   s.sanitize(cmd.Message),
		Timestamp: timestamp,
	}

	order, err := s.orders.AppendTracking(ctx, orderID, event, trimOptional(cmd.CourierPartner), trimOptional(cmd.TrackingNumber))
	if err != nil {
		return OrderDetail{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventTrackingAppended,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		OccurredAt: timestamp,
		Metadata: map[string]any{
			"trackingEvents": len(order.Tracking),
		},
	})

	detail, err := s.resolveDetail(ctx, order, true)
	if err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID string) ([]OrderDetail, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return s.resolveDetails(ctx, orders, false)
}

func (s *orderService) ListAll(ctx context.Context) ([]OrderDetail, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return s.resolveDetails(ctx, orders, true)
}

func (s *orderService) resolveDetails(ctx context.Context, orders []domain.Order, withUsers bool) ([]OrderDetail, error) {
	productIDs := make([]string, 0, len(orders))
	userIDs := make([]string, 0, len(orders))
	seenProducts := map[string]struct{}{}
	seenUsers := map[string]struct{}{}
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seenProducts[item.ProductID]; !ok {
				seenProducts[item.ProductID] = struct{}{}
				productIDs = append(productIDs, item.ProductID)
			}
		}
		if _, ok := seenUsers[order.UserID]; !ok {
			seenUsers[order.UserID] = struct{}{}
			userIDs = append(userIDs, order.UserID)
		}
	}

	products, err := s.catalog.ProductSummaries(ctx, productIDs)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	var users map[string]domain.UserSummary
	if withUsers {
		users, err = s.identity.UserSummaries(ctx, userIDs)
		if err != nil {
			return nil, s.mapRepositoryError(err)
		}
	}

	details := make([]OrderDetail, 0, len(orders))
	for _, order := range orders {
		detail := OrderDetail{
			Order:    order,
			Products: selectProducts(products, order),
		}
		if withUsers {
			if user, ok := users[order.UserID]; ok {
				detail.User = &user
			}
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *orderService) resolveDetail(ctx context.Context, order domain.Order, withUser bool) (OrderDetail, error) {
	details, err := s.resolveDetails(ctx, []domain.Order{order}, withUser)
	if err != nil {
		return OrderDetail{}, err
	}
	return details[0], nil
}

func selectProducts(all map[string]domain.ProductSummary, order domain.Order) map[string]domain.ProductSummary {
	out := make(map[string]domain.ProductSummary, len(order.Items))
	for _, item := range order.Items {
		if summary, ok := all[item.ProductID]; ok {
			out[item.ProductID] = summary
		}
	}
	return out
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}

func (s *orderService) mapUserError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrOrderUserNotFound, err)
	}
	return err
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func trimShipping(shipping ShippingDetails) ShippingDetails {
	return ShippingDetails{
		Name:       strings.TrimSpace(shipping.Name),
		Email:      strings.TrimSpace(shipping.Email),
		Address:    strings.TrimSpace(shipping.Address),
		City:       strings.TrimSpace(shipping.City),
		Country:    strings.TrimSpace(shipping.Country),
		PostalCode: strings.TrimSpace(shipping.PostalCode),
		Contact:    strings.TrimSpace(shipping.Contact),
	}
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
