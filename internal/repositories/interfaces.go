package repositories

import (
	"context"

	domain "github.com/threadcart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ReviewKey identifies a single review by the tuple that must be globally
// unique: one review per purchased line item per reviewer.
type ReviewKey struct {
	ProductID      string
	UserID         string
	OrderID        string
	OrderItemIndex int
}

// OrderRepository owns Order documents: line items, shipping snapshot,
// current status, and the append-only tracking history.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// FindByIDForUser resolves an order only when it is owned by userID. A
	// mismatched owner is indistinguishable from a missing order so that
	// order existence does not leak across accounts.
	FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error)
	// AppendTracking atomically appends one tracking event, updates the
	// denormalised status, and applies the optional courier fields. Nil
	// courier pointers leave the stored values untouched.
	AppendTracking(ctx context.Context, orderID string, event domain.TrackingEvent, courierPartner, trackingNumber *string) (domain.Order, error)
	// MarkItemReviewed flips items[itemIndex].reviewSubmitted to true. The
	// flag never transitions back to false.
	MarkItemReviewed(ctx context.Context, orderID string, itemIndex int) error
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
}

// ReviewRepository owns Review documents. Insert must fail with a conflict
// RepositoryError when a review for the same key already exists; this is the
// authoritative duplicate guard under concurrent submissions.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByKey(ctx context.Context, key ReviewKey) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// CartRepository stores a single cart document per user, replaced wholesale
// on update.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Replace(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

// CatalogRepository exposes read-only product lookups. The catalog itself is
// an external collaborator and is not managed here.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.ProductSummary, error)
	ProductSummaries(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error)
}

// IdentityRepository exposes read-only user lookups. Credentials and profile
// management are external collaborators and are not managed here.
type IdentityRepository interface {
	FindUser(ctx context.Context, userID string) (domain.UserSummary, error)
	UserSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error)
}
