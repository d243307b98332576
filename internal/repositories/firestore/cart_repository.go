package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/threadcart/api/internal/domain"
	pfirestore "github.com/threadcart/api/internal/platform/firestore"
	"github.com/threadcart/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists one cart document per user, keyed by user ID and
// replaced wholesale on update.
type CartRepository struct {
	base  *pfirestore.BaseRepository[cartDocument]
	clock func() time.Time
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider, opts ...Option) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:  pfirestore.NewBaseRepository[cartDocument](provider, resolveCollection(cartCollection, opts)),
		clock: time.Now,
	}, nil
}

// Get loads the cart for the given user ID.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(doc), nil
}

// Replace overwrites the user's cart items. The document is created when
// absent: last writer replaces everything.
func (r *CartRepository) Replace(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := r.clock().UTC()
	doc := cartDocument{
		Items:     encodeCartItems(items),
		UpdatedAt: now,
	}
	if err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.Cart{}, err
	}

	return domain.Cart{
		UserID:    uid,
		Items:     decodeCartItems(doc.Items),
		UpdatedAt: now,
	}, nil
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	out := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return out
}

func decodeCartItems(items []cartItemDocument) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return out
}

func decodeCart(doc pfirestore.Document[cartDocument]) domain.Cart {
	cart := domain.Cart{
		UserID:    doc.ID,
		Items:     decodeCartItems(doc.Data.Items),
		CreatedAt: doc.CreateTime,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.UpdateTime
	}
	return cart
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"qty"`
	Size      string `firestore:"size,omitempty"`
	Color     string `firestore:"color,omitempty"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
