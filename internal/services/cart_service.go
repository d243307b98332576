package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
)

// CartServiceDeps bundles collaborators required to construct a CartService.
type CartServiceDeps struct {
	Carts  repositories.CartRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts  repositories.CartRepository
	logger func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:  deps.Carts,
		logger: logger,
	}, nil
}

func (s *cartService) Get(ctx context.Context, userID string) ([]CartItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// An absent cart reads as empty rather than missing.
			return []CartItem{}, nil
		}
		return nil, err
	}
	return ensureItems(cart.Items), nil
}

func (s *cartService) Replace(ctx context.Context, userID string, items []CartItem) ([]CartItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	normalized := make([]domain.CartItem, 0, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: items[%d] product id is required", ErrCartInvalidInput, i)
		}
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		normalized = append(normalized, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			Size:      strings.TrimSpace(item.Size),
			Color:     strings.TrimSpace(item.Color),
		})
	}

	cart, err := s.carts.Replace(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}

	s.logger(ctx, "cart.replaced", map[string]any{
		"user":  userID,
		"items": len(cart.Items),
	})

	return ensureItems(cart.Items), nil
}

func ensureItems(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return []domain.CartItem{}
	}
	return items
}
