package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/threadcart/api/internal/domain"
)

type stubCartRepository struct {
	getFunc     func(ctx context.Context, userID string) (domain.Cart, error)
	replaceFunc func(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc == nil {
		return domain.Cart{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartRepository) Replace(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if s.replaceFunc == nil {
		return domain.Cart{UserID: userID, Items: items}, nil
	}
	return s.replaceFunc(ctx, userID, items)
}

func TestCartServiceGetReturnsItems(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return domain.Cart{
				UserID:    userID,
				Items:     []domain.CartItem{{ProductID: "prod-1", Quantity: 2, Size: "M"}},
				UpdatedAt: now,
			}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{Carts: repo})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	items, err := service.Get(context.Background(), " user-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ProductID != "prod-1" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestCartServiceGetMissingCartIsEmpty(t *testing.T) {
	service, err := NewCartService(CartServiceDeps{Carts: &stubCartRepository{}})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	items, err := service.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected missing cart to read as empty, got %v", err)
	}
	if items == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}

func TestCartServiceGetRequiresUser(t *testing.T) {
	service, err := NewCartService(CartServiceDeps{Carts: &stubCartRepository{}})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	if _, err := service.Get(context.Background(), "  "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceReplaceNormalisesItems(t *testing.T) {
	var replaced []domain.CartItem
	repo := &stubCartRepository{
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{UserID: userID, Items: items}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{Carts: repo})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	items, err := service.Replace(context.Background(), "user-1", []CartItem{
		{ProductID: " prod-1 ", Quantity: 0, Size: "L"},
		{ProductID: "prod-2", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 2 {
		t.Fatalf("expected 2 items persisted, got %d", len(replaced))
	}
	if replaced[0].ProductID != "prod-1" {
		t.Fatalf("expected trimmed product id, got %q", replaced[0].ProductID)
	}
	if replaced[0].Quantity != 1 {
		t.Fatalf("expected quantity floor of 1, got %d", replaced[0].Quantity)
	}
	if items[1].Quantity != 3 {
		t.Fatalf("expected quantity preserved, got %d", items[1].Quantity)
	}
}

func TestCartServiceReplaceEmptyClearsCart(t *testing.T) {
	var replaced []domain.CartItem
	repo := &stubCartRepository{
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{UserID: userID, Items: items}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{Carts: repo})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	items, err := service.Replace(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 0 {
		t.Fatalf("expected wholesale clear, got %+v", replaced)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty slice back, got %+v", items)
	}
}

func TestCartServiceReplaceRejectsMissingProduct(t *testing.T) {
	service, err := NewCartService(CartServiceDeps{Carts: &stubCartRepository{}})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	_, err = service.Replace(context.Background(), "user-1", []CartItem{{Quantity: 1}})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}
