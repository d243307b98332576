package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/threadcart/api/internal/services"
)

type stubCartService struct {
	getFunc     func(ctx context.Context, userID string) ([]services.CartItem, error)
	replaceFunc func(ctx context.Context, userID string, items []services.CartItem) ([]services.CartItem, error)
}

func (s *stubCartService) Get(ctx context.Context, userID string) ([]services.CartItem, error) {
	if s.getFunc == nil {
		return []services.CartItem{}, nil
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartService) Replace(ctx context.Context, userID string, items []services.CartItem) ([]services.CartItem, error) {
	if s.replaceFunc == nil {
		return items, nil
	}
	return s.replaceFunc(ctx, userID, items)
}

func TestCartHandlersGet(t *testing.T) {
	service := &stubCartService{
		getFunc: func(ctx context.Context, userID string) ([]services.CartItem, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return []services.CartItem{
				{ProductID: "prod-1", Quantity: 2, Size: "M"},
			}, nil
		},
	}

	handler := NewCartHandlers(service, nil)
	router := NewRouter(WithCartRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/user-1", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload cartResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", payload.UserID)
	}
	if len(payload.Items) != 1 || payload.Items[0].ProductID != "prod-1" || payload.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestCartHandlersGetEmptyCart(t *testing.T) {
	handler := NewCartHandlers(&stubCartService{}, nil)
	router := NewRouter(WithCartRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/user-1", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload cartResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Items) != 0 {
		t.Fatalf("expected empty items, got %+v", payload.Items)
	}
}

func TestCartHandlersReplace(t *testing.T) {
	var capturedUser string
	var capturedItems []services.CartItem
	service := &stubCartService{
		replaceFunc: func(ctx context.Context, userID string, items []services.CartItem) ([]services.CartItem, error) {
			capturedUser = userID
			capturedItems = items
			return items, nil
		},
	}

	handler := NewCartHandlers(service, nil)
	router := NewRouter(WithCartRoutes(handler.Routes))

	body := bytes.NewBufferString(`{"items":[{"productId":" prod-1 ","qty":2,"size":"M","color":"navy"}]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/user-1", body)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if capturedUser != "user-1" {
		t.Fatalf("unexpected user id %q", capturedUser)
	}
	if len(capturedItems) != 1 || capturedItems[0].ProductID != "prod-1" {
		t.Fatalf("expected trimmed items, got %+v", capturedItems)
	}

	var payload cartResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Color != "navy" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestCartHandlersReplaceInvalidItems(t *testing.T) {
	service := &stubCartService{
		replaceFunc: func(ctx context.Context, userID string, items []services.CartItem) ([]services.CartItem, error) {
			return nil, fmt.Errorf("%w: items[0] product id is required", services.ErrCartInvalidInput)
		},
	}
	handler := NewCartHandlers(service, nil)
	router := NewRouter(WithCartRoutes(handler.Routes))

	body := bytes.NewBufferString(`{"items":[{"qty":1}]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/user-1", body)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCartHandlersReplaceEmptyBody(t *testing.T) {
	handler := NewCartHandlers(&stubCartService{}, nil)
	router := NewRouter(WithCartRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/user-1", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
