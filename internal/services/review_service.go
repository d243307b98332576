package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	domain "github.com/threadcart/api/internal/domain"
	"github.com/threadcart/api/internal/repositories"
)

const reviewEventCreated = "review.created"

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates a referenced entity is absent or not owned
	// by the reviewer. Ownership mismatches are reported identically to
	// missing orders so existence does not leak across accounts.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewNotEligible is returned when the order exists but has not
	// reached the Delivered state.
	ErrReviewNotEligible = errors.New("review: order not delivered")
	// ErrReviewConflict signals a duplicate submission for a line item.
	ErrReviewConflict = errors.New("review: conflict")
)

// ReviewEventPublisher emits review lifecycle events to downstream consumers.
type ReviewEventPublisher interface {
	PublishReviewEvent(ctx context.Context, event ReviewEvent) error
}

// ReviewEvent captures metadata for review lifecycle events.
type ReviewEvent struct {
	Type       string
	ReviewID   string
	ProductID  string
	OrderID    string
	Rating     int
	OccurredAt time.Time
}

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews   repositories.ReviewRepository
	Orders    repositories.OrderRepository
	Catalog   repositories.CatalogRepository
	Identity  repositories.IdentityRepository
	Clock     func() time.Time
	Sanitizer func(string) string
	Events    ReviewEventPublisher
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	orders   repositories.OrderRepository
	catalog  repositories.CatalogRepository
	identity repositories.IdentityRepository
	clock    func() time.Time
	sanitize func(string) string
	events   ReviewEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("review service: catalog repository is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("review service: identity repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = sanitizeReviewText
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:  deps.Reviews,
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		identity: deps.Identity,
		clock: func() time.Time {
			return clock().UTC()
		},
		sanitize: sanitize,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *reviewService) Submit(ctx context.Context, cmd SubmitReviewCommand) (ReviewDetail, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	userID := strings.TrimSpace(cmd.UserID)
	orderID := strings.TrimSpace(cmd.OrderID)

	if productID == "" {
		return ReviewDetail{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	if userID == "" {
		return ReviewDetail{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	if orderID == "" {
		return ReviewDetail{}, fmt.Errorf("%w: order id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return ReviewDetail{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}

	if _, err := s.catalog.FindProduct(ctx, productID); err != nil {
		return ReviewDetail{}, s.mapLookupError(err, "product not found")
	}

	// Ownership is folded into the lookup: a mismatched owner reads the
	// same as a missing order.
	order, err := s.orders.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		return ReviewDetail{}, s.mapLookupError(err, "order not found for this user")
	}

	if order.Status != domain.OrderStatusDelivered {
		return ReviewDetail{}, fmt.Errorf("%w: cannot review before delivery", ErrReviewNotEligible)
	}

	if cmd.OrderItemIndex < 0 || cmd.OrderItemIndex >= len(order.Items) {
		return ReviewDetail{}, fmt.Errorf("%w: order item index %d out of range", ErrReviewInvalidInput, cmd.OrderItemIndex)
	}
	if order.Items[cmd.OrderItemIndex].ReviewSubmitted {
		return ReviewDetail{}, fmt.Errorf("%w: item already reviewed", ErrReviewConflict)
	}

	key := repositories.ReviewKey{
		ProductID:      productID,
		UserID:         userID,
		OrderID:        orderID,
		OrderItemIndex: cmd.OrderItemIndex,
	}
	if err := s.ensureNoExistingReview(ctx, key); err != nil {
		return ReviewDetail{}, err
	}

	now := s.now()
	review := domain.Review{
		ProductID:      productID,
		UserID:         userID,
		OrderID:        orderID,
		OrderItemIndex: cmd.OrderItemIndex,
		Rating:         cmd.Rating,
		Comment:        s.sanitize(cmd.Comment),
		CreatedAt:      now,
	}

	// The insert is the authoritative duplicate guard: the storage layer
	// rejects a second review for the same tuple even when two submissions
	// race past the checks above.
	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		return ReviewDetail{}, s.mapReviewError(err)
	}

	if err := s.orders.MarkItemReviewed(ctx, orderID, cmd.OrderItemIndex); err != nil {
		// The review is already persisted; the unflagged line item is a
		// known inconsistency that a retry cannot turn into a duplicate.
		s.logger(ctx, "review.order_flag.failed", map[string]any{
			"order":  orderID,
			"item":   cmd.OrderItemIndex,
			"review": created.ID,
			"error":  err.Error(),
		})
		return ReviewDetail{}, s.mapReviewError(err)
	}

	s.publishEvent(ctx, ReviewEvent{
		Type:       reviewEventCreated,
		ReviewID:   created.ID,
		ProductID:  created.ProductID,
		OrderID:    created.OrderID,
		Rating:     created.Rating,
		OccurredAt: now,
	})

	return ReviewDetail{
		Review:       created,
		ReviewerName: s.reviewerName(ctx, userID),
	}, nil
}

func (s *reviewService) ListByProduct(ctx context.Context, productID string) ([]ReviewDetail, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}

	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.mapReviewError(err)
	}

	userIDs := make([]string, 0, len(reviews))
	seen := map[string]struct{}{}
	for _, review := range reviews {
		if _, ok := seen[review.UserID]; !ok {
			seen[review.UserID] = struct{}{}
			userIDs = append(userIDs, review.UserID)
		}
	}

	users, err := s.identity.UserSummaries(ctx, userIDs)
	if err != nil {
		return nil, s.mapReviewError(err)
	}

	details := make([]ReviewDetail, 0, len(reviews))
	for _, review := range reviews {
		details = append(details, ReviewDetail{
			Review:       review,
			ReviewerName: users[review.UserID].Name,
		})
	}
	return details, nil
}

func (s *reviewService) ensureNoExistingReview(ctx context.Context, key repositories.ReviewKey) error {
	_, err := s.reviews.FindByKey(ctx, key)
	if err == nil {
		return fmt.Errorf("%w: review already exists", ErrReviewConflict)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return nil
	}
	return s.mapReviewError(err)
}

func (s *reviewService) reviewerName(ctx context.Context, userID string) string {
	user, err := s.identity.FindUser(ctx, userID)
	if err != nil {
		s.logger(ctx, "review.reviewer_lookup.failed", map[string]any{
			"user":  userID,
			"error": err.Error(),
		})
		return ""
	}
	return user.Name
}

func (s *reviewService) publishEvent(ctx context.Context, event ReviewEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReviewEvent(ctx, event); err != nil {
		s.logger(ctx, "review.event.publish.failed", map[string]any{
			"type":   event.Type,
			"review": event.ReviewID,
			"error":  err.Error(),
		})
	}
}

func (s *reviewService) mapReviewError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReviewConflict, err)
		}
	}
	return err
}

func (s *reviewService) mapLookupError(err error, message string) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, message)
	}
	return err
}

func (s *reviewService) now() time.Time {
	return s.clock()
}

// sanitizeReviewText trims whitespace, strips control characters, and
// normalises spacing while preserving intentional newlines.
func sanitizeReviewText(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		line = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && r != '\n' {
				return ' '
			}
			return r
		}, line)
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
