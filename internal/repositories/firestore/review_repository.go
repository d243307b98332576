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

const reviewCollection = "reviews"

// ReviewRepository persists reviews within Firestore. The document ID is
// derived from the (product, user, order, itemIndex) tuple so the store
// itself rejects duplicate submissions: Create on an existing ID fails with
// AlreadyExists regardless of how the race unfolded above it.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider, opts ...Option) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		base: pfirestore.NewBaseRepository[reviewDocument](provider, resolveCollection(reviewCollection, opts)),
	}, nil
}

// Insert creates the review document under its deterministic tuple ID.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	id := reviewDocID(repositories.ReviewKey{
		ProductID:      review.ProductID,
		UserID:         review.UserID,
		OrderID:        review.OrderID,
		OrderItemIndex: review.OrderItemIndex,
	})

	doc := reviewDocument{
		ProductID:      review.ProductID,
		UserID:         review.UserID,
		OrderID:        review.OrderID,
		OrderItemIndex: review.OrderItemIndex,
		Rating:         review.Rating,
		Comment:        review.Comment,
		CreatedAt:      review.CreatedAt,
	}
	if err := r.base.Create(ctx, id, doc); err != nil {
		return domain.Review{}, err
	}

	saved := review
	saved.ID = id
	return saved, nil
}

// FindByKey loads the review for the unique tuple when present.
func (r *ReviewRepository) FindByKey(ctx context.Context, key repositories.ReviewKey) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	doc, err := r.base.Get(ctx, reviewDocID(key))
	if err != nil {
		return domain.Review{}, err
	}
	return decodeReview(doc.ID, doc.Data), nil
}

// ListByProduct returns the product's reviews, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("review repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("productId", "==", strings.TrimSpace(productID)).
			OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, decodeReview(doc.ID, doc.Data))
	}
	return reviews, nil
}

func reviewDocID(key repositories.ReviewKey) string {
	return fmt.Sprintf("%s_%s_%s_%d",
		strings.TrimSpace(key.ProductID),
		strings.TrimSpace(key.UserID),
		strings.TrimSpace(key.OrderID),
		key.OrderItemIndex,
	)
}

func decodeReview(id string, doc reviewDocument) domain.Review {
	return domain.Review{
		ID:             id,
		ProductID:      doc.ProductID,
		UserID:         doc.UserID,
		OrderID:        doc.OrderID,
		OrderItemIndex: doc.OrderItemIndex,
		Rating:         doc.Rating,
		Comment:        doc.Comment,
		CreatedAt:      doc.CreatedAt,
	}
}

type reviewDocument struct {
	ProductID      string    `firestore:"productId"`
	UserID         string    `firestore:"userId"`
	OrderID        string    `firestore:"orderId"`
	OrderItemIndex int       `firestore:"orderItemIndex"`
	Rating         int       `firestore:"rating"`
	Comment        string    `firestore:"comment"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
