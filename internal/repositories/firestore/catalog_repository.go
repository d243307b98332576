package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/threadcart/api/internal/domain"
	pfirestore "github.com/threadcart/api/internal/platform/firestore"
	"github.com/threadcart/api/internal/repositories"
)

const productCollection = "products"

// CatalogRepository reads product documents owned by the catalog service.
// Only the display fields resolved onto orders and reviews are decoded.
type CatalogRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog lookup.
func NewCatalogRepository(provider *pfirestore.Provider, opts ...Option) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		base:     pfirestore.NewBaseRepository[productDocument](provider, resolveCollection(productCollection, opts)),
		provider: provider,
	}, nil
}

// FindProduct loads a single product summary.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.ProductSummary, error) {
	if r == nil || r.base == nil {
		return domain.ProductSummary{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.ProductSummary{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// ProductSummaries batch-loads product summaries. Products that no longer
// exist are omitted from the result rather than failing the read.
func (r *CatalogRepository) ProductSummaries(ctx context.Context, productIDs []string) (map[string]domain.ProductSummary, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	summaries := make(map[string]domain.ProductSummary, len(productIDs))
	if len(productIDs) == 0 {
		return summaries, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.batch_get", err)
	}

	for _, snapshot := range snapshots {
		if !snapshot.Exists() {
			continue
		}
		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("catalog repository: decode product %s: %w", snapshot.Ref.ID, err)
		}
		summaries[snapshot.Ref.ID] = decodeProduct(snapshot.Ref.ID, doc)
	}
	return summaries, nil
}

func decodeProduct(id string, doc productDocument) domain.ProductSummary {
	return domain.ProductSummary{
		ID:          id,
		Title:       doc.Title,
		Price:       doc.Price,
		Images:      doc.Images,
		Discount:    doc.Discount,
		Category:    doc.Category,
		Subcategory: doc.Subcategory,
	}
}

type productDocument struct {
	Title       string   `firestore:"title"`
	Price       int64    `firestore:"price"`
	Images      []string `firestore:"images"`
	Discount    int64    `firestore:"discount"`
	Category    string   `firestore:"category"`
	Subcategory string   `firestore:"subcategory"`
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
