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

const userCollection = "users"

// IdentityRepository reads user documents owned by the identity service.
// Only display fields are decoded; credentials never pass through here.
type IdentityRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewIdentityRepository constructs a Firestore-backed identity lookup.
func NewIdentityRepository(provider *pfirestore.Provider, opts ...Option) (*IdentityRepository, error) {
	if provider == nil {
		return nil, errors.New("identity repository requires firestore provider")
	}
	return &IdentityRepository{
		base:     pfirestore.NewBaseRepository[userDocument](provider, resolveCollection(userCollection, opts)),
		provider: provider,
	}, nil
}

// FindUser loads a single user summary.
func (r *IdentityRepository) FindUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	if r == nil || r.base == nil {
		return domain.UserSummary{}, errors.New("identity repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.UserSummary{}, err
	}
	return decodeUser(doc.ID, doc.Data), nil
}

// UserSummaries batch-loads user summaries, omitting users that no longer exist.
func (r *IdentityRepository) UserSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("identity repository not initialised")
	}

	summaries := make(map[string]domain.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return summaries, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
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
		return nil, pfirestore.WrapError("users.batch_get", err)
	}

	for _, snapshot := range snapshots {
		if !snapshot.Exists() {
			continue
		}
		var doc userDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("identity repository: decode user %s: %w", snapshot.Ref.ID, err)
		}
		summaries[snapshot.Ref.ID] = decodeUser(snapshot.Ref.ID, doc)
	}
	return summaries, nil
}

func decodeUser(id string, doc userDocument) domain.UserSummary {
	return domain.UserSummary{
		ID:    id,
		Name:  doc.Name,
		Email: doc.Email,
	}
}

type userDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
}

var _ repositories.IdentityRepository = (*IdentityRepository)(nil)
