package firestore

import (
	"context"
	"errors"
	"strconv"

	"cloud.google.com/go/firestore"

	domain "github.com/techfy/storefront-api/internal/domain"
	pfirestore "github.com/techfy/storefront-api/internal/platform/firestore"
	"github.com/techfy/storefront-api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name  string `firestore:"name"`
	Price int64  `firestore:"price"`
	Image string `firestore:"image,omitempty"`
}

// CatalogRepository reads products stored under products/{id}.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.ProductCatalog = (*CatalogRepository)(nil)

func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{provider: provider}, nil
}

func (r *CatalogRepository) LookupProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("catalog.client", err)
	}

	seen := make(map[int64]struct{}, len(ids))
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, client.Collection(productsCollection).Doc(strconv.FormatInt(id, 10)))
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("catalog.lookup", err)
	}
	products := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		id, err := strconv.ParseInt(snap.Ref.ID, 10, 64)
		if err != nil {
			continue
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("catalog.decode", err)
		}
		products = append(products, domain.Product{ID: id, Name: doc.Name, Price: doc.Price, Image: doc.Image})
	}
	return products, nil
}
