package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/ethanokamura/catmat/internal/domain"
	pfirestore "github.com/ethanokamura/catmat/internal/platform/firestore"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	productCollection     = "products"
	productSlugCollection = "product-slugs"
)

// ProductRepository stores catalog products. Slug uniqueness is enforced by a marker document
// per slug written in the same transaction as the product.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base:     pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
		provider: provider,
	}, nil
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductFilter) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		if filter.FeaturedOnly {
			q = q.Where("featured", "==", true)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", strings.TrimSpace(slug)).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.NotFoundError("products.find_by_slug", "product")
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// Insert writes the product and claims its slug. Either write failing with AlreadyExists
// aborts both.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	productRef, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	slugRef, err := r.slugRef(ctx, product.Slug)
	if err != nil {
		return err
	}
	doc := newProductDocument(product)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(slugRef, slugMarker{ProductID: product.ID, CreatedAt: product.CreatedAt}); err != nil {
			return err
		}
		return tx.Create(productRef, doc)
	})
	return pfirestore.WrapError("products.insert", err)
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	productRef, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	newSlugRef, err := r.slugRef(ctx, product.Slug)
	if err != nil {
		return err
	}
	doc := newProductDocument(product)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(productRef)
		if err != nil {
			return err
		}
		var current productDocument
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.Slug != doc.Slug {
			markerSnap, err := tx.Get(newSlugRef)
			switch {
			case err == nil:
				var marker slugMarker
				if err := markerSnap.DataTo(&marker); err != nil {
					return err
				}
				if marker.ProductID != product.ID {
					return pfirestore.ConflictError("products.update", "slug "+doc.Slug)
				}
			case status.Code(err) == codes.NotFound:
			default:
				return err
			}
			if current.Slug != "" {
				if err := tx.Delete(newSlugRef.Parent.Doc(current.Slug)); err != nil {
					return err
				}
			}
			if err := tx.Set(newSlugRef, slugMarker{ProductID: product.ID, CreatedAt: product.UpdatedAt}); err != nil {
				return err
			}
		}
		doc.CreatedAt = current.CreatedAt
		return tx.Set(productRef, doc)
	})
	return pfirestore.WrapError("products.update", err)
}

// Delete removes the product and releases its slug. Deleting a missing product is not an error.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	productRef, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	slugs := client.Collection(productSlugCollection)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(productRef)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if slug, _ := snap.Data()["slug"].(string); slug != "" {
			if err := tx.Delete(slugs.Doc(slug)); err != nil {
				return err
			}
		}
		return tx.Delete(productRef)
	})
	return pfirestore.WrapError("products.delete", err)
}

func (r *ProductRepository) slugRef(ctx context.Context, slug string) (*firestore.DocumentRef, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pfirestore.WrapError("products.slug", errors.New("slug is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(productSlugCollection).Doc(slug), nil
}

type slugMarker struct {
	ProductID string    `firestore:"productId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type dimensionsDocument struct {
	Width     float64 `firestore:"width"`
	Height    float64 `firestore:"height"`
	Thickness float64 `firestore:"thickness"`
	Unit      string  `firestore:"unit"`
}

type productDocument struct {
	Slug            string             `firestore:"slug"`
	Name            string             `firestore:"name"`
	Description     string             `firestore:"description"`
	Price           int64              `firestore:"price"`
	Images          []string           `firestore:"images"`
	Dimensions      dimensionsDocument `firestore:"dimensions"`
	Stock           int                `firestore:"stock"`
	Featured        bool               `firestore:"featured"`
	Active          bool               `firestore:"active"`
	StripeProductID string             `firestore:"stripeProductId,omitempty"`
	StripePriceID   string             `firestore:"stripePriceId,omitempty"`
	CreatedAt       time.Time          `firestore:"createdAt"`
	UpdatedAt       time.Time          `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDocument{
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Images:      images,
		Dimensions: dimensionsDocument{
			Width:     p.Dimensions.Width,
			Height:    p.Dimensions.Height,
			Thickness: p.Dimensions.Thickness,
			Unit:      string(p.Dimensions.Unit),
		},
		Stock:           p.Stock,
		Featured:        p.Featured,
		Active:          p.Active,
		StripeProductID: p.StripeProductID,
		StripePriceID:   p.StripePriceID,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Slug:        d.Slug,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Images:      d.Images,
		Dimensions: domain.Dimensions{
			Width:     d.Dimensions.Width,
			Height:    d.Dimensions.Height,
			Thickness: d.Dimensions.Thickness,
			Unit:      domain.DimensionUnit(d.Dimensions.Unit),
		},
		Stock:           d.Stock,
		Featured:        d.Featured,
		Active:          d.Active,
		StripeProductID: d.StripeProductID,
		StripePriceID:   d.StripePriceID,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}
