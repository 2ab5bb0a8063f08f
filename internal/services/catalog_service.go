package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/platform/storage"
	"github.com/ethanokamura/catmat/internal/platform/textutil"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	defaultFeaturedLimit = 4
	maxFeaturedLimit     = 24

	maxProductNameLength        = 120
	maxProductDescriptionLength = 5000
	maxProductImages            = 12
	maxImageURLLength           = 2048
)

var (
	// ErrCatalogInvalidInput indicates the product payload failed validation.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogProductNotFound indicates the product does not exist or is hidden from the caller.
	ErrCatalogProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogImageNotFound indicates the image URL is not attached to the product.
	ErrCatalogImageNotFound = errors.New("catalog: image not found")
	// ErrCatalogSlugConflict indicates another product already uses the slug.
	ErrCatalogSlugConflict = errors.New("catalog: slug already in use")
	// ErrCatalogUnavailable indicates the catalog store is unavailable.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// productImageStore abstracts storage.ImageStore for testing.
type productImageStore interface {
	Upload(ctx context.Context, slug, contentType string, r io.Reader) (storage.UploadedImage, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

// CatalogServiceDeps wires the dependencies required by the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Images      productImageStore
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	images   productImageStore
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs a CatalogService. Images may be nil, which disables uploads.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products: deps.Products,
		images:   deps.Images,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.products.List(ctx, repositories.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return products, nil
}

func (s *catalogService) ListFeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	limit = min(limit, maxFeaturedLimit)
	products, err := s.products.List(ctx, repositories.ProductFilter{ActiveOnly: true, FeaturedOnly: true, Limit: limit})
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return products, nil
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !textutil.ValidSlug(slug) {
		return Product{}, ErrCatalogProductNotFound
	}
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return Product{}, s.mapRepoError(err)
	}
	if !product.Active {
		return Product{}, ErrCatalogProductNotFound
	}
	return product, nil
}

func (s *catalogService) ListAllProducts(ctx context.Context) ([]Product, error) {
	products, err := s.products.List(ctx, repositories.ProductFilter{})
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrCatalogProductNotFound
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepoError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	now := s.now()
	product := domain.Product{
		ID:              s.newID(),
		Name:            cmd.Name,
		Slug:            cmd.Slug,
		Description:     cmd.Description,
		Price:           cmd.Price,
		Images:          cmd.Images,
		Dimensions:      cmd.Dimensions,
		Stock:           cmd.Stock,
		Featured:        cmd.Featured,
		Active:          cmd.Active,
		StripeProductID: cmd.StripeProductID,
		StripePriceID:   cmd.StripePriceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if strings.TrimSpace(product.Slug) == "" {
		product.Slug = textutil.Slugify(textutil.PlainText(cmd.Name, maxProductNameLength))
	}
	product, err := normalizeProduct(product)
	if err != nil {
		return Product{}, err
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.mapRepoError(err)
	}
	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": product.ID,
		"slug":      product.Slug,
	})
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	product, err := s.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return Product{}, err
	}

	if cmd.Name != nil {
		product.Name = *cmd.Name
	}
	if cmd.Slug != nil {
		product.Slug = *cmd.Slug
	}
	if cmd.Description != nil {
		product.Description = *cmd.Description
	}
	if cmd.Price != nil {
		product.Price = *cmd.Price
	}
	if cmd.Images != nil {
		product.Images = *cmd.Images
	}
	if cmd.Dimensions != nil {
		product.Dimensions = *cmd.Dimensions
	}
	if cmd.Stock != nil {
		product.Stock = *cmd.Stock
	}
	if cmd.Featured != nil {
		product.Featured = *cmd.Featured
	}
	if cmd.Active != nil {
		product.Active = *cmd.Active
	}
	if cmd.StripeProductID != nil {
		product.StripeProductID = strings.TrimSpace(*cmd.StripeProductID)
	}
	if cmd.StripePriceID != nil {
		product.StripePriceID = strings.TrimSpace(*cmd.StripePriceID)
	}
	product.UpdatedAt = s.now()

	product, err = normalizeProduct(product)
	if err != nil {
		return Product{}, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepoError(err)
	}
	s.logger(ctx, "catalog.product.updated", map[string]any{"productId": product.ID})
	return product, nil
}

// DeleteProduct removes the product and then best-effort deletes its stored images.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, product.ID); err != nil {
		return s.mapRepoError(err)
	}
	for _, url := range product.Images {
		s.deleteImageObject(ctx, product.ID, url)
	}
	s.logger(ctx, "catalog.product.deleted", map[string]any{
		"productId": product.ID,
		"images":    len(product.Images),
	})
	return nil
}

func (s *catalogService) UploadProductImage(ctx context.Context, cmd UploadProductImageCommand) (ProductImage, error) {
	if s.images == nil {
		return ProductImage{}, fmt.Errorf("%w: image storage not configured", ErrCatalogUnavailable)
	}
	if cmd.Body == nil {
		return ProductImage{}, fmt.Errorf("%w: image body is required", ErrCatalogInvalidInput)
	}
	product, err := s.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return ProductImage{}, err
	}
	if len(product.Images) >= maxProductImages {
		return ProductImage{}, fmt.Errorf("%w: at most %d images per product", ErrCatalogInvalidInput, maxProductImages)
	}

	uploaded, err := s.images.Upload(ctx, product.Slug, cmd.ContentType, cmd.Body)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedContentType),
			errors.Is(err, storage.ErrImageTooLarge),
			errors.Is(err, storage.ErrEmptyImage):
			return ProductImage{}, fmt.Errorf("%w: %w", ErrCatalogInvalidInput, err)
		default:
			return ProductImage{}, fmt.Errorf("%w: upload image: %w", ErrCatalogUnavailable, err)
		}
	}

	product.Images = append(product.Images, uploaded.URL)
	product.UpdatedAt = s.now()
	if err := s.products.Update(ctx, product); err != nil {
		s.deleteImageObject(ctx, product.ID, uploaded.URL)
		return ProductImage{}, s.mapRepoError(err)
	}

	s.logger(ctx, "catalog.product.image_uploaded", map[string]any{
		"productId": product.ID,
		"path":      uploaded.Path,
		"bytes":     uploaded.Size,
	})
	return ProductImage{URL: uploaded.URL, Path: uploaded.Path, Product: product}, nil
}

func (s *catalogService) DeleteProductImage(ctx context.Context, productID string, imageURL string) (Product, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return Product{}, fmt.Errorf("%w: image url is required", ErrCatalogInvalidInput)
	}
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	idx := slices.Index(product.Images, imageURL)
	if idx < 0 {
		return Product{}, ErrCatalogImageNotFound
	}

	product.Images = slices.Delete(slices.Clone(product.Images), idx, idx+1)
	product.UpdatedAt = s.now()
	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepoError(err)
	}
	s.deleteImageObject(ctx, product.ID, imageURL)
	return product, nil
}

func (s *catalogService) deleteImageObject(ctx context.Context, productID, url string) {
	if s.images == nil {
		return
	}
	if err := s.images.DeleteByURL(ctx, url); err != nil {
		s.logger(ctx, "catalog.product.image_delete_failed", map[string]any{
			"productId": productID,
			"error":     err.Error(),
		})
	}
}

func (s *catalogService) mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrCatalogProductNotFound
	case isRepoConflict(err):
		return ErrCatalogSlugConflict
	case isRepoUnavailable(err):
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	default:
		return err
	}
}

// normalizeProduct sanitises text fields and validates the product invariants.
func normalizeProduct(p domain.Product) (domain.Product, error) {
	p.Name = textutil.PlainText(p.Name, maxProductNameLength)
	if p.Name == "" {
		return p, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if !textutil.ValidSlug(p.Slug) {
		return p, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrCatalogInvalidInput)
	}
	p.Description = textutil.Description(p.Description, maxProductDescriptionLength)
	if p.Price <= 0 {
		return p, fmt.Errorf("%w: price must be a positive amount in cents", ErrCatalogInvalidInput)
	}
	if p.Stock < 0 {
		return p, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
	}
	if p.Dimensions.Unit == "" {
		p.Dimensions.Unit = domain.UnitInches
	}
	if !p.Dimensions.Unit.Valid() {
		return p, fmt.Errorf("%w: dimensions unit must be in, cm or mm", ErrCatalogInvalidInput)
	}
	if p.Dimensions.Width < 0 || p.Dimensions.Height < 0 || p.Dimensions.Thickness < 0 {
		return p, fmt.Errorf("%w: dimensions cannot be negative", ErrCatalogInvalidInput)
	}
	images := make([]string, 0, len(p.Images))
	for _, url := range p.Images {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if len(url) > maxImageURLLength || !strings.HasPrefix(url, "https://") {
			return p, fmt.Errorf("%w: image urls must be https", ErrCatalogInvalidInput)
		}
		images = append(images, url)
	}
	if len(images) > maxProductImages {
		return p, fmt.Errorf("%w: at most %d images per product", ErrCatalogInvalidInput, maxProductImages)
	}
	p.Images = images
	return p, nil
}
