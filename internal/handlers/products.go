package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/cart"
	"github.com/ethanokamura/catmat/internal/platform/httpx"
	"github.com/ethanokamura/catmat/internal/services"
)

// ProductHandlers exposes the public storefront catalog.
type ProductHandlers struct {
	catalog services.CatalogService
}

func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/featured", h.listFeatured)
	r.Get("/{slug}", h.getProduct)
}

type productListResponse struct {
	Products []cart.Product `json:"products"`
}

type productResponse struct {
	Product cart.Product `json:"product"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{Products: productPayloads(products)})
}

func (h *ProductHandlers) listFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	products, err := h.catalog.ListFeaturedProducts(ctx, limit)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{Products: productPayloads(products)})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProductBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: cart.ProductFromDomain(product)})
}

func productPayloads(products []services.Product) []cart.Product {
	out := make([]cart.Product, 0, len(products))
	for _, p := range products {
		out = append(out, cart.ProductFromDomain(p))
	}
	return out
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_product", err.Error()))
	case errors.Is(err, services.ErrCatalogProductNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("product_not_found", "product not found"))
	case errors.Is(err, services.ErrCatalogImageNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("image_not_found", "image not found on product"))
	case errors.Is(err, services.ErrCatalogSlugConflict):
		httpx.WriteError(ctx, w, httpx.NewError("slug_conflict", "a product with this slug already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("catalog_error"))
	}
}
