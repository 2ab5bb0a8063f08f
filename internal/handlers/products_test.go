package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/services"
)

func newProductRouter(catalog services.CatalogService) http.Handler {
	router := chi.NewRouter()
	router.Route("/products", NewProductHandlers(catalog).Routes)
	return router
}

func TestProductHandlersList(t *testing.T) {
	catalog := &stubCatalogService{
		listFn: func(context.Context) ([]services.Product, error) {
			return []services.Product{{ID: "p1", Slug: "desk-mat", Name: "Desk Mat", Price: 2500, Active: true}}, nil
		},
	}

	rec := httptest.NewRecorder()
	newProductRouter(catalog).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body productListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].Slug != "desk-mat" || body.Products[0].Price != 2500 {
		t.Fatalf("unexpected products %+v", body.Products)
	}
}

func TestProductHandlersFeaturedLimit(t *testing.T) {
	var gotLimit int
	catalog := &stubCatalogService{
		featuredFn: func(_ context.Context, limit int) ([]services.Product, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	router := newProductRouter(catalog)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/featured?limit=8", nil))
	if rec.Code != http.StatusOK || gotLimit != 8 {
		t.Fatalf("expected limit 8 forwarded, got status %d limit %d", rec.Code, gotLimit)
	}
	if body := rec.Body.String(); body != "{\"products\":[]}\n" {
		t.Fatalf("expected empty array, got %s", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/featured?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestProductHandlersGetBySlugNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newProductRouter(&stubCatalogService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
