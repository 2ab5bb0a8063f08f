package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/cart"
	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/platform/auth"
	"github.com/ethanokamura/catmat/internal/platform/httpx"
	"github.com/ethanokamura/catmat/internal/platform/storage"
	"github.com/ethanokamura/catmat/internal/services"
)

const (
	maxAdminBodySize     = 64 * 1024
	maxImageRequestBytes = storage.DefaultMaxImageBytes + 64*1024
)

// AdminHandlers exposes catalog and order management behind the admin gate.
type AdminHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	orders  services.OrderService
}

func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService) *AdminHandlers {
	return &AdminHandlers{authn: authn, catalog: catalog, orders: orders}
}

// Routes registers the /admin endpoints. Every route requires an admin record for the caller.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAdmin())
	} else {
		r.Use(denyAll)
	}

	r.Get("/me", h.getMe)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productID}", h.getProduct)
	r.Patch("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Post("/products/{productID}/images", h.uploadImage)
	r.Delete("/products/{productID}/images", h.deleteImage)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Put("/orders/{orderID}/status", h.updateOrderStatus)
	r.Put("/orders/{orderID}/notes", h.updateOrderNotes)
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	})
}

type adminPayload struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func (h *AdminHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, ok := auth.AdminFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("admin_required", "admin access required", http.StatusForbidden))
		return
	}
	writeJSONResponse(w, http.StatusOK, struct {
		Admin adminPayload `json:"admin"`
	}{Admin: adminPayload{
		UID:         admin.UID,
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		Role:        string(admin.Role),
		CreatedAt:   formatTime(admin.CreatedAt),
	}})
}

type productRequest struct {
	Name            *string          `json:"name"`
	Slug            *string          `json:"slug"`
	Description     *string          `json:"description"`
	Price           *int64           `json:"price"`
	Images          *[]string        `json:"images"`
	Dimensions      *cart.Dimensions `json:"dimensions"`
	Stock           *int             `json:"stock"`
	Featured        *bool            `json:"featured"`
	Active          *bool            `json:"active"`
	StripeProductID *string          `json:"stripeProductId"`
	StripePriceID   *string          `json:"stripePriceId"`
}

func (req productRequest) createCommand() services.CreateProductCommand {
	cmd := services.CreateProductCommand{
		Name:            deref(req.Name),
		Slug:            deref(req.Slug),
		Description:     deref(req.Description),
		StripeProductID: deref(req.StripeProductID),
		StripePriceID:   deref(req.StripePriceID),
		Active:          true,
	}
	if req.Price != nil {
		cmd.Price = *req.Price
	}
	if req.Images != nil {
		cmd.Images = *req.Images
	}
	if req.Dimensions != nil {
		cmd.Dimensions = toDomainDimensions(*req.Dimensions)
	}
	if req.Stock != nil {
		cmd.Stock = *req.Stock
	}
	if req.Featured != nil {
		cmd.Featured = *req.Featured
	}
	if req.Active != nil {
		cmd.Active = *req.Active
	}
	return cmd
}

func (req productRequest) updateCommand(productID string) services.UpdateProductCommand {
	cmd := services.UpdateProductCommand{
		ProductID:       productID,
		Name:            req.Name,
		Slug:            req.Slug,
		Description:     req.Description,
		Price:           req.Price,
		Images:          req.Images,
		Stock:           req.Stock,
		Featured:        req.Featured,
		Active:          req.Active,
		StripeProductID: req.StripeProductID,
		StripePriceID:   req.StripePriceID,
	}
	if req.Dimensions != nil {
		dims := toDomainDimensions(*req.Dimensions)
		cmd.Dimensions = &dims
	}
	return cmd
}

func toDomainDimensions(d cart.Dimensions) domain.Dimensions {
	return domain.Dimensions{
		Width:     d.Width,
		Height:    d.Height,
		Thickness: d.Thickness,
		Unit:      domain.DimensionUnit(strings.ToLower(strings.TrimSpace(d.Unit))),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	products, err := h.catalog.ListAllProducts(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{Products: productPayloads(products)})
}

func (h *AdminHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: cart.ProductFromDomain(product)})
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	var req productRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	product, err := h.catalog.CreateProduct(ctx, req.createCommand())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: cart.ProductFromDomain(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	var req productRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	product, err := h.catalog.UpdateProduct(ctx, req.updateCommand(chi.URLParam(r, "productID")))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: cart.ProductFromDomain(product)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type imageResponse struct {
	URL     string       `json:"url"`
	Path    string       `json:"path"`
	Product cart.Product `json:"product"`
}

// uploadImage streams the first "file" (or "image") part of a multipart body to storage.
func (h *AdminHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageRequestBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "multipart/form-data body is required"))
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "file part is required"))
		return
	}
	defer part.Close()

	image, err := h.catalog.UploadProductImage(ctx, services.UploadProductImageCommand{
		ProductID:   chi.URLParam(r, "productID"),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, storage.ErrImageTooLarge), errors.As(err, &maxErr):
			httpx.WriteError(ctx, w, httpx.NewError("image_too_large", "image exceeds the 5 MiB limit", http.StatusRequestEntityTooLarge))
		case errors.Is(err, storage.ErrUnsupportedContentType):
			httpx.WriteError(ctx, w, httpx.BadRequest("unsupported_image_type", "image must be jpeg, png, webp or gif"))
		case errors.Is(err, storage.ErrEmptyImage):
			httpx.WriteError(ctx, w, httpx.BadRequest("empty_image", "image file is empty"))
		default:
			writeCatalogError(ctx, w, err)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, imageResponse{
		URL:     image.URL,
		Path:    image.Path,
		Product: cart.ProductFromDomain(image.Product),
	})
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("no file part")
			}
			return nil, err
		}
		switch part.FormName() {
		case "file", "image":
			return part, nil
		}
		part.Close()
	}
}

func (h *AdminHandlers) deleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	imageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if imageURL == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "url query parameter is required"))
		return
	}
	product, err := h.catalog.DeleteProductImage(ctx, chi.URLParam(r, "productID"), imageURL)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImageURL) {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_image_url", "url is not a storage download url"))
			return
		}
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: cart.ProductFromDomain(product)})
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	query := r.URL.Query()
	filter := services.OrderListFilter{
		Status: strings.TrimSpace(query.Get("status")),
		Email:  strings.TrimSpace(query.Get("email")),
	}
	if raw, ok := query["recent"]; ok {
		value := ""
		if len(raw) > 0 {
			value = strings.TrimSpace(raw[0])
		}
		switch value {
		case "", "true":
			filter.Recent = services.DefaultRecentOrders
		default:
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "recent must be a positive integer"))
				return
			}
			filter.Recent = n
		}
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := orderListResponse{Orders: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	var req orderStatusRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *AdminHandlers) updateOrderNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	var req orderNotesRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	order, err := h.orders.UpdateNotes(ctx, chi.URLParam(r, "orderID"), req.Notes)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
