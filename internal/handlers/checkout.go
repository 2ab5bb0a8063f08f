package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/cart"
	"github.com/ethanokamura/catmat/internal/platform/httpx"
	"github.com/ethanokamura/catmat/internal/platform/idempotency"
	"github.com/ethanokamura/catmat/internal/services"
)

const maxCheckoutBodySize = 64 * 1024

// CheckoutHandlers starts hosted checkout sessions and serves the post-checkout order summary.
type CheckoutHandlers struct {
	checkout    services.CheckoutService
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutIdempotency wraps session creation with the given idempotency middleware.
func WithCheckoutIdempotency(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.idempotency = mw
	}
}

func NewCheckoutHandlers(checkout services.CheckoutService, orders services.OrderService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{checkout: checkout, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	create := http.Handler(http.HandlerFunc(h.createSession))
	if h.idempotency != nil {
		create = h.idempotency(create)
	}
	r.Method(http.MethodPost, "/", create)
	r.Get("/orders/{sessionID}", h.getOrderBySession)
}

type checkoutRequest struct {
	Items []cart.Item `json:"items"`
	Email string      `json:"email"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	items := make([]services.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.ToDomain())
	}
	key, _ := idempotency.KeyFromContext(ctx)

	session, err := h.checkout.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		Items:          items,
		Email:          strings.TrimSpace(req.Email),
		Origin:         r.Header.Get("Origin"),
		IdempotencyKey: key,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, checkoutResponse{SessionID: session.SessionID, URL: session.URL})
}

func (h *CheckoutHandlers) getOrderBySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "session id is required"))
		return
	}
	order, err := h.orders.GetOrderByCheckoutSession(ctx, sessionID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, struct {
		Order orderSummaryPayload `json:"order"`
	}{Order: buildOrderSummary(order)})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.BadRequest("empty_cart", "cart is empty"))
	case errors.Is(err, services.ErrCheckoutInvalidCart):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_cart", err.Error()))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "failed to create checkout session", http.StatusInternalServerError))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("order_not_found", "order not found"))
	case errors.Is(err, services.ErrOrderInvalidStatus):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_status", err.Error()))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "orders temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("order_error"))
	}
}
