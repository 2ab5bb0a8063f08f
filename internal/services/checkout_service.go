package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/ethanokamura/catmat/internal/cart"
	"github.com/ethanokamura/catmat/internal/payments"
	"github.com/ethanokamura/catmat/internal/platform/textutil"
)

const (
	fallbackOrigin      = "http://localhost:3000"
	checkoutSuccessPath = "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	checkoutCancelPath  = "/cart"

	maxCheckoutLines     = 50
	maxLineDescription   = 500
	maxCheckoutEmailSize = 254
)

var (
	// ErrCheckoutEmptyCart indicates the checkout request carried no items.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutInvalidCart indicates an item has a non-positive quantity or price.
	ErrCheckoutInvalidCart = errors.New("checkout: invalid cart")
	// ErrCheckoutPaymentFailed indicates the payment processor rejected the session.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment processor failed")
	// ErrCheckoutUnavailable indicates checkout is not configured.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutServiceDeps wires the dependencies for checkout session creation.
type CheckoutServiceDeps struct {
	Payments       payments.Provider
	Currency       string
	PublicOrigin   string
	AllowedOrigins []string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	payments       payments.Provider
	currency       string
	publicOrigin   string
	allowedOrigins map[string]struct{}
	logger         func(ctx context.Context, event string, fields map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	allowed := make(map[string]struct{}, len(deps.AllowedOrigins))
	for _, origin := range deps.AllowedOrigins {
		if normalized, ok := normalizeOrigin(origin); ok {
			allowed[normalized] = struct{}{}
		}
	}
	publicOrigin, _ := normalizeOrigin(deps.PublicOrigin)
	if publicOrigin != "" {
		allowed[publicOrigin] = struct{}{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		payments:       deps.Payments,
		currency:       currency,
		publicOrigin:   publicOrigin,
		allowedOrigins: allowed,
		logger:         logger,
	}, nil
}

func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error) {
	if len(cmd.Items) == 0 {
		return CheckoutSession{}, ErrCheckoutEmptyCart
	}
	if len(cmd.Items) > maxCheckoutLines {
		return CheckoutSession{}, fmt.Errorf("%w: at most %d lines", ErrCheckoutInvalidCart, maxCheckoutLines)
	}
	for i, item := range cmd.Items {
		switch {
		case strings.TrimSpace(item.ProductID) == "" && strings.TrimSpace(item.Product.ID) == "":
			return CheckoutSession{}, fmt.Errorf("%w: item %d has no product id", ErrCheckoutInvalidCart, i)
		case item.Quantity < 1:
			return CheckoutSession{}, fmt.Errorf("%w: item %d quantity must be at least 1", ErrCheckoutInvalidCart, i)
		case item.Product.Price <= 0:
			return CheckoutSession{}, fmt.Errorf("%w: item %d price must be positive", ErrCheckoutInvalidCart, i)
		case strings.TrimSpace(item.Product.Name) == "":
			return CheckoutSession{}, fmt.Errorf("%w: item %d has no name", ErrCheckoutInvalidCart, i)
		}
	}

	email := strings.TrimSpace(cmd.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || len(addr.Address) > maxCheckoutEmailSize {
			return CheckoutSession{}, fmt.Errorf("%w: invalid email", ErrCheckoutInvalidCart)
		}
		email = addr.Address
	}

	c, err := cart.FromItems(cmd.Items)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidCart, err)
	}
	lines := make([]payments.LineItem, 0, c.Len())
	metadataItems := make([]payments.MetadataItem, 0, c.Len())
	for _, item := range c.Items() {
		lines = append(lines, payments.LineItem{
			ProductID:   item.ProductID,
			Name:        item.Product.Name,
			Description: textutil.PlainText(item.Product.Description, maxLineDescription),
			ImageURL:    item.Product.FirstImage(),
			UnitAmount:  item.Product.Price,
			Quantity:    int64(item.Quantity),
		})
		metadataItems = append(metadataItems, payments.MetadataItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			Price:     item.Product.Price,
		})
	}
	metadata, err := payments.ItemsMetadata(metadataItems)
	if errors.Is(err, payments.ErrMetadataTooLarge) {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidCart, err)
	}
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("checkout: encode metadata: %w", err)
	}

	origin := s.resolveOrigin(cmd.Origin)
	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Currency:         s.currency,
		CustomerEmail:    email,
		SuccessURL:       origin + checkoutSuccessPath,
		CancelURL:        origin + checkoutCancelPath,
		Items:            lines,
		ShippingOptions:  payments.DefaultShippingOptions,
		AllowedCountries: payments.DefaultShippingCountries,
		Metadata:         metadata,
		IdempotencyKey:   strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		s.logger(ctx, "checkout.session.failed", map[string]any{
			"items": c.ItemCount(),
			"error": err.Error(),
		})
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutPaymentFailed, err)
	}
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.URL) == "" {
		return CheckoutSession{}, fmt.Errorf("%w: processor returned an incomplete session", ErrCheckoutPaymentFailed)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId": session.ID,
		"items":     c.ItemCount(),
		"subtotal":  c.Total(),
	})
	return CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// resolveOrigin prefers the request origin when it is allowed, then the configured public origin.
func (s *checkoutService) resolveOrigin(requestOrigin string) string {
	if normalized, ok := normalizeOrigin(requestOrigin); ok {
		if len(s.allowedOrigins) == 0 {
			return normalized
		}
		if _, allowed := s.allowedOrigins[normalized]; allowed {
			return normalized
		}
	}
	if s.publicOrigin != "" {
		return s.publicOrigin
	}
	return fallbackOrigin
}

func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}
