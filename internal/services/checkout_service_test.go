package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/payments"
)

type stubPaymentProvider struct {
	calls int
	req   payments.CheckoutSessionRequest
	resp  payments.CheckoutSession
	err   error
}

func (s *stubPaymentProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	s.calls++
	s.req = req
	return s.resp, s.err
}

func checkoutItem(id string, price int64, qty int) CartItem {
	return CartItem{
		ProductID: id,
		Product: domain.Product{
			ID:          id,
			Name:        "Mat " + id,
			Description: "<b>Soft</b> mat",
			Price:       price,
			Images:      []string{"https://img/" + id + ".png"},
		},
		Quantity: qty,
	}
}

func newTestCheckoutService(t *testing.T, provider *stubPaymentProvider, publicOrigin string, allowed ...string) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Payments:       provider,
		PublicOrigin:   publicOrigin,
		AllowedOrigins: allowed,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return svc
}

func TestCheckoutServiceCreatesSession(t *testing.T) {
	provider := &stubPaymentProvider{resp: payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}}
	svc := newTestCheckoutService(t, provider, "https://catmat.shop")

	session, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{
		Items: []CartItem{
			checkoutItem("p1", 3900, 1),
			checkoutItem("p2", 1950, 2),
			checkoutItem("p1", 3900, 1),
		},
		Email:          " Buyer <buyer@example.com> ",
		Origin:         "https://catmat.shop",
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.SessionID != "cs_test_1" || !strings.HasPrefix(session.URL, "https://checkout.stripe.com") {
		t.Fatalf("unexpected session %+v", session)
	}

	req := provider.req
	if req.Currency != "usd" {
		t.Fatalf("expected usd, got %s", req.Currency)
	}
	if req.CustomerEmail != "buyer@example.com" {
		t.Fatalf("expected parsed email, got %q", req.CustomerEmail)
	}
	if req.SuccessURL != "https://catmat.shop/checkout/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected success url %s", req.SuccessURL)
	}
	if req.CancelURL != "https://catmat.shop/cart" {
		t.Fatalf("unexpected cancel url %s", req.CancelURL)
	}
	if req.IdempotencyKey != "idem-1" {
		t.Fatalf("expected idempotency key forwarded, got %q", req.IdempotencyKey)
	}
	if len(req.Items) != 2 || req.Items[0].Quantity != 2 || req.Items[1].Quantity != 2 {
		t.Fatalf("expected merged lines, got %+v", req.Items)
	}
	if req.Items[0].Description != "Soft mat" || req.Items[0].ImageURL != "https://img/p1.png" {
		t.Fatalf("unexpected line %+v", req.Items[0])
	}
	if len(req.ShippingOptions) != 2 || len(req.AllowedCountries) != 2 {
		t.Fatalf("expected default shipping configuration, got %+v %+v", req.ShippingOptions, req.AllowedCountries)
	}
	items, err := payments.DecodeMetadataItems(req.Metadata)
	if err != nil {
		t.Fatalf("DecodeMetadataItems: %v", err)
	}
	if len(items) != 2 || items[0].ProductID != "p1" || items[0].Quantity != 2 || items[0].Price != 3900 {
		t.Fatalf("unexpected metadata items %+v", items)
	}
}

func TestCheckoutServiceRejectsEmptyCartWithoutCallingProcessor(t *testing.T) {
	provider := &stubPaymentProvider{}
	svc := newTestCheckoutService(t, provider, "")

	_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{})
	if !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no processor call, got %d", provider.calls)
	}
}

func TestCheckoutServiceRejectsInvalidItems(t *testing.T) {
	cases := map[string]CartItem{
		"zero quantity": checkoutItem("p1", 100, 0),
		"zero price":    checkoutItem("p1", 0, 1),
		"missing id":    {Product: domain.Product{Name: "Mat", Price: 100}, Quantity: 1},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			provider := &stubPaymentProvider{}
			svc := newTestCheckoutService(t, provider, "")
			_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{Items: []CartItem{item}})
			if !errors.Is(err, ErrCheckoutInvalidCart) {
				t.Fatalf("expected invalid cart, got %v", err)
			}
			if provider.calls != 0 {
				t.Fatal("expected no processor call")
			}
		})
	}
}

func TestCheckoutServiceRejectsInvalidEmail(t *testing.T) {
	svc := newTestCheckoutService(t, &stubPaymentProvider{}, "")
	_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{
		Items: []CartItem{checkoutItem("p1", 100, 1)},
		Email: "not-an-email",
	})
	if !errors.Is(err, ErrCheckoutInvalidCart) {
		t.Fatalf("expected invalid cart for bad email, got %v", err)
	}
}

func TestCheckoutServiceOriginResolution(t *testing.T) {
	cases := []struct {
		name    string
		public  string
		allowed []string
		origin  string
		want    string
	}{
		{name: "fallback", want: "http://localhost:3000"},
		{name: "public origin", public: "https://catmat.shop/", want: "https://catmat.shop"},
		{name: "request origin without allow list", origin: "http://localhost:5173", want: "http://localhost:5173"},
		{name: "allowed request origin", public: "https://catmat.shop", allowed: []string{"https://preview.catmat.shop"}, origin: "https://preview.catmat.shop", want: "https://preview.catmat.shop"},
		{name: "disallowed request origin", public: "https://catmat.shop", origin: "https://evil.example", want: "https://catmat.shop"},
		{name: "non http origin", public: "https://catmat.shop", origin: "javascript:alert(1)", want: "https://catmat.shop"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &stubPaymentProvider{resp: payments.CheckoutSession{ID: "cs", URL: "https://pay"}}
			svc := newTestCheckoutService(t, provider, tc.public, tc.allowed...)
			_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{
				Items:  []CartItem{checkoutItem("p1", 100, 1)},
				Origin: tc.origin,
			})
			if err != nil {
				t.Fatalf("CreateCheckoutSession: %v", err)
			}
			if want := tc.want + "/cart"; provider.req.CancelURL != want {
				t.Fatalf("expected cancel url %s, got %s", want, provider.req.CancelURL)
			}
		})
	}
}

func TestCheckoutServiceWrapsProcessorFailure(t *testing.T) {
	provider := &stubPaymentProvider{err: payments.ErrProcessorUnavailable}
	recorder := &eventRecorder{}
	svc, err := NewCheckoutService(CheckoutServiceDeps{Payments: provider, Logger: recorder.log})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	_, err = svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{
		Items: []CartItem{checkoutItem("p1", 100, 1)},
	})
	if !errors.Is(err, ErrCheckoutPaymentFailed) || !errors.Is(err, payments.ErrProcessorUnavailable) {
		t.Fatalf("expected payment failure, got %v", err)
	}
	if !recorder.has("checkout.session.failed") {
		t.Fatal("expected failure to be logged")
	}
}

func TestCheckoutServiceKeepsMetadataWithinProcessorLimits(t *testing.T) {
	provider := &stubPaymentProvider{resp: payments.CheckoutSession{ID: "cs_big", URL: "https://checkout.stripe.com/c/cs_big"}}
	svc := newTestCheckoutService(t, provider, "https://catmat.shop")

	items := make([]CartItem, 0, 7)
	for _, id := range []string{
		"01JA2B3C4D5E6F7G8H9J0K1M2N", "01JA2B3C4D5E6F7G8H9J0K1M2P", "01JA2B3C4D5E6F7G8H9J0K1M2Q",
		"01JA2B3C4D5E6F7G8H9J0K1M2R", "01JA2B3C4D5E6F7G8H9J0K1M2S", "01JA2B3C4D5E6F7G8H9J0K1M2T",
		"01JA2B3C4D5E6F7G8H9J0K1M2V",
	} {
		item := checkoutItem(id, 4200, 1)
		item.Product.Name = "Large Desk Mat Charcoal Felt"
		items = append(items, item)
	}

	if _, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{Items: items}); err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	for key, value := range provider.req.Metadata {
		if n := utf8.RuneCountInString(value); n > payments.MaxMetadataValueLength {
			t.Fatalf("metadata %s has %d chars", key, n)
		}
	}
	decoded, err := payments.DecodeMetadataItems(provider.req.Metadata)
	if err != nil {
		t.Fatalf("DecodeMetadataItems: %v", err)
	}
	if len(decoded) != 7 || decoded[6].ProductID != "01JA2B3C4D5E6F7G8H9J0K1M2V" {
		t.Fatalf("unexpected decoded items %+v", decoded)
	}
}

func TestCheckoutServiceRejectsConflictingPriceSnapshots(t *testing.T) {
	provider := &stubPaymentProvider{}
	svc := newTestCheckoutService(t, provider, "")

	_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutSessionCommand{
		Items: []CartItem{checkoutItem("p1", 3900, 1), checkoutItem("p1", 100, 3)},
	})
	if !errors.Is(err, ErrCheckoutInvalidCart) {
		t.Fatalf("expected invalid cart, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no processor call, got %d", provider.calls)
	}
}
