package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/services"
)

func newWebhookRouter(svc services.PaymentWebhookService) http.Handler {
	h := NewWebhookHandlers(svc)
	return NewRouter(WithWebhookRoutes(h.Routes), WithRootWebhookRoutes(h.AliasRoutes))
}

func TestWebhookHandlersResponses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"processed", nil, http.StatusOK, `{"received":true}`},
		{"signature", services.ErrWebhookSignature, http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"processing", fmt.Errorf("%w: store down", services.ErrWebhookProcessing), http.StatusInternalServerError, `{"error":"webhook handler failed"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWebhookService{err: tc.err}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			newWebhookRouter(svc).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.body {
				t.Fatalf("expected body %s, got %s", tc.body, got)
			}
			if string(svc.payload) != `{"id":"evt_1"}` || svc.signature != "t=1,v1=abc" {
				t.Fatalf("raw payload or signature not forwarded: %q %q", svc.payload, svc.signature)
			}
		})
	}
}

func TestWebhookHandlersAliasAndSignatureFallback(t *testing.T) {
	svc := &stubWebhookService{result: services.WebhookResult{EventType: "customer.created", Ignored: true}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.Header.Set("Signature", "t=2,v1=def")
	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rec.Code)
	}
	if svc.signature != "t=2,v1=def" {
		t.Fatalf("expected fallback signature header, got %q", svc.signature)
	}
}

func TestWebhookHandlersRejectsOversizedBody(t *testing.T) {
	svc := &stubWebhookService{err: errors.New("should not be called")}
	router := chi.NewRouter()
	router.Route("/webhooks", NewWebhookHandlers(svc).Routes)

	body := strings.Repeat("a", maxWebhookBodySize+1)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.payload != nil {
		t.Fatal("expected service not to be invoked")
	}
}
