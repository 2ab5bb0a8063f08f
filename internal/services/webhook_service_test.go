package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ethanokamura/catmat/internal/payments"
)

type stubVerifier struct {
	event payments.Event
	err   error
}

func (s stubVerifier) Verify([]byte, string) (payments.Event, error) {
	return s.event, s.err
}

type stubOrderService struct {
	OrderService
	createFn func(context.Context, payments.CheckoutCompletion) (Order, bool, error)
	calls    int
}

func (s *stubOrderService) CreateFromCheckout(ctx context.Context, completion payments.CheckoutCompletion) (Order, bool, error) {
	s.calls++
	return s.createFn(ctx, completion)
}

func newTestWebhookService(t *testing.T, verifier WebhookVerifier, orders OrderService) PaymentWebhookService {
	t.Helper()
	svc, err := NewPaymentWebhookService(PaymentWebhookServiceDeps{Verifier: verifier, Orders: orders})
	if err != nil {
		t.Fatalf("NewPaymentWebhookService: %v", err)
	}
	return svc
}

func TestPaymentWebhookServiceRejectsInvalidSignature(t *testing.T) {
	orders := &stubOrderService{}
	svc := newTestWebhookService(t, stubVerifier{err: payments.ErrInvalidSignature}, orders)

	_, err := svc.HandleEvent(context.Background(), []byte(`{}`), "t=1,v1=bad")
	if !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if orders.calls != 0 {
		t.Fatal("expected no order creation")
	}
}

func TestPaymentWebhookServiceCreatesOrderForCompletedCheckout(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(_ context.Context, completion payments.CheckoutCompletion) (Order, bool, error) {
			if completion.SessionID != "cs_1" {
				t.Fatalf("unexpected session %s", completion.SessionID)
			}
			return Order{ID: "ord_1"}, true, nil
		},
	}
	svc := newTestWebhookService(t, stubVerifier{event: payments.Event{
		ID:       "evt_1",
		Type:     payments.EventCheckoutSessionCompleted,
		Checkout: &payments.CheckoutCompletion{SessionID: "cs_1"},
	}}, orders)

	result, err := svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if result.OrderID != "ord_1" || !result.Created || result.Ignored {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPaymentWebhookServiceDuplicateDeliveryIsSuccess(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, payments.CheckoutCompletion) (Order, bool, error) {
			return Order{ID: "ord_1"}, false, nil
		},
	}
	svc := newTestWebhookService(t, stubVerifier{event: payments.Event{
		ID:       "evt_1",
		Type:     payments.EventCheckoutSessionCompleted,
		Checkout: &payments.CheckoutCompletion{SessionID: "cs_1"},
	}}, orders)

	for i := 0; i < 2; i++ {
		result, err := svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if result.Created || result.OrderID != "ord_1" {
			t.Fatalf("unexpected result %+v", result)
		}
	}
}

func TestPaymentWebhookServicePropagatesPersistenceFailure(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, payments.CheckoutCompletion) (Order, bool, error) {
			return Order{}, false, ErrOrderUnavailable
		},
	}
	svc := newTestWebhookService(t, stubVerifier{event: payments.Event{
		ID:       "evt_1",
		Type:     payments.EventCheckoutSessionCompleted,
		Checkout: &payments.CheckoutCompletion{SessionID: "cs_1"},
	}}, orders)

	_, err := svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
	if !errors.Is(err, ErrWebhookProcessing) || !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestPaymentWebhookServiceMalformedEvent(t *testing.T) {
	svc := newTestWebhookService(t, stubVerifier{
		event: payments.Event{ID: "evt_1", Type: payments.EventCheckoutSessionCompleted},
		err:   payments.ErrMalformedEvent,
	}, &stubOrderService{})

	_, err := svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
	if !errors.Is(err, ErrWebhookProcessing) || errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestPaymentWebhookServiceIgnoresOtherEvents(t *testing.T) {
	orders := &stubOrderService{}
	recorder := &eventRecorder{}
	for _, eventType := range []string{"customer.created", payments.EventPaymentIntentSucceeded, payments.EventPaymentIntentFailed} {
		svc, err := NewPaymentWebhookService(PaymentWebhookServiceDeps{
			Verifier: stubVerifier{event: payments.Event{ID: "evt", Type: eventType, PaymentIntentID: "pi_1"}},
			Orders:   orders,
			Logger:   recorder.log,
		})
		if err != nil {
			t.Fatalf("NewPaymentWebhookService: %v", err)
		}
		result, err := svc.HandleEvent(context.Background(), []byte(`{}`), "sig")
		if err != nil {
			t.Fatalf("%s: %v", eventType, err)
		}
		if wantIgnored := eventType == "customer.created"; result.Ignored != wantIgnored {
			t.Fatalf("%s: unexpected ignored flag %v", eventType, result.Ignored)
		}
	}
	if orders.calls != 0 {
		t.Fatal("expected no order writes")
	}
	if !recorder.has("webhook.payment_intent.succeeded") || !recorder.has("webhook.payment_intent.failed") {
		t.Fatal("expected payment intent events to be logged")
	}
}
