package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethanokamura/catmat/internal/payments"
)

var (
	// ErrWebhookSignature indicates the delivery failed signature verification.
	ErrWebhookSignature = errors.New("webhook: invalid signature")
	// ErrWebhookProcessing indicates a verified delivery that could not be handled and should be retried.
	ErrWebhookProcessing = errors.New("webhook: processing failed")
)

// WebhookVerifier authenticates and decodes a raw webhook delivery.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (payments.Event, error)
}

// PaymentWebhookServiceDeps wires the webhook processor.
type PaymentWebhookServiceDeps struct {
	Verifier WebhookVerifier
	Orders   OrderService
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentWebhookService struct {
	verifier WebhookVerifier
	orders   OrderService
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ PaymentWebhookService = (*paymentWebhookService)(nil)

// NewPaymentWebhookService constructs a PaymentWebhookService.
func NewPaymentWebhookService(deps PaymentWebhookServiceDeps) (PaymentWebhookService, error) {
	if deps.Verifier == nil {
		return nil, errors.New("webhook service: verifier is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("webhook service: order service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentWebhookService{
		verifier: deps.Verifier,
		orders:   deps.Orders,
		logger:   logger,
	}, nil
}

// HandleEvent verifies the signature before looking at the payload, then dispatches by type.
// Duplicate deliveries of a completed checkout succeed without creating a second order.
func (s *paymentWebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.logger(ctx, "webhook.signature.invalid", map[string]any{"bytes": len(payload)})
			return WebhookResult{}, ErrWebhookSignature
		}
		s.logger(ctx, "webhook.event.malformed", map[string]any{
			"eventId":   event.ID,
			"eventType": event.Type,
			"error":     err.Error(),
		})
		return WebhookResult{EventID: event.ID, EventType: event.Type}, fmt.Errorf("%w: %w", ErrWebhookProcessing, err)
	}

	result := WebhookResult{EventID: event.ID, EventType: event.Type}
	switch event.Type {
	case payments.EventCheckoutSessionCompleted:
		if event.Checkout == nil {
			return result, fmt.Errorf("%w: checkout event %s without session", ErrWebhookProcessing, event.ID)
		}
		order, created, err := s.orders.CreateFromCheckout(ctx, *event.Checkout)
		if err != nil {
			s.logger(ctx, "webhook.order.failed", map[string]any{
				"eventId":   event.ID,
				"sessionId": event.Checkout.SessionID,
				"error":     err.Error(),
			})
			return result, fmt.Errorf("%w: %w", ErrWebhookProcessing, err)
		}
		result.OrderID = order.ID
		result.Created = created
	case payments.EventPaymentIntentSucceeded:
		s.logger(ctx, "webhook.payment_intent.succeeded", map[string]any{
			"eventId":         event.ID,
			"paymentIntentId": event.PaymentIntentID,
		})
	case payments.EventPaymentIntentFailed:
		s.logger(ctx, "webhook.payment_intent.failed", map[string]any{
			"eventId":         event.ID,
			"paymentIntentId": event.PaymentIntentID,
		})
	default:
		result.Ignored = true
		s.logger(ctx, "webhook.event.ignored", map[string]any{
			"eventId":   event.ID,
			"eventType": event.Type,
		})
	}
	return result, nil
}
