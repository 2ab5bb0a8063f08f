package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ethanokamura/catmat/internal/platform/observability"
	"github.com/ethanokamura/catmat/internal/services"
)

const (
	maxWebhookBodySize     = 1 << 20
	stripeSignatureHeader  = "Stripe-Signature"
	genericSignatureHeader = "Signature"
)

// WebhookHandlers receives payment processor deliveries. Responses keep the processor-facing
// contract: 200 {"received":true}, 400 {"error":"invalid signature"}, 500 {"error":"webhook handler failed"}.
type WebhookHandlers struct {
	webhooks services.PaymentWebhookService
}

func NewWebhookHandlers(webhooks services.PaymentWebhookService) *WebhookHandlers {
	return &WebhookHandlers{webhooks: webhooks}
}

// Routes registers POST /stripe under the /webhooks group.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

// AliasRoutes registers the legacy POST /webhook path.
func (h *WebhookHandlers) AliasRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/webhook", h.handleStripe)
}

type webhookAck struct {
	Received bool `json:"received"`
}

type webhookError struct {
	Error string `json:"error"`
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	if h.webhooks == nil {
		writeJSONResponse(w, http.StatusInternalServerError, webhookError{Error: "webhook handler failed"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil || len(payload) > maxWebhookBodySize {
		logger.Warn("webhook body rejected", zap.Int("bytes", len(payload)), zap.Error(err))
		writeJSONResponse(w, http.StatusBadRequest, webhookError{Error: "invalid signature"})
		return
	}

	signature := strings.TrimSpace(r.Header.Get(stripeSignatureHeader))
	if signature == "" {
		signature = strings.TrimSpace(r.Header.Get(genericSignatureHeader))
	}

	result, err := h.webhooks.HandleEvent(ctx, payload, signature)
	switch {
	case err == nil:
		logger.Info("webhook processed",
			zap.String("eventId", result.EventID),
			zap.String("eventType", result.EventType),
			zap.String("orderId", result.OrderID),
			zap.Bool("created", result.Created),
			zap.Bool("ignored", result.Ignored),
		)
		writeJSONResponse(w, http.StatusOK, webhookAck{Received: true})
	case errors.Is(err, services.ErrWebhookSignature):
		logger.Warn("webhook signature rejected", zap.Any("headers", observability.SanitizeHeaders(r.Header)))
		writeJSONResponse(w, http.StatusBadRequest, webhookError{Error: "invalid signature"})
	default:
		logger.Error("webhook processing failed",
			zap.String("eventId", result.EventID),
			zap.String("eventType", result.EventType),
			zap.Error(err),
		)
		writeJSONResponse(w, http.StatusInternalServerError, webhookError{Error: "webhook handler failed"})
	}
}
