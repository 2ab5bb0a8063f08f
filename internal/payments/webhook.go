package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/ethanokamura/catmat/internal/domain"
)

// Webhook event types the storefront reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
)

// MetadataItemsKey is the checkout session metadata key holding the frozen line items. Carts
// whose encoding exceeds one metadata value are split across items_0, items_1, ...
const MetadataItemsKey = "items"

const (
	// MaxMetadataValueLength is Stripe's per-value metadata limit, in characters.
	MaxMetadataValueLength = 500
	// maxMetadataItemChunks leaves room under Stripe's 50-key limit for other metadata.
	maxMetadataItemChunks = 40
)

var (
	// ErrMetadataTooLarge indicates line items that cannot fit in session metadata.
	ErrMetadataTooLarge = errors.New("payments: line items exceed session metadata limits")
	// ErrInvalidSignature is returned for any signature verification failure. The cause is not exposed.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrMalformedEvent indicates a verified event whose payload cannot be decoded.
	ErrMalformedEvent = errors.New("payments: malformed webhook event")
)

// Event is a verified webhook delivery. Exactly one of Checkout or PaymentIntentID is set for
// the recognised types; other types carry only ID and Type.
type Event struct {
	ID              string
	Type            string
	Checkout        *CheckoutCompletion
	PaymentIntentID string
}

// CheckoutCompletion is the subset of a completed checkout session needed to build an order.
type CheckoutCompletion struct {
	SessionID       string
	PaymentIntentID string
	PaymentStatus   string
	CustomerEmail   string
	Metadata        map[string]string
	AmountSubtotal  int64
	AmountShipping  int64
	AmountTax       int64
	AmountTotal     int64
	ShippingAddress *domain.ShippingAddress
}

// MetadataItem is one element of the metadata "items" JSON array.
type MetadataItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// EncodeMetadataItems renders line items as compact JSON for session metadata.
func EncodeMetadataItems(items []MetadataItem) (string, error) {
	if items == nil {
		items = []MetadataItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("payments: encode metadata items: %w", err)
	}
	return string(data), nil
}

// ItemsMetadata encodes line items into session metadata, keeping every value within
// MaxMetadataValueLength characters.
func ItemsMetadata(items []MetadataItem) (map[string]string, error) {
	encoded, err := EncodeMetadataItems(items)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(encoded) <= MaxMetadataValueLength {
		return map[string]string{MetadataItemsKey: encoded}, nil
	}
	chunks := splitRunes(encoded, MaxMetadataValueLength)
	if len(chunks) > maxMetadataItemChunks {
		return nil, fmt.Errorf("%w: %d chunks", ErrMetadataTooLarge, len(chunks))
	}
	metadata := make(map[string]string, len(chunks))
	for i, chunk := range chunks {
		metadata[itemsChunkKey(i)] = chunk
	}
	return metadata, nil
}

func itemsChunkKey(i int) string {
	return MetadataItemsKey + "_" + strconv.Itoa(i)
}

func splitRunes(value string, size int) []string {
	var chunks []string
	for value != "" {
		end, count := 0, 0
		for end < len(value) && count < size {
			_, width := utf8.DecodeRuneInString(value[end:])
			end += width
			count++
		}
		chunks = append(chunks, value[:end])
		value = value[end:]
	}
	return chunks
}

// DecodeMetadataItems parses the line items from session metadata, reassembling chunked values.
// Missing metadata yields no items.
func DecodeMetadataItems(metadata map[string]string) ([]MetadataItem, error) {
	raw := strings.TrimSpace(metadata[MetadataItemsKey])
	if raw == "" {
		var b strings.Builder
		for i := 0; ; i++ {
			chunk, ok := metadata[itemsChunkKey(i)]
			if !ok {
				break
			}
			b.WriteString(chunk)
		}
		raw = strings.TrimSpace(b.String())
	}
	if raw == "" {
		return nil, nil
	}
	var items []MetadataItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: items metadata: %w", ErrMalformedEvent, err)
	}
	return items, nil
}

// WebhookOption customises the verifier.
type WebhookOption func(*StripeWebhookVerifier)

// WithTolerance overrides the accepted signature timestamp skew.
func WithTolerance(d time.Duration) WebhookOption {
	return func(v *StripeWebhookVerifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// StripeWebhookVerifier authenticates Stripe webhook deliveries against the endpoint secret.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeWebhookVerifier constructs a verifier for the given endpoint secret.
func NewStripeWebhookVerifier(secret string, opts ...WebhookOption) (*StripeWebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe webhook: signing secret is required")
	}
	v := &StripeWebhookVerifier{
		secret:    secret,
		tolerance: webhook.DefaultTolerance,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify checks the signature header over the raw payload and decodes the event.
func (v *StripeWebhookVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if v == nil {
		return Event{}, ErrInvalidSignature
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return Event{}, ErrInvalidSignature
	}
	raw, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, ErrInvalidSignature
	}
	return decodeEvent(raw)
}

func decodeEvent(raw stripe.Event) (Event, error) {
	event := Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return event, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, raw.ID)
	}

	switch event.Type {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return event, fmt.Errorf("%w: checkout session: %w", ErrMalformedEvent, err)
		}
		if strings.TrimSpace(session.ID) == "" {
			return event, fmt.Errorf("%w: checkout session without id", ErrMalformedEvent)
		}
		completion := checkoutCompletion(&session)
		address, err := collectedShippingAddress(raw.Data.Raw)
		if err != nil {
			return event, fmt.Errorf("%w: collected information: %w", ErrMalformedEvent, err)
		}
		if address != nil {
			completion.ShippingAddress = address
		}
		event.Checkout = completion
	case EventPaymentIntentSucceeded, EventPaymentIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &intent); err != nil {
			return event, fmt.Errorf("%w: payment intent: %w", ErrMalformedEvent, err)
		}
		event.PaymentIntentID = intent.ID
	}
	return event, nil
}

func checkoutCompletion(session *stripe.CheckoutSession) *CheckoutCompletion {
	out := &CheckoutCompletion{
		SessionID:      session.ID,
		PaymentStatus:  string(session.PaymentStatus),
		CustomerEmail:  strings.TrimSpace(session.CustomerEmail),
		Metadata:       session.Metadata,
		AmountSubtotal: session.AmountSubtotal,
		AmountTotal:    session.AmountTotal,
	}
	if out.CustomerEmail == "" && session.CustomerDetails != nil {
		out.CustomerEmail = strings.TrimSpace(session.CustomerDetails.Email)
	}
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.ShippingCost != nil {
		out.AmountShipping = session.ShippingCost.AmountTotal
	}
	if session.TotalDetails != nil {
		out.AmountTax = session.TotalDetails.AmountTax
	}
	if details := session.ShippingDetails; details != nil && details.Address != nil {
		out.ShippingAddress = &domain.ShippingAddress{
			Name:       details.Name,
			Line1:      details.Address.Line1,
			Line2:      details.Address.Line2,
			City:       details.Address.City,
			State:      details.Address.State,
			PostalCode: details.Address.PostalCode,
			Country:    details.Address.Country,
		}
	}
	return out
}

// Newer API versions move the shipping address under collected_information, which
// stripe-go v78 does not model.
type collectedInformation struct {
	CollectedInformation *struct {
		ShippingDetails *struct {
			Name    string          `json:"name"`
			Address *stripe.Address `json:"address"`
		} `json:"shipping_details"`
	} `json:"collected_information"`
}

func collectedShippingAddress(data json.RawMessage) (*domain.ShippingAddress, error) {
	var info collectedInformation
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	if info.CollectedInformation == nil || info.CollectedInformation.ShippingDetails == nil {
		return nil, nil
	}
	details := info.CollectedInformation.ShippingDetails
	if details.Address == nil {
		return nil, nil
	}
	return &domain.ShippingAddress{
		Name:       details.Name,
		Line1:      details.Address.Line1,
		Line2:      details.Address.Line2,
		City:       details.Address.City,
		State:      details.Address.State,
		PostalCode: details.Address.PostalCode,
		Country:    details.Address.Country,
	}, nil
}
