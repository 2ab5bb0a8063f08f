package payments

import (
	"context"
	"errors"
	"time"
)

// ErrProcessorUnavailable is returned when the payment processor rejects or cannot serve a request.
var ErrProcessorUnavailable = errors.New("payments: processor unavailable")

// LineItem is one hosted-checkout line built from a cart product snapshot.
type LineItem struct {
	ProductID   string
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// ShippingOption is a fixed-amount shipping rate offered on the hosted checkout page.
type ShippingOption struct {
	DisplayName     string
	Amount          int64
	MinBusinessDays int64
	MaxBusinessDays int64
}

// DefaultShippingOptions are the business shipping rates, in cents.
var DefaultShippingOptions = []ShippingOption{
	{DisplayName: "Standard Shipping", Amount: 500, MinBusinessDays: 5, MaxBusinessDays: 7},
	{DisplayName: "Express Shipping", Amount: 1500, MinBusinessDays: 2, MaxBusinessDays: 3},
}

// DefaultShippingCountries are the countries shipping addresses may be collected for.
var DefaultShippingCountries = []string{"US", "CA"}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Currency         string
	CustomerEmail    string
	SuccessURL       string
	CancelURL        string
	Items            []LineItem
	ShippingOptions  []ShippingOption
	AllowedCountries []string
	Metadata         map[string]string
	IdempotencyKey   string
}

// CheckoutSession is the processor session returned to the client for redirection.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Provider creates hosted checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}
