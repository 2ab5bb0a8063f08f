package handlers

import (
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
)

type orderItemPayload struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"priceAtPurchase"`
}

type shippingAddressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderPayload struct {
	ID                      string                  `json:"id"`
	UserID                  string                  `json:"userId,omitempty"`
	Email                   string                  `json:"email"`
	Items                   []orderItemPayload      `json:"items"`
	ItemCount               int                     `json:"itemCount"`
	Subtotal                int64                   `json:"subtotal"`
	Shipping                int64                   `json:"shipping"`
	Tax                     int64                   `json:"tax"`
	Total                   int64                   `json:"total"`
	Status                  string                  `json:"status"`
	ShippingAddress         *shippingAddressPayload `json:"shippingAddress"`
	StripePaymentIntentID   string                  `json:"stripePaymentIntentId,omitempty"`
	StripeCheckoutSessionID string                  `json:"stripeCheckoutSessionId,omitempty"`
	TrackingNumber          string                  `json:"trackingNumber,omitempty"`
	Notes                   string                  `json:"notes,omitempty"`
	CreatedAt               string                  `json:"createdAt,omitempty"`
	UpdatedAt               string                  `json:"updatedAt,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

// orderSummaryPayload is the customer-facing view shown after checkout. Admin notes and
// processor references are omitted.
type orderSummaryPayload struct {
	ID              string                  `json:"id"`
	Email           string                  `json:"email"`
	Items           []orderItemPayload      `json:"items"`
	Subtotal        int64                   `json:"subtotal"`
	Shipping        int64                   `json:"shipping"`
	Tax             int64                   `json:"tax"`
	Total           int64                   `json:"total"`
	Status          string                  `json:"status"`
	ShippingAddress *shippingAddressPayload `json:"shippingAddress"`
	TrackingNumber  string                  `json:"trackingNumber,omitempty"`
	CreatedAt       string                  `json:"createdAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:                      order.ID,
		UserID:                  order.UserID,
		Email:                   order.Email,
		Items:                   buildOrderItems(order.Items),
		ItemCount:               order.ItemCount(),
		Subtotal:                order.Subtotal,
		Shipping:                order.Shipping,
		Tax:                     order.Tax,
		Total:                   order.Total,
		Status:                  string(order.Status),
		ShippingAddress:         buildShippingAddress(order.ShippingAddress),
		StripePaymentIntentID:   order.StripePaymentIntentID,
		StripeCheckoutSessionID: order.StripeCheckoutSessionID,
		TrackingNumber:          order.TrackingNumber,
		Notes:                   order.Notes,
		CreatedAt:               formatTime(order.CreatedAt),
		UpdatedAt:               formatTime(order.UpdatedAt),
	}
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:              order.ID,
		Email:           order.Email,
		Items:           buildOrderItems(order.Items),
		Subtotal:        order.Subtotal,
		Shipping:        order.Shipping,
		Tax:             order.Tax,
		Total:           order.Total,
		Status:          string(order.Status),
		ShippingAddress: buildShippingAddress(order.ShippingAddress),
		TrackingNumber:  order.TrackingNumber,
		CreatedAt:       formatTime(order.CreatedAt),
	}
}

func buildOrderItems(items []domain.OrderItem) []orderItemPayload {
	out := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, orderItemPayload{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	return out
}

func buildShippingAddress(addr *domain.ShippingAddress) *shippingAddressPayload {
	if addr == nil {
		return nil
	}
	return &shippingAddressPayload{
		Name:       addr.Name,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
