package services

import (
	"context"
	"io"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	CartItem           = domain.CartItem
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	AdminUser          = domain.AdminUser
	ContactMessage     = domain.ContactMessage
	InterestCheck      = domain.InterestCheck
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService serves storefront product reads and admin product management.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListFeaturedProducts(ctx context.Context, limit int) ([]Product, error)
	// GetProductBySlug only returns active products.
	GetProductBySlug(ctx context.Context, slug string) (Product, error)

	ListAllProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	UploadProductImage(ctx context.Context, cmd UploadProductImageCommand) (ProductImage, error)
	DeleteProductImage(ctx context.Context, productID string, imageURL string) (Product, error)
}

// CreateProductCommand carries admin input for a new product. An empty Slug is derived from Name.
type CreateProductCommand struct {
	Name            string
	Slug            string
	Description     string
	Price           int64
	Images          []string
	Dimensions      domain.Dimensions
	Stock           int
	Featured        bool
	Active          bool
	StripeProductID string
	StripePriceID   string
}

// UpdateProductCommand is a partial patch; nil fields are left unchanged.
type UpdateProductCommand struct {
	ProductID       string
	Name            *string
	Slug            *string
	Description     *string
	Price           *int64
	Images          *[]string
	Dimensions      *domain.Dimensions
	Stock           *int
	Featured        *bool
	Active          *bool
	StripeProductID *string
	StripePriceID   *string
}

// UploadProductImageCommand streams one image for a product.
type UploadProductImageCommand struct {
	ProductID   string
	ContentType string
	Body        io.Reader
}

// ProductImage is an uploaded image together with the updated product.
type ProductImage struct {
	URL     string
	Path    string
	Product Product
}

// CheckoutService turns a cart snapshot into a hosted payment session.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error)
}

// CreateCheckoutSessionCommand is the checkout request. Origin is the caller's Origin header.
type CreateCheckoutSessionCommand struct {
	Items          []CartItem
	Email          string
	Origin         string
	IdempotencyKey string
}

// CheckoutSession is returned to the storefront for redirection.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// OrderService owns order creation from completed checkouts and admin order management.
type OrderService interface {
	// CreateFromCheckout stores the order for a completed checkout session. created is false
	// when the session already has an order, in which case that order's id is returned.
	CreateFromCheckout(ctx context.Context, completion payments.CheckoutCompletion) (order Order, created bool, err error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderByCheckoutSession(ctx context.Context, sessionID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	UpdateNotes(ctx context.Context, orderID string, notes string) (Order, error)
}

// OrderListFilter narrows the admin order list. Recent > 0 limits to the newest N orders.
type OrderListFilter struct {
	Status string
	Email  string
	Recent int
}

// UpdateOrderStatusCommand sets the status; an empty TrackingNumber keeps the stored one.
type UpdateOrderStatusCommand struct {
	OrderID        string
	Status         string
	TrackingNumber string
}

// PaymentWebhookService verifies and dispatches payment processor webhook deliveries.
type PaymentWebhookService interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) (WebhookResult, error)
}

// WebhookResult summarises how a delivery was handled.
type WebhookResult struct {
	EventID   string
	EventType string
	OrderID   string
	Created   bool
	Ignored   bool
}

// AdminService resolves admin role records for authenticated identities.
type AdminService interface {
	Authorize(ctx context.Context, uid string) (AdminUser, bool, error)
}

// ContactService records contact form submissions.
type ContactService interface {
	Submit(ctx context.Context, cmd SubmitContactCommand) (ContactMessage, error)
}

type SubmitContactCommand struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// InterestCheckService records interest survey submissions.
type InterestCheckService interface {
	Submit(ctx context.Context, cmd SubmitInterestCheckCommand) (InterestCheck, error)
}

type SubmitInterestCheckCommand struct {
	Mats          []string
	InterestLevel int
	PricePoints   []string
	OtherSizes    string
	Email         string
	Suggestions   string
}

// MaintenanceService runs scheduled housekeeping.
type MaintenanceService interface {
	CleanupIdempotencyKeys(ctx context.Context) (int, error)
}

// SystemService exposes readiness information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Order event types published on the order topic.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)

// OrderEvent is the message published for order lifecycle changes. Email is masked.
type OrderEvent struct {
	Type              string             `json:"type"`
	OrderID           string             `json:"orderId"`
	CheckoutSessionID string             `json:"checkoutSessionId,omitempty"`
	Status            domain.OrderStatus `json:"status"`
	PreviousStatus    domain.OrderStatus `json:"previousStatus,omitempty"`
	Total             int64              `json:"total"`
	Email             string             `json:"email,omitempty"`
	OccurredAt        time.Time          `json:"occurredAt"`
}

// OrderEventPublisher delivers order events to subscribers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}
