package domain

import (
	"strings"
	"time"
)

// DimensionUnit is the unit a product's measurements are expressed in.
type DimensionUnit string

const (
	UnitInches      DimensionUnit = "in"
	UnitCentimeters DimensionUnit = "cm"
	UnitMillimeters DimensionUnit = "mm"
)

// Valid reports whether u is one of the supported units.
func (u DimensionUnit) Valid() bool {
	switch u {
	case UnitInches, UnitCentimeters, UnitMillimeters:
		return true
	default:
		return false
	}
}

// Dimensions describes the physical size of a mat.
type Dimensions struct {
	Width     float64
	Height    float64
	Thickness float64
	Unit      DimensionUnit
}

// Product is a catalog entry. Price is in minor currency units (cents).
type Product struct {
	ID              string
	Slug            string
	Name            string
	Description     string
	Price           int64
	Images          []string
	Dimensions      Dimensions
	Stock           int
	Featured        bool
	Active          bool
	StripeProductID string
	StripePriceID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FirstImage returns the primary image URL or "".
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CartItem pairs a product snapshot with a quantity. Quantity is at least 1 in a valid cart.
type CartItem struct {
	ProductID string
	Product   Product
	Quantity  int
}

// Subtotal is price times quantity.
func (i CartItem) Subtotal() int64 {
	return i.Product.Price * int64(i.Quantity)
}

// OrderStatus is the lifecycle state of an order:
// pending -> processing -> shipped -> delivered, with cancelled and refunded reachable by admin action.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// ParseOrderStatus normalises s and reports whether it names a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.Valid()
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no automatic transition leaves s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderItem is a line item frozen at purchase time.
type OrderItem struct {
	ProductID       string
	ProductName     string
	Quantity        int
	PriceAtPurchase int64
}

// ShippingAddress is the address collected by the payment processor.
type ShippingAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Order is a paid purchase. Monetary fields are minor units and Total == Subtotal + Shipping + Tax.
type Order struct {
	ID                      string
	UserID                  string
	Email                   string
	Items                   []OrderItem
	Subtotal                int64
	Shipping                int64
	Tax                     int64
	Total                   int64
	Status                  OrderStatus
	ShippingAddress         *ShippingAddress
	StripePaymentIntentID   string
	StripeCheckoutSessionID string
	TrackingNumber          string
	Notes                   string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// TotalsBalanced reports whether the monetary breakdown adds up.
func (o Order) TotalsBalanced() bool {
	return o.Total == o.Subtotal+o.Shipping+o.Tax
}

// ItemCount sums line item quantities.
func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// AdminRole distinguishes admin records. Both roles currently have the same capabilities.
type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

func (r AdminRole) Valid() bool {
	return r == AdminRoleAdmin || r == AdminRoleSuperAdmin
}

// AdminUser is the role record stored at admins/{uid}.
type AdminUser struct {
	UID         string
	Email       string
	DisplayName string
	Role        AdminRole
	CreatedAt   time.Time
}

// ContactMessage is a storefront contact form submission.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// InterestCheck is a product interest survey submission. Optional text fields are nil when empty.
type InterestCheck struct {
	ID            string
	Mats          []string
	InterestLevel int
	PricePoints   []string
	OtherSizes    *string
	Email         *string
	Suggestions   *string
	CreatedAt     time.Time
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for /readyz.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
