package repositories

import (
	"context"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductFilter narrows product listings. Results are ordered by createdAt descending.
type ProductFilter struct {
	ActiveOnly   bool
	FeaturedOnly bool
	Limit        int
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	// Insert fails with a conflict error when the id or slug is already taken.
	Insert(ctx context.Context, product domain.Product) error
	// Update replaces the stored product, failing with a conflict when the new slug belongs to
	// another product and not-found when the product is missing.
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
}

// OrderFilter narrows order listings. Results are ordered by createdAt descending.
type OrderFilter struct {
	Status *domain.OrderStatus
	Email  string
	Limit  int
}

// OrderStatusUpdate is a partial status mutation. An empty TrackingNumber keeps the stored value.
type OrderStatusUpdate struct {
	OrderID        string
	Status         domain.OrderStatus
	TrackingNumber string
	UpdatedAt      time.Time
}

// OrderRepository persists orders keyed by generated id with a uniqueness guarantee on the
// checkout session id.
type OrderRepository interface {
	// CreateForCheckoutSession atomically stores the order unless an order for the same
	// checkout session exists, in which case the existing id is returned with created=false.
	CreateForCheckoutSession(ctx context.Context, order domain.Order) (orderID string, created bool, err error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// UpdateStatus applies the update and returns the order as stored before and after.
	UpdateStatus(ctx context.Context, update OrderStatusUpdate) (before domain.Order, after domain.Order, err error)
	UpdateNotes(ctx context.Context, orderID string, notes string, updatedAt time.Time) (domain.Order, error)
}

// AdminRepository reads admin role records keyed by identity uid.
type AdminRepository interface {
	FindByUID(ctx context.Context, uid string) (domain.AdminUser, error)
}

// ContactMessageRepository appends contact form submissions.
type ContactMessageRepository interface {
	Insert(ctx context.Context, message domain.ContactMessage) error
}

// InterestCheckRepository appends interest survey submissions.
type InterestCheckRepository interface {
	Insert(ctx context.Context, check domain.InterestCheck) error
}

// HealthRepository aggregates dependency probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
