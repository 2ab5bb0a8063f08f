package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/ethanokamura/catmat/internal/domain"
	pfirestore "github.com/ethanokamura/catmat/internal/platform/firestore"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	orderCollection           = "orders"
	checkoutSessionCollection = "checkout-sessions"

	// Stripe retries and redeliveries contend on the same session marker.
	createTxAttempts = 10
)

// OrderRepository persists orders. Each order created from a checkout session is paired with a
// checkout-sessions/{sessionId} marker created in the same transaction, which makes a second
// creation for the session impossible even under concurrent webhook deliveries.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		provider: provider,
	}, nil
}

func (r *OrderRepository) CreateForCheckoutSession(ctx context.Context, order domain.Order) (string, bool, error) {
	sessionID := strings.TrimSpace(order.StripeCheckoutSessionID)
	if sessionID == "" {
		return "", false, pfirestore.WrapError("orders.create", errors.New("checkout session id is required"))
	}
	orderRef, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return "", false, err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return "", false, err
	}
	markerRef := client.Collection(checkoutSessionCollection).Doc(sessionID)
	doc := newOrderDocument(order)

	var (
		orderID string
		created bool
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderID, created = "", false

		snap, err := tx.Get(markerRef)
		if err == nil {
			var marker sessionMarker
			if err := snap.DataTo(&marker); err != nil {
				return err
			}
			orderID = marker.OrderID
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		if err := tx.Create(markerRef, sessionMarker{OrderID: order.ID, CreatedAt: doc.CreatedAt}); err != nil {
			return err
		}
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		orderID, created = order.ID, true
		return nil
	}, pfirestore.WithTxAttempts(createTxAttempts))
	if err != nil {
		return "", false, pfirestore.WrapError("orders.create", err)
	}
	return orderID, created, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *OrderRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("stripeCheckoutSessionId", "==", strings.TrimSpace(sessionID)).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFoundError("orders.find_by_session", "order")
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if email := strings.TrimSpace(filter.Email); email != "" {
			q = q.Where("email", "==", email)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, update repositories.OrderStatusUpdate) (domain.Order, domain.Order, error) {
	var before, after domain.Order
	err := r.mutate(ctx, "orders.update_status", update.OrderID, func(doc *orderDocument) {
		before = doc.toDomain(update.OrderID)
		doc.Status = string(update.Status)
		if tracking := strings.TrimSpace(update.TrackingNumber); tracking != "" {
			doc.TrackingNumber = tracking
		}
		doc.UpdatedAt = update.UpdatedAt.UTC()
		after = doc.toDomain(update.OrderID)
	})
	if err != nil {
		return domain.Order{}, domain.Order{}, err
	}
	return before, after, nil
}

// UpdateNotes is a blind field update; notes never depend on the stored order.
func (r *OrderRepository) UpdateNotes(ctx context.Context, orderID string, notes string, updatedAt time.Time) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	err := r.base.Update(ctx, orderID, []firestore.Update{
		{Path: "notes", Value: notes},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
	if err != nil {
		return domain.Order{}, err
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// mutate reads the order inside a transaction, applies fn and writes the result back. A missing
// order surfaces as a not-found error.
func (r *OrderRepository) mutate(ctx context.Context, op string, orderID string, fn func(*orderDocument)) error {
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		fn(&doc)
		return tx.Set(ref, doc)
	})
	return pfirestore.WrapError(op, err)
}

type sessionMarker struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderItemDocument struct {
	ProductID       string `firestore:"productId"`
	ProductName     string `firestore:"productName"`
	Quantity        int    `firestore:"quantity"`
	PriceAtPurchase int64  `firestore:"priceAtPurchase"`
}

type addressDocument struct {
	Name       string `firestore:"name"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderDocument struct {
	UserID                  string              `firestore:"userId,omitempty"`
	Email                   string              `firestore:"email"`
	Items                   []orderItemDocument `firestore:"items"`
	Subtotal                int64               `firestore:"subtotal"`
	Shipping                int64               `firestore:"shipping"`
	Tax                     int64               `firestore:"tax"`
	Total                   int64               `firestore:"total"`
	Status                  string              `firestore:"status"`
	ShippingAddress         *addressDocument    `firestore:"shippingAddress"`
	StripePaymentIntentID   string              `firestore:"stripePaymentIntentId,omitempty"`
	StripeCheckoutSessionID string              `firestore:"stripeCheckoutSessionId"`
	TrackingNumber          string              `firestore:"trackingNumber,omitempty"`
	Notes                   string              `firestore:"notes,omitempty"`
	CreatedAt               time.Time           `firestore:"createdAt"`
	UpdatedAt               time.Time           `firestore:"updatedAt"`
}

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDocument{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	doc := orderDocument{
		UserID:                  o.UserID,
		Email:                   o.Email,
		Items:                   items,
		Subtotal:                o.Subtotal,
		Shipping:                o.Shipping,
		Tax:                     o.Tax,
		Total:                   o.Total,
		Status:                  string(o.Status),
		StripePaymentIntentID:   o.StripePaymentIntentID,
		StripeCheckoutSessionID: o.StripeCheckoutSessionID,
		TrackingNumber:          o.TrackingNumber,
		Notes:                   o.Notes,
		CreatedAt:               o.CreatedAt.UTC(),
		UpdatedAt:               o.UpdatedAt.UTC(),
	}
	if a := o.ShippingAddress; a != nil {
		doc.ShippingAddress = &addressDocument{
			Name:       a.Name,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	order := domain.Order{
		ID:                      id,
		UserID:                  d.UserID,
		Email:                   d.Email,
		Items:                   items,
		Subtotal:                d.Subtotal,
		Shipping:                d.Shipping,
		Tax:                     d.Tax,
		Total:                   d.Total,
		Status:                  domain.OrderStatus(d.Status),
		StripePaymentIntentID:   d.StripePaymentIntentID,
		StripeCheckoutSessionID: d.StripeCheckoutSessionID,
		TrackingNumber:          d.TrackingNumber,
		Notes:                   d.Notes,
		CreatedAt:               d.CreatedAt.UTC(),
		UpdatedAt:               d.UpdatedAt.UTC(),
	}
	if a := d.ShippingAddress; a != nil {
		order.ShippingAddress = &domain.ShippingAddress{
			Name:       a.Name,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	return order
}
