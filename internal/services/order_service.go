package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/payments"
	"github.com/ethanokamura/catmat/internal/platform/observability"
	"github.com/ethanokamura/catmat/internal/platform/textutil"
	"github.com/ethanokamura/catmat/internal/repositories"
)

// DefaultRecentOrders is the list size used when the newest orders are requested without a count.
const DefaultRecentOrders = 10

const (
	maxOrderListLimit   = 200
	maxOrderNotesLength = 5000
	maxTrackingLength   = 128
)

var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidInput indicates malformed input such as an empty id.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderInvalidStatus indicates an unknown status string.
	ErrOrderInvalidStatus = errors.New("order: invalid status")
	// ErrOrderInvalidCheckout indicates a completed checkout that cannot be turned into an order.
	ErrOrderInvalidCheckout = errors.New("order: invalid checkout completion")
	// ErrOrderInconsistentTotals indicates processor totals that do not add up.
	ErrOrderInconsistentTotals = errors.New("order: inconsistent totals")
	// ErrOrderUnavailable indicates the order store is unavailable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// OrderServiceDeps wires the dependencies of the order service. Events is optional.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	now    func() time.Time
	newID  func() string
	logger func(ctx context.Context, event string, fields map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs an OrderService.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders: deps.Orders,
		events: deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *orderService) CreateFromCheckout(ctx context.Context, completion payments.CheckoutCompletion) (Order, bool, error) {
	order, err := s.orderFromCheckout(completion)
	if err != nil {
		s.logger(ctx, "webhook.order.rejected", map[string]any{
			"sessionId": completion.SessionID,
			"error":     err.Error(),
		})
		return Order{}, false, err
	}

	orderID, created, err := s.orders.CreateForCheckoutSession(ctx, order)
	if err != nil {
		return Order{}, false, s.mapRepoError(err)
	}
	if !created {
		existing, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, false, s.mapRepoError(err)
		}
		s.logger(ctx, "webhook.order.duplicate", map[string]any{
			"orderId":   orderID,
			"sessionId": order.StripeCheckoutSessionID,
		})
		return existing, false, nil
	}

	s.logger(ctx, "webhook.order.created", map[string]any{
		"orderId":   order.ID,
		"sessionId": order.StripeCheckoutSessionID,
		"total":     order.Total,
		"items":     order.ItemCount(),
	})
	s.publish(ctx, OrderEvent{
		Type:              OrderEventCreated,
		OrderID:           order.ID,
		CheckoutSessionID: order.StripeCheckoutSessionID,
		Status:            order.Status,
		Total:             order.Total,
		Email:             observability.MaskEmail(order.Email),
		OccurredAt:        order.CreatedAt,
	})
	return order, true, nil
}

func (s *orderService) orderFromCheckout(completion payments.CheckoutCompletion) (domain.Order, error) {
	sessionID := strings.TrimSpace(completion.SessionID)
	if sessionID == "" {
		return domain.Order{}, fmt.Errorf("%w: missing session id", ErrOrderInvalidCheckout)
	}
	metadataItems, err := payments.DecodeMetadataItems(completion.Metadata)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", ErrOrderInvalidCheckout, err)
	}
	items := make([]domain.OrderItem, 0, len(metadataItems))
	for _, item := range metadataItems {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 1 {
			return domain.Order{}, fmt.Errorf("%w: malformed line item", ErrOrderInvalidCheckout)
		}
		items = append(items, domain.OrderItem{
			ProductID:       item.ProductID,
			ProductName:     item.Name,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.Price,
		})
	}

	now := s.now()
	order := domain.Order{
		ID:                      s.newID(),
		Email:                   strings.TrimSpace(completion.CustomerEmail),
		Items:                   items,
		Subtotal:                completion.AmountSubtotal,
		Shipping:                completion.AmountShipping,
		Tax:                     completion.AmountTax,
		Total:                   completion.AmountTotal,
		Status:                  domain.OrderStatusProcessing,
		ShippingAddress:         completion.ShippingAddress,
		StripePaymentIntentID:   strings.TrimSpace(completion.PaymentIntentID),
		StripeCheckoutSessionID: sessionID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if !order.TotalsBalanced() {
		return domain.Order{}, fmt.Errorf("%w: total %d != subtotal %d + shipping %d + tax %d",
			ErrOrderInconsistentTotals, order.Total, order.Subtotal, order.Shipping, order.Tax)
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepoError(err)
	}
	return order, nil
}

func (s *orderService) GetOrderByCheckoutSession(ctx context.Context, sessionID string) (Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Order{}, fmt.Errorf("%w: session id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByCheckoutSession(ctx, sessionID)
	if err != nil {
		return Order{}, s.mapRepoError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	repoFilter := repositories.OrderFilter{Limit: maxOrderListLimit}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, raw)
		}
		repoFilter.Status = &status
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid email", ErrOrderInvalidInput)
		}
		repoFilter.Email = addr.Address
	}
	if filter.Recent > 0 {
		repoFilter.Limit = min(filter.Recent, maxOrderListLimit)
	}

	orders, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return orders, nil
}

// UpdateStatus sets any known status. Transitions are not restricted.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status, ok := domain.ParseOrderStatus(cmd.Status)
	if !ok {
		return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, cmd.Status)
	}
	tracking := textutil.PlainText(cmd.TrackingNumber, maxTrackingLength)

	before, after, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:        orderID,
		Status:         status,
		TrackingNumber: tracking,
		UpdatedAt:      s.now(),
	})
	if err != nil {
		return Order{}, s.mapRepoError(err)
	}

	s.logger(ctx, "orders.status.updated", map[string]any{
		"orderId": after.ID,
		"from":    string(before.Status),
		"to":      string(after.Status),
	})
	if before.Status != after.Status {
		s.publish(ctx, OrderEvent{
			Type:              OrderEventStatusChanged,
			OrderID:           after.ID,
			CheckoutSessionID: after.StripeCheckoutSessionID,
			Status:            after.Status,
			PreviousStatus:    before.Status,
			Total:             after.Total,
			Email:             observability.MaskEmail(after.Email),
			OccurredAt:        after.UpdatedAt,
		})
	}
	return after, nil
}

func (s *orderService) UpdateNotes(ctx context.Context, orderID string, notes string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.UpdateNotes(ctx, orderID, textutil.Description(notes, maxOrderNotesLength), s.now())
	if err != nil {
		return Order{}, s.mapRepoError(err)
	}
	s.logger(ctx, "orders.notes.updated", map[string]any{"orderId": order.ID})
	return order, nil
}

func (s *orderService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	messageID, err := s.events.PublishOrderEvent(ctx, event)
	if err != nil {
		s.logger(ctx, "orders.event.publish_failed", map[string]any{
			"orderId": event.OrderID,
			"type":    event.Type,
			"error":   err.Error(),
		})
		return
	}
	s.logger(ctx, "orders.event.published", map[string]any{
		"orderId":   event.OrderID,
		"type":      event.Type,
		"messageId": messageID,
	})
}

func (s *orderService) mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrOrderNotFound
	case isRepoUnavailable(err):
		return fmt.Errorf("%w: %w", ErrOrderUnavailable, err)
	default:
		return err
	}
}
