package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/payments"
	"github.com/ethanokamura/catmat/internal/repositories"
)

var orderTestNow = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestOrderService(t *testing.T, repo *stubOrderRepository, publisher OrderEventPublisher) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      repo,
		Events:      publisher,
		Clock:       fixedClock(orderTestNow),
		IDGenerator: fixedID("ord_1"),
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func testCompletion(t *testing.T) payments.CheckoutCompletion {
	t.Helper()
	items, err := payments.EncodeMetadataItems([]payments.MetadataItem{
		{ProductID: "p1", Name: "Cozy Mat", Quantity: 2, Price: 3900},
	})
	if err != nil {
		t.Fatalf("EncodeMetadataItems: %v", err)
	}
	return payments.CheckoutCompletion{
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_1",
		CustomerEmail:   "buyer@example.com",
		Metadata:        map[string]string{payments.MetadataItemsKey: items},
		AmountSubtotal:  7800,
		AmountShipping:  500,
		AmountTax:       640,
		AmountTotal:     8940,
		ShippingAddress: &domain.ShippingAddress{Name: "Buyer", Line1: "1 Main St", City: "Portland", Country: "US"},
	}
}

func TestOrderServiceCreateFromCheckoutBuildsOrder(t *testing.T) {
	var stored domain.Order
	repo := &stubOrderRepository{
		createFn: func(_ context.Context, order domain.Order) (string, bool, error) {
			stored = order
			return order.ID, true, nil
		},
	}
	publisher := &recordingPublisher{}
	svc := newTestOrderService(t, repo, publisher)

	order, created, err := svc.CreateFromCheckout(context.Background(), testCompletion(t))
	if err != nil {
		t.Fatalf("CreateFromCheckout: %v", err)
	}
	if !created {
		t.Fatal("expected order to be created")
	}
	if order.ID != "ord_1" || stored.ID != "ord_1" {
		t.Fatalf("unexpected id %q", order.ID)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing status, got %s", order.Status)
	}
	if order.Subtotal != 7800 || order.Shipping != 500 || order.Tax != 640 || order.Total != 8940 {
		t.Fatalf("unexpected totals %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "Cozy Mat" || order.Items[0].PriceAtPurchase != 3900 {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if order.StripeCheckoutSessionID != "cs_test_1" || order.StripePaymentIntentID != "pi_1" {
		t.Fatalf("unexpected stripe references %+v", order)
	}
	if order.ShippingAddress == nil || order.ShippingAddress.City != "Portland" {
		t.Fatalf("expected shipping address, got %+v", order.ShippingAddress)
	}
	if !order.CreatedAt.Equal(orderTestNow) {
		t.Fatalf("unexpected createdAt %s", order.CreatedAt)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != OrderEventCreated || event.OrderID != "ord_1" || event.Total != 8940 {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Email == "buyer@example.com" {
		t.Fatal("expected masked email in event")
	}
}

func TestOrderServiceCreateFromCheckoutDuplicateReturnsExisting(t *testing.T) {
	repo := &stubOrderRepository{
		createFn: func(context.Context, domain.Order) (string, bool, error) {
			return "ord_existing", false, nil
		},
		findByIDFn: func(_ context.Context, id string) (domain.Order, error) {
			return domain.Order{ID: id, StripeCheckoutSessionID: "cs_test_1"}, nil
		},
	}
	publisher := &recordingPublisher{}
	svc := newTestOrderService(t, repo, publisher)

	order, created, err := svc.CreateFromCheckout(context.Background(), testCompletion(t))
	if err != nil {
		t.Fatalf("CreateFromCheckout: %v", err)
	}
	if created || order.ID != "ord_existing" {
		t.Fatalf("expected existing order, got %+v created=%v", order, created)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no event for duplicate, got %d", len(publisher.events))
	}
}

func TestOrderServiceCreateFromCheckoutRejectsInconsistentTotals(t *testing.T) {
	repo := &stubOrderRepository{
		createFn: func(context.Context, domain.Order) (string, bool, error) {
			t.Fatal("create should not be called")
			return "", false, nil
		},
	}
	svc := newTestOrderService(t, repo, nil)

	completion := testCompletion(t)
	completion.AmountTotal = 9999
	_, _, err := svc.CreateFromCheckout(context.Background(), completion)
	if !errors.Is(err, ErrOrderInconsistentTotals) {
		t.Fatalf("expected inconsistent totals, got %v", err)
	}
}

func TestOrderServiceCreateFromCheckoutRejectsMalformedMetadata(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepository{}, nil)

	completion := testCompletion(t)
	completion.Metadata = map[string]string{payments.MetadataItemsKey: "{not json"}
	if _, _, err := svc.CreateFromCheckout(context.Background(), completion); !errors.Is(err, ErrOrderInvalidCheckout) {
		t.Fatalf("expected invalid checkout, got %v", err)
	}

	completion = testCompletion(t)
	completion.SessionID = ""
	if _, _, err := svc.CreateFromCheckout(context.Background(), completion); !errors.Is(err, ErrOrderInvalidCheckout) {
		t.Fatalf("expected invalid checkout for missing session, got %v", err)
	}
}

func TestOrderServiceCreateFromCheckoutIgnoresPublishFailure(t *testing.T) {
	recorder := &eventRecorder{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: &stubOrderRepository{},
		Events: &recordingPublisher{err: errors.New("pubsub down")},
		Logger: recorder.log,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	if _, created, err := svc.CreateFromCheckout(context.Background(), testCompletion(t)); err != nil || !created {
		t.Fatalf("expected creation despite publish failure, got created=%v err=%v", created, err)
	}
	if !recorder.has("orders.event.publish_failed") {
		t.Fatal("expected publish failure to be logged")
	}
}

func TestOrderServiceUpdateStatus(t *testing.T) {
	var update repositories.OrderStatusUpdate
	repo := &stubOrderRepository{
		updateStatusFn: func(_ context.Context, u repositories.OrderStatusUpdate) (domain.Order, domain.Order, error) {
			update = u
			before := domain.Order{ID: u.OrderID, Status: domain.OrderStatusProcessing, TrackingNumber: "OLD"}
			after := before
			after.Status = u.Status
			if u.TrackingNumber != "" {
				after.TrackingNumber = u.TrackingNumber
			}
			after.UpdatedAt = u.UpdatedAt
			return before, after, nil
		},
	}
	publisher := &recordingPublisher{}
	svc := newTestOrderService(t, repo, publisher)

	order, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:        "ord_1",
		Status:         " Shipped ",
		TrackingNumber: "1Z999",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if update.Status != domain.OrderStatusShipped || update.TrackingNumber != "1Z999" || !update.UpdatedAt.Equal(orderTestNow) {
		t.Fatalf("unexpected update %+v", update)
	}
	if order.Status != domain.OrderStatusShipped || order.TrackingNumber != "1Z999" {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(publisher.events) != 1 || publisher.events[0].PreviousStatus != domain.OrderStatusProcessing {
		t.Fatalf("expected status change event, got %+v", publisher.events)
	}

	order, err = svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "ord_1", Status: "delivered"})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.TrackingNumber != "OLD" {
		t.Fatalf("expected tracking number kept, got %q", order.TrackingNumber)
	}
}

func TestOrderServiceUpdateStatusIsPermissive(t *testing.T) {
	repo := &stubOrderRepository{
		updateStatusFn: func(_ context.Context, u repositories.OrderStatusUpdate) (domain.Order, domain.Order, error) {
			before := domain.Order{ID: u.OrderID, Status: domain.OrderStatusDelivered}
			after := before
			after.Status = u.Status
			return before, after, nil
		},
	}
	svc := newTestOrderService(t, repo, nil)

	order, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "ord_1", Status: "pending"})
	if err != nil {
		t.Fatalf("expected backward transition to be allowed, got %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestOrderServiceUpdateStatusErrors(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepository{}, nil)

	if _, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "ord_1", Status: "lost"}); !errors.Is(err, ErrOrderInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "missing", Status: "shipped"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{Status: "shipped"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOrderServiceListOrdersFilters(t *testing.T) {
	var got repositories.OrderFilter
	repo := &stubOrderRepository{
		listFn: func(_ context.Context, filter repositories.OrderFilter) ([]domain.Order, error) {
			got = filter
			return []domain.Order{{ID: "ord_1"}}, nil
		},
	}
	svc := newTestOrderService(t, repo, nil)

	orders, err := svc.ListOrders(context.Background(), OrderListFilter{Status: "shipped", Email: "Buyer@Example.com", Recent: DefaultRecentOrders})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("unexpected orders %v", orders)
	}
	if got.Status == nil || *got.Status != domain.OrderStatusShipped {
		t.Fatalf("expected status filter, got %+v", got)
	}
	if got.Email != "Buyer@Example.com" || got.Limit != DefaultRecentOrders {
		t.Fatalf("unexpected filter %+v", got)
	}

	if _, err := svc.ListOrders(context.Background(), OrderListFilter{Status: "lost"}); !errors.Is(err, ErrOrderInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestOrderServiceGetOrderByCheckoutSession(t *testing.T) {
	repo := &stubOrderRepository{
		findBySessionFn: func(_ context.Context, sessionID string) (domain.Order, error) {
			if sessionID == "cs_1" {
				return domain.Order{ID: "ord_1"}, nil
			}
			return domain.Order{}, repoErr{notFound: true}
		},
	}
	svc := newTestOrderService(t, repo, nil)

	if order, err := svc.GetOrderByCheckoutSession(context.Background(), "cs_1"); err != nil || order.ID != "ord_1" {
		t.Fatalf("expected order, got %+v %v", order, err)
	}
	if _, err := svc.GetOrderByCheckoutSession(context.Background(), "cs_2"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceUpdateNotesSanitises(t *testing.T) {
	var gotNotes string
	repo := &stubOrderRepository{
		updateNotesFn: func(_ context.Context, id, notes string, _ time.Time) (domain.Order, error) {
			gotNotes = notes
			return domain.Order{ID: id, Notes: notes}, nil
		},
	}
	svc := newTestOrderService(t, repo, nil)

	if _, err := svc.UpdateNotes(context.Background(), "ord_1", `gift wrap<script>x</script>`); err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if gotNotes != "gift wrap" {
		t.Fatalf("expected sanitised notes, got %q", gotNotes)
	}
}
