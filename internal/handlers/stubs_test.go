package handlers

import (
	"context"
	"errors"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/ethanokamura/catmat/internal/payments"
	"github.com/ethanokamura/catmat/internal/services"
)

type stubCatalogService struct {
	listFn        func(context.Context) ([]services.Product, error)
	featuredFn    func(context.Context, int) ([]services.Product, error)
	bySlugFn      func(context.Context, string) (services.Product, error)
	listAllFn     func(context.Context) ([]services.Product, error)
	getFn         func(context.Context, string) (services.Product, error)
	createFn      func(context.Context, services.CreateProductCommand) (services.Product, error)
	updateFn      func(context.Context, services.UpdateProductCommand) (services.Product, error)
	deleteFn      func(context.Context, string) error
	uploadFn      func(context.Context, services.UploadProductImageCommand) (services.ProductImage, error)
	deleteImageFn func(context.Context, string, string) (services.Product, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context) ([]services.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) ListFeaturedProducts(ctx context.Context, limit int) ([]services.Product, error) {
	if s.featuredFn != nil {
		return s.featuredFn(ctx, limit)
	}
	return nil, nil
}

func (s *stubCatalogService) GetProductBySlug(ctx context.Context, slug string) (services.Product, error) {
	if s.bySlugFn != nil {
		return s.bySlugFn(ctx, slug)
	}
	return services.Product{}, services.ErrCatalogProductNotFound
}

func (s *stubCatalogService) ListAllProducts(ctx context.Context) ([]services.Product, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return services.Product{}, services.ErrCatalogProductNotFound
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.CreateProductCommand) (services.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID)
	}
	return errors.New("not implemented")
}

func (s *stubCatalogService) UploadProductImage(ctx context.Context, cmd services.UploadProductImageCommand) (services.ProductImage, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, cmd)
	}
	return services.ProductImage{}, errors.New("not implemented")
}

func (s *stubCatalogService) DeleteProductImage(ctx context.Context, productID, imageURL string) (services.Product, error) {
	if s.deleteImageFn != nil {
		return s.deleteImageFn(ctx, productID, imageURL)
	}
	return services.Product{}, errors.New("not implemented")
}

type stubCheckoutService struct {
	calls    int
	createFn func(context.Context, services.CreateCheckoutSessionCommand) (services.CheckoutSession, error)
}

func (s *stubCheckoutService) CreateCheckoutSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
	s.calls++
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.CheckoutSession{}, errors.New("not implemented")
}

type stubOrderService struct {
	createFn    func(context.Context, payments.CheckoutCompletion) (services.Order, bool, error)
	getFn       func(context.Context, string) (services.Order, error)
	bySessionFn func(context.Context, string) (services.Order, error)
	listFn      func(context.Context, services.OrderListFilter) ([]services.Order, error)
	statusFn    func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	notesFn     func(context.Context, string, string) (services.Order, error)
}

func (s *stubOrderService) CreateFromCheckout(ctx context.Context, completion payments.CheckoutCompletion) (services.Order, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, completion)
	}
	return services.Order{}, false, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) GetOrderByCheckoutSession(ctx context.Context, sessionID string) (services.Order, error) {
	if s.bySessionFn != nil {
		return s.bySessionFn(ctx, sessionID)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) ([]services.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateNotes(ctx context.Context, orderID, notes string) (services.Order, error) {
	if s.notesFn != nil {
		return s.notesFn(ctx, orderID, notes)
	}
	return services.Order{}, errors.New("not implemented")
}

type stubWebhookService struct {
	payload   []byte
	signature string
	result    services.WebhookResult
	err       error
}

func (s *stubWebhookService) HandleEvent(_ context.Context, payload []byte, signature string) (services.WebhookResult, error) {
	s.payload = payload
	s.signature = signature
	return s.result, s.err
}

type stubContactService struct {
	calls int
	fn    func(context.Context, services.SubmitContactCommand) (services.ContactMessage, error)
}

func (s *stubContactService) Submit(ctx context.Context, cmd services.SubmitContactCommand) (services.ContactMessage, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(ctx, cmd)
	}
	return services.ContactMessage{ID: "msg-1"}, nil
}

type stubInterestService struct {
	fn func(context.Context, services.SubmitInterestCheckCommand) (services.InterestCheck, error)
}

func (s *stubInterestService) Submit(ctx context.Context, cmd services.SubmitInterestCheckCommand) (services.InterestCheck, error) {
	if s.fn != nil {
		return s.fn(ctx, cmd)
	}
	return services.InterestCheck{ID: "ic-1"}, nil
}

type stubMaintenanceService struct {
	removed int
	err     error
	calls   int
}

func (s *stubMaintenanceService) CleanupIdempotencyKeys(context.Context) (int, error) {
	s.calls++
	return s.removed, s.err
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

// stubTokenVerifier accepts "Bearer <uid>" tokens except "bad".
type stubTokenVerifier struct{}

func (stubTokenVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	if token == "bad" {
		return nil, errors.New("invalid token")
	}
	return &firebaseauth.Token{UID: token, Claims: map[string]interface{}{"email": token + "@example.com"}}, nil
}

type stubAdminAuthorizer struct {
	admins map[string]services.AdminUser
}

func (s stubAdminAuthorizer) Authorize(_ context.Context, uid string) (services.AdminUser, bool, error) {
	admin, ok := s.admins[uid]
	return admin, ok, nil
}
