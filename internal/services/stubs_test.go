package services

import (
	"context"
	"io"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/platform/storage"
	"github.com/ethanokamura/catmat/internal/repositories"
)

type repoErr struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoErr) Error() string       { return "repository error" }
func (e repoErr) IsNotFound() bool    { return e.notFound }
func (e repoErr) IsConflict() bool    { return e.conflict }
func (e repoErr) IsUnavailable() bool { return e.unavailable }

type stubProductRepository struct {
	listFn       func(context.Context, repositories.ProductFilter) ([]domain.Product, error)
	findByIDFn   func(context.Context, string) (domain.Product, error)
	findBySlugFn func(context.Context, string) (domain.Product, error)
	insertFn     func(context.Context, domain.Product) error
	updateFn     func(context.Context, domain.Product) error
	deleteFn     func(context.Context, string) error
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductFilter) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return domain.Product{}, repoErr{notFound: true}
}

func (s *stubProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if s.findBySlugFn != nil {
		return s.findBySlugFn(ctx, slug)
	}
	return domain.Product{}, repoErr{notFound: true}
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

type stubImageStore struct {
	uploadFn func(context.Context, string, string, io.Reader) (storage.UploadedImage, error)
	deleted  []string
	deleteFn func(context.Context, string) error
}

func (s *stubImageStore) Upload(ctx context.Context, slug, contentType string, r io.Reader) (storage.UploadedImage, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, slug, contentType, r)
	}
	return storage.UploadedImage{}, nil
}

func (s *stubImageStore) DeleteByURL(ctx context.Context, url string) error {
	s.deleted = append(s.deleted, url)
	if s.deleteFn != nil {
		return s.deleteFn(ctx, url)
	}
	return nil
}

type stubOrderRepository struct {
	createFn        func(context.Context, domain.Order) (string, bool, error)
	findByIDFn      func(context.Context, string) (domain.Order, error)
	findBySessionFn func(context.Context, string) (domain.Order, error)
	listFn          func(context.Context, repositories.OrderFilter) ([]domain.Order, error)
	updateStatusFn  func(context.Context, repositories.OrderStatusUpdate) (domain.Order, domain.Order, error)
	updateNotesFn   func(context.Context, string, string, time.Time) (domain.Order, error)
}

func (s *stubOrderRepository) CreateForCheckoutSession(ctx context.Context, order domain.Order) (string, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, order)
	}
	return order.ID, true, nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return domain.Order{}, repoErr{notFound: true}
}

func (s *stubOrderRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error) {
	if s.findBySessionFn != nil {
		return s.findBySessionFn(ctx, sessionID)
	}
	return domain.Order{}, repoErr{notFound: true}
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, update repositories.OrderStatusUpdate) (domain.Order, domain.Order, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, update)
	}
	return domain.Order{}, domain.Order{}, repoErr{notFound: true}
}

func (s *stubOrderRepository) UpdateNotes(ctx context.Context, id, notes string, updatedAt time.Time) (domain.Order, error) {
	if s.updateNotesFn != nil {
		return s.updateNotesFn(ctx, id, notes, updatedAt)
	}
	return domain.Order{}, repoErr{notFound: true}
}

type recordingPublisher struct {
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	p.events = append(p.events, event)
	if p.err != nil {
		return "", p.err
	}
	return "msg-1", nil
}

type recordedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) log(_ context.Context, name string, fields map[string]any) {
	r.events = append(r.events, recordedEvent{name: name, fields: fields})
}

func (r *eventRecorder) has(name string) bool {
	for _, e := range r.events {
		if e.name == name {
			return true
		}
	}
	return false
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func fixedID(id string) func() string {
	return func() string { return id }
}
