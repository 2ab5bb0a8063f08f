package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethanokamura/catmat/internal/platform/idempotency"
)

const defaultCleanupBatchSize = 200

// MaintenanceServiceDeps wires scheduled housekeeping.
type MaintenanceServiceDeps struct {
	Idempotency      idempotency.Store
	CleanupBatchSize int
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type maintenanceService struct {
	store     idempotency.Store
	batchSize int
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

var _ MaintenanceService = (*maintenanceService)(nil)

func NewMaintenanceService(deps MaintenanceServiceDeps) (MaintenanceService, error) {
	if deps.Idempotency == nil {
		return nil, errors.New("maintenance service: idempotency store is required")
	}
	batch := deps.CleanupBatchSize
	if batch <= 0 {
		batch = defaultCleanupBatchSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &maintenanceService{
		store:     deps.Idempotency,
		batchSize: batch,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CleanupIdempotencyKeys removes up to one batch of expired idempotency records.
func (s *maintenanceService) CleanupIdempotencyKeys(ctx context.Context) (int, error) {
	removed, err := s.store.CleanupExpired(ctx, s.now(), s.batchSize)
	if err != nil {
		s.logger(ctx, "maintenance.idempotency.cleanup_failed", map[string]any{
			"removed": removed,
			"error":   err.Error(),
		})
		return removed, fmt.Errorf("maintenance: cleanup idempotency keys: %w", err)
	}
	s.logger(ctx, "maintenance.idempotency.cleaned", map[string]any{
		"removed":   removed,
		"batchSize": s.batchSize,
	})
	return removed, nil
}
