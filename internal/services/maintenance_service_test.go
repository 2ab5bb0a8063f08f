package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/platform/idempotency"
)

type stubIdempotencyStore struct {
	idempotency.Store
	now   time.Time
	limit int
	n     int
	err   error
}

func (s *stubIdempotencyStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.now = now
	s.limit = limit
	return s.n, s.err
}

func TestMaintenanceServiceCleanupIdempotencyKeys(t *testing.T) {
	now := time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)
	store := &stubIdempotencyStore{n: 7}
	svc, err := NewMaintenanceService(MaintenanceServiceDeps{Idempotency: store, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewMaintenanceService: %v", err)
	}

	removed, err := svc.CleanupIdempotencyKeys(context.Background())
	if err != nil {
		t.Fatalf("CleanupIdempotencyKeys: %v", err)
	}
	if removed != 7 || store.limit != defaultCleanupBatchSize || !store.now.Equal(now) {
		t.Fatalf("unexpected cleanup call removed=%d limit=%d now=%s", removed, store.limit, store.now)
	}
}

func TestMaintenanceServiceCleanupWithMemoryStore(t *testing.T) {
	store := idempotency.NewMemoryStore()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Reserve(context.Background(), "k1", "fp", start, time.Hour); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	svc, err := NewMaintenanceService(MaintenanceServiceDeps{
		Idempotency:      store,
		CleanupBatchSize: 10,
		Clock:            fixedClock(start.Add(2 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("NewMaintenanceService: %v", err)
	}
	removed, err := svc.CleanupIdempotencyKeys(context.Background())
	if err != nil {
		t.Fatalf("CleanupIdempotencyKeys: %v", err)
	}
	if removed != 1 || store.Len() != 0 {
		t.Fatalf("expected expired key removed, got removed=%d len=%d", removed, store.Len())
	}
}

func TestMaintenanceServiceCleanupFailure(t *testing.T) {
	svc, err := NewMaintenanceService(MaintenanceServiceDeps{Idempotency: &stubIdempotencyStore{err: errors.New("boom")}})
	if err != nil {
		t.Fatalf("NewMaintenanceService: %v", err)
	}
	if _, err := svc.CleanupIdempotencyKeys(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock(now),
		Build:            BuildInfo{Version: "1.2.3", CommitSHA: "abc123", Environment: "prod", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("unexpected build metadata %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("unexpected uptime %s", report.Uptime)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected generatedAt %s", report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportPropagatesError(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: errors.New("boom")}})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
