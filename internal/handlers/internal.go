package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ethanokamura/catmat/internal/platform/auth"
	"github.com/ethanokamura/catmat/internal/platform/httpx"
	"github.com/ethanokamura/catmat/internal/platform/observability"
	"github.com/ethanokamura/catmat/internal/services"
)

// InternalHandlers serves scheduler-triggered maintenance under /internal. The group is expected
// to be guarded by OIDC middleware.
type InternalHandlers struct {
	maintenance services.MaintenanceService
}

func NewInternalHandlers(maintenance services.MaintenanceService) *InternalHandlers {
	return &InternalHandlers{maintenance: maintenance}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/idempotency-cleanup", h.cleanupIdempotency)
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

func (h *InternalHandlers) cleanupIdempotency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maintenance == nil {
		serviceUnavailable(ctx, w, "maintenance")
		return
	}
	removed, err := h.maintenance.CleanupIdempotencyKeys(ctx)
	if err != nil {
		observability.FromContext(ctx).Error("idempotency cleanup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal("cleanup_failed"))
		return
	}
	caller := ""
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		caller = identity.Email
	}
	observability.FromContext(ctx).Info("idempotency cleanup completed",
		zap.Int("removed", removed),
		zap.String("caller", caller),
	)
	writeJSONResponse(w, http.StatusOK, cleanupResponse{Removed: removed})
}
