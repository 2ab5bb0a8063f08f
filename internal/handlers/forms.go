package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethanokamura/catmat/internal/platform/httpx"
	"github.com/ethanokamura/catmat/internal/services"
)

const (
	maxFormBodySize        = 32 * 1024
	defaultFormRateLimit   = 5
	defaultFormRateWindow  = time.Minute
	formRateLimitedMessage = "too many submissions, try again later"
)

// FormHandlers accepts contact messages and interest check submissions from the storefront.
type FormHandlers struct {
	contact  services.ContactService
	interest services.InterestCheckService
	limiter  submissionLimiter
}

// FormOption customises FormHandlers.
type FormOption func(*formConfig)

type formConfig struct {
	limit  int
	window time.Duration
	clock  func() time.Time
}

// WithFormRateLimit caps submissions per client IP. A non-positive limit disables limiting.
func WithFormRateLimit(limit int, window time.Duration) FormOption {
	return func(cfg *formConfig) {
		cfg.limit = limit
		cfg.window = window
	}
}

// WithFormClock injects the clock used by the rate limiter.
func WithFormClock(clock func() time.Time) FormOption {
	return func(cfg *formConfig) {
		cfg.clock = clock
	}
}

func NewFormHandlers(contact services.ContactService, interest services.InterestCheckService, opts ...FormOption) *FormHandlers {
	cfg := formConfig{limit: defaultFormRateLimit, window: defaultFormRateWindow}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &FormHandlers{
		contact:  contact,
		interest: interest,
		limiter:  newWindowLimiter(cfg.limit, cfg.window, cfg.clock),
	}
}

// ContactRoutes registers POST / under /contact.
func (h *FormHandlers) ContactRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submitContact)
}

// InterestCheckRoutes registers POST / under /interest-checks.
func (h *FormHandlers) InterestCheckRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submitInterestCheck)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type interestCheckRequest struct {
	Mats          []string `json:"mats"`
	InterestLevel int      `json:"interestLevel"`
	PricePoints   []string `json:"pricePoints"`
	OtherSizes    string   `json:"otherSizes"`
	Email         string   `json:"email"`
	Suggestions   string   `json:"suggestions"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (h *FormHandlers) allow(ctx context.Context, w http.ResponseWriter, r *http.Request, scope string) bool {
	if h.limiter == nil {
		return true
	}
	ok, retryAfter := h.limiter.Allow(scope + ":" + clientKey(r))
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	httpx.WriteError(ctx, w, httpx.NewError("rate_limited", formRateLimitedMessage, http.StatusTooManyRequests))
	return false
}

func (h *FormHandlers) submitContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contact == nil {
		serviceUnavailable(ctx, w, "contact")
		return
	}
	if !h.allow(ctx, w, r, "contact") {
		return
	}
	var req contactRequest
	if err := decodeJSONBody(r, maxFormBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	msg, err := h.contact.Submit(ctx, services.SubmitContactCommand{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	switch {
	case err == nil:
		writeJSONResponse(w, http.StatusCreated, createdResponse{ID: msg.ID})
	case errors.Is(err, services.ErrContactInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrContactUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("contact_unavailable", "unable to save message", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("contact_error"))
	}
}

func (h *FormHandlers) submitInterestCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.interest == nil {
		serviceUnavailable(ctx, w, "interest_check")
		return
	}
	if !h.allow(ctx, w, r, "interest") {
		return
	}
	var req interestCheckRequest
	if err := decodeJSONBody(r, maxFormBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	check, err := h.interest.Submit(ctx, services.SubmitInterestCheckCommand{
		Mats:          req.Mats,
		InterestLevel: req.InterestLevel,
		PricePoints:   req.PricePoints,
		OtherSizes:    req.OtherSizes,
		Email:         req.Email,
		Suggestions:   req.Suggestions,
	})
	switch {
	case err == nil:
		writeJSONResponse(w, http.StatusCreated, createdResponse{ID: check.ID})
	case errors.Is(err, services.ErrInterestCheckInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrInterestCheckUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("interest_check_unavailable", "unable to save submission", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("interest_check_error"))
	}
}
