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
	"github.com/ethanokamura/catmat/internal/platform/textutil"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	minInterestLevel = 1
	maxInterestLevel = 5

	maxInterestListEntries = 20
	maxInterestEntryLength = 100
	maxInterestTextLength  = 2000
)

var (
	// ErrInterestCheckInvalidInput indicates the survey failed validation.
	ErrInterestCheckInvalidInput = errors.New("interest check: invalid input")
	// ErrInterestCheckUnavailable indicates the survey could not be stored.
	ErrInterestCheckUnavailable = errors.New("interest check: unavailable")
)

type InterestCheckServiceDeps struct {
	Checks      repositories.InterestCheckRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type interestCheckService struct {
	checks repositories.InterestCheckRepository
	now    func() time.Time
	newID  func() string
	logger func(ctx context.Context, event string, fields map[string]any)
}

var _ InterestCheckService = (*interestCheckService)(nil)

func NewInterestCheckService(deps InterestCheckServiceDeps) (InterestCheckService, error) {
	if deps.Checks == nil {
		return nil, errors.New("interest check service: repository is required")
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
	return &interestCheckService{
		checks: deps.Checks,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

// Submit stores the survey. Empty optional text fields are stored as nil.
func (s *interestCheckService) Submit(ctx context.Context, cmd SubmitInterestCheckCommand) (InterestCheck, error) {
	mats := textutil.NormalizeList(cmd.Mats, maxInterestEntryLength)
	if len(mats) == 0 {
		return InterestCheck{}, fmt.Errorf("%w: select at least one mat", ErrInterestCheckInvalidInput)
	}
	if len(mats) > maxInterestListEntries {
		return InterestCheck{}, fmt.Errorf("%w: too many mats", ErrInterestCheckInvalidInput)
	}
	if cmd.InterestLevel < minInterestLevel || cmd.InterestLevel > maxInterestLevel {
		return InterestCheck{}, fmt.Errorf("%w: interest level must be between %d and %d",
			ErrInterestCheckInvalidInput, minInterestLevel, maxInterestLevel)
	}
	pricePoints := textutil.NormalizeList(cmd.PricePoints, maxInterestEntryLength)
	if len(pricePoints) > maxInterestListEntries {
		return InterestCheck{}, fmt.Errorf("%w: too many price points", ErrInterestCheckInvalidInput)
	}
	if pricePoints == nil {
		pricePoints = []string{}
	}

	var email *string
	if raw := strings.TrimSpace(cmd.Email); raw != "" {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return InterestCheck{}, fmt.Errorf("%w: email is invalid", ErrInterestCheckInvalidInput)
		}
		email = &addr.Address
	}

	check := domain.InterestCheck{
		ID:            s.newID(),
		Mats:          mats,
		InterestLevel: cmd.InterestLevel,
		PricePoints:   pricePoints,
		OtherSizes:    textutil.OptionalText(cmd.OtherSizes, maxInterestTextLength),
		Email:         email,
		Suggestions:   textutil.OptionalText(cmd.Suggestions, maxInterestTextLength),
		CreatedAt:     s.now(),
	}
	if err := s.checks.Insert(ctx, check); err != nil {
		return InterestCheck{}, fmt.Errorf("%w: %w", ErrInterestCheckUnavailable, err)
	}
	s.logger(ctx, "interest_check.received", map[string]any{
		"checkId":       check.ID,
		"mats":          len(check.Mats),
		"interestLevel": check.InterestLevel,
	})
	return check, nil
}
