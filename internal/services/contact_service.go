package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/platform/observability"
	"github.com/ethanokamura/catmat/internal/platform/textutil"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	maxContactNameLength    = 100
	maxContactEmailLength   = 254
	maxContactSubjectLength = 200
	maxContactMessageLength = 5000
)

var (
	// ErrContactInvalidInput indicates a missing or oversized contact form field.
	ErrContactInvalidInput = errors.New("contact: invalid input")
	// ErrContactUnavailable indicates the message could not be stored.
	ErrContactUnavailable = errors.New("contact: unavailable")
)

// ContactServiceDeps wires the contact form service.
type ContactServiceDeps struct {
	Messages    repositories.ContactMessageRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type contactService struct {
	messages repositories.ContactMessageRepository
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ ContactService = (*contactService)(nil)

func NewContactService(deps ContactServiceDeps) (ContactService, error) {
	if deps.Messages == nil {
		return nil, errors.New("contact service: message repository is required")
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
	return &contactService{
		messages: deps.Messages,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *contactService) Submit(ctx context.Context, cmd SubmitContactCommand) (ContactMessage, error) {
	name, err := requiredText("name", cmd.Name, maxContactNameLength)
	if err != nil {
		return ContactMessage{}, err
	}
	subject, err := requiredText("subject", cmd.Subject, maxContactSubjectLength)
	if err != nil {
		return ContactMessage{}, err
	}
	message, err := requiredText("message", cmd.Message, maxContactMessageLength)
	if err != nil {
		return ContactMessage{}, err
	}
	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		return ContactMessage{}, fmt.Errorf("%w: email is required", ErrContactInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || len(addr.Address) > maxContactEmailLength {
		return ContactMessage{}, fmt.Errorf("%w: email is invalid", ErrContactInvalidInput)
	}

	msg := domain.ContactMessage{
		ID:        s.newID(),
		Name:      name,
		Email:     addr.Address,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return ContactMessage{}, fmt.Errorf("%w: %w", ErrContactUnavailable, err)
	}
	s.logger(ctx, "contact.message.received", map[string]any{
		"messageId": msg.ID,
		"email":     observability.MaskEmail(msg.Email),
	})
	return msg, nil
}

// requiredText rejects blank or oversized input and returns the sanitised value.
func requiredText(field, value string, limit int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrContactInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > limit {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrContactInvalidInput, field, limit)
	}
	cleaned := textutil.PlainText(value, limit)
	if cleaned == "" {
		return "", fmt.Errorf("%w: %s is required", ErrContactInvalidInput, field)
	}
	return cleaned, nil
}
