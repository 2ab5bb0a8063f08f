package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	pfirestore "github.com/ethanokamura/catmat/internal/platform/firestore"
	"github.com/ethanokamura/catmat/internal/repositories"
)

const (
	contactCollection  = "contact-messages"
	interestCollection = "interest-checks"
)

// ContactMessageRepository appends contact form submissions.
type ContactMessageRepository struct {
	base *pfirestore.BaseRepository[contactDocument]
}

var _ repositories.ContactMessageRepository = (*ContactMessageRepository)(nil)

func NewContactMessageRepository(provider *pfirestore.Provider) (*ContactMessageRepository, error) {
	if provider == nil {
		return nil, errors.New("contact repository requires firestore provider")
	}
	return &ContactMessageRepository{
		base: pfirestore.NewBaseRepository[contactDocument](provider, contactCollection, nil, nil),
	}, nil
}

func (r *ContactMessageRepository) Insert(ctx context.Context, msg domain.ContactMessage) error {
	return r.base.Create(ctx, msg.ID, contactDocument{
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt.UTC(),
	})
}

type contactDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Subject   string    `firestore:"subject"`
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// InterestCheckRepository appends interest survey submissions.
type InterestCheckRepository struct {
	base *pfirestore.BaseRepository[interestDocument]
}

var _ repositories.InterestCheckRepository = (*InterestCheckRepository)(nil)

func NewInterestCheckRepository(provider *pfirestore.Provider) (*InterestCheckRepository, error) {
	if provider == nil {
		return nil, errors.New("interest check repository requires firestore provider")
	}
	return &InterestCheckRepository{
		base: pfirestore.NewBaseRepository[interestDocument](provider, interestCollection, nil, nil),
	}, nil
}

func (r *InterestCheckRepository) Insert(ctx context.Context, check domain.InterestCheck) error {
	return r.base.Create(ctx, check.ID, interestDocument{
		Mats:          check.Mats,
		InterestLevel: check.InterestLevel,
		PricePoints:   check.PricePoints,
		OtherSizes:    check.OtherSizes,
		Email:         check.Email,
		Suggestions:   check.Suggestions,
		CreatedAt:     check.CreatedAt.UTC(),
	})
}

// Nil pointers are stored as explicit nulls.
type interestDocument struct {
	Mats          []string  `firestore:"mats"`
	InterestLevel int       `firestore:"interestLevel"`
	PricePoints   []string  `firestore:"pricePoints"`
	OtherSizes    *string   `firestore:"otherSizes"`
	Email         *string   `firestore:"email"`
	Suggestions   *string   `firestore:"suggestions"`
	CreatedAt     time.Time `firestore:"createdAt"`
}
