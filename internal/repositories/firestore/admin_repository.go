package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
	pfirestore "github.com/ethanokamura/catmat/internal/platform/firestore"
	"github.com/ethanokamura/catmat/internal/repositories"
)

// DefaultAdminCollection holds one document per admin keyed by Firebase uid.
const DefaultAdminCollection = "admins"

// AdminRepository reads admin role records.
type AdminRepository struct {
	base *pfirestore.BaseRepository[adminDocument]
}

var _ repositories.AdminRepository = (*AdminRepository)(nil)

// NewAdminRepository constructs the repository over collection, defaulting to "admins".
func NewAdminRepository(provider *pfirestore.Provider, collection string) (*AdminRepository, error) {
	if provider == nil {
		return nil, errors.New("admin repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = DefaultAdminCollection
	}
	return &AdminRepository{
		base: pfirestore.NewBaseRepository[adminDocument](provider, collection, nil, nil),
	}, nil
}

func (r *AdminRepository) FindByUID(ctx context.Context, uid string) (domain.AdminUser, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(uid))
	if err != nil {
		return domain.AdminUser{}, err
	}
	createdAt := doc.Data.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.CreateTime
	}
	role := domain.AdminRole(strings.TrimSpace(doc.Data.Role))
	if role == "" {
		role = domain.AdminRoleAdmin
	}
	return domain.AdminUser{
		UID:         doc.ID,
		Email:       doc.Data.Email,
		DisplayName: doc.Data.DisplayName,
		Role:        role,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

type adminDocument struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName,omitempty"`
	Role        string    `firestore:"role,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}
