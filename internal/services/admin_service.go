package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/ethanokamura/catmat/internal/domain"
	"github.com/ethanokamura/catmat/internal/repositories"
)

// AdminServiceDeps wires the admin role lookup.
type AdminServiceDeps struct {
	Admins repositories.AdminRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type adminService struct {
	admins repositories.AdminRepository
	logger func(ctx context.Context, event string, fields map[string]any)
}

var _ AdminService = (*adminService)(nil)

// NewAdminService constructs an AdminService.
func NewAdminService(deps AdminServiceDeps) (AdminService, error) {
	if deps.Admins == nil {
		return nil, errors.New("admin service: admin repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &adminService{admins: deps.Admins, logger: logger}, nil
}

// Authorize grants access when a role record exists for uid. A record without a role is an
// admin; a record naming an unknown role is denied.
func (s *adminService) Authorize(ctx context.Context, uid string) (AdminUser, bool, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return AdminUser{}, false, nil
	}
	admin, err := s.admins.FindByUID(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return AdminUser{}, false, nil
		}
		return AdminUser{}, false, fmt.Errorf("admin service: lookup %s: %w", uid, err)
	}
	if strings.TrimSpace(string(admin.Role)) == "" {
		admin.Role = domain.AdminRoleAdmin
	}
	if !admin.Role.Valid() {
		s.logger(ctx, "admin.role.unknown", map[string]any{
			"uid":  uid,
			"role": string(admin.Role),
		})
		return AdminUser{}, false, nil
	}
	if admin.UID == "" {
		admin.UID = uid
	}
	return admin, true, nil
}
