package access

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
)

type CreateRoleRequest struct {
	Code        string   `json:"code" validate:"required,code,max=50"`
	Name        string   `json:"name" validate:"required,max=120"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions" validate:"dive,permcode"`
}

// UpdateRoleRequest leaves nil fields unchanged
type UpdateRoleRequest struct {
	Code        *string  `json:"code" validate:"omitempty,code,max=50"`
	Name        *string  `json:"name" validate:"omitempty,max=120"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,permcode"`
}

type CreatePermissionRequest struct {
	Code        string `json:"code" validate:"required,permcode,max=100"`
	Name        string `json:"name" validate:"required,max=120"`
	Module      string `json:"module" validate:"max=50"`
	Description string `json:"description"`
}

type UpdatePermissionRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Description *string `json:"description"`
}

// resolvePermissions loads permissions by code and rejects unknown ones
func (s *Service) resolvePermissions(ctx context.Context, codes []string) ([]models.Permission, error) {
	codes = lo.Uniq(codes)
	if len(codes) == 0 {
		return []models.Permission{}, nil
	}
	found, err := s.permissions.GetByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	known := lo.Map(found, func(p models.Permission, _ int) string { return p.Code })
	if missing, _ := lo.Difference(codes, known); len(missing) > 0 {
		sort.Strings(missing)
		return nil, ierr.NewError("unknown permissions").
			WithHintf("Unknown permissions: %s", strings.Join(missing, ", ")).
			Mark(ierr.ErrValidation)
	}
	return found, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.roles.List(ctx)
}

func (s *Service) GetRole(ctx context.Context, id string) (*models.Role, error) {
	return s.roles.Get(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, req CreateRoleRequest) (*models.Role, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	perms, err := s.resolvePermissions(ctx, req.Permissions)
	if err != nil {
		return nil, err
	}
	role := &models.Role{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Permissions: perms,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}
	s.log.Info().Str("role", role.Code).Int("permissions", len(perms)).Msg("role created")
	return s.roles.Get(ctx, role.ID)
}

// UpdateRole changes a role; system roles keep their code and name
func (s *Service) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*models.Role, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	renamed := (req.Code != nil && *req.Code != role.Code) || (req.Name != nil && *req.Name != role.Name)
	if role.IsSystem && renamed {
		return nil, ierr.NewError("system role rename").
			WithHintf("Built-in role %s cannot be renamed", role.Code).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.Code != nil {
		role.Code = *req.Code
	}
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		perms, err := s.resolvePermissions(ctx, req.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	s.cache.InvalidatePermissions()
	return s.roles.Get(ctx, role.ID)
}

// DeleteRole removes a custom role no user holds
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ierr.NewError("system role delete").
			WithHintf("Built-in role %s cannot be deleted", role.Code).
			Mark(ierr.ErrInvalidOperation)
	}
	n, err := s.users.CountByRole(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ierr.NewErrorf("role in use by %d users", n).
			WithHintf("Role is assigned to %d users", n).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidatePermissions()
	s.log.Info().Str("role", role.Code).Msg("role deleted")
	return nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.permissions.List(ctx)
}

func (s *Service) CreatePermission(ctx context.Context, req CreatePermissionRequest) (*models.Permission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	module := req.Module
	if module == "" {
		module = strings.SplitN(req.Code, ".", 2)[0]
	}
	p := &models.Permission{
		Code:        req.Code,
		Name:        req.Name,
		Module:      module,
		Description: req.Description,
	}
	if err := s.permissions.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest) (*models.Permission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	p, err := s.permissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if err := s.permissions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePermission removes a custom permission; the built-in catalog is checked by routes
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	p, err := s.permissions.Get(ctx, id)
	if err != nil {
		return err
	}
	builtin := lo.ContainsBy(models.DefaultPermissions(), func(d models.Permission) bool { return d.Code == p.Code })
	if builtin {
		return ierr.NewError("builtin permission delete").
			WithHintf("Permission %s is built in and cannot be deleted", p.Code).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.permissions.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidatePermissions()
	return nil
}
