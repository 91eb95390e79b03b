package access

import (
	"context"
	"strings"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/utils"
)

type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     string  `json:"name" validate:"max=120"`
	Position string  `json:"position" validate:"max=120"`
	RoleID   *string `json:"roleId" validate:"omitempty,uuid"`
	IsActive *bool   `json:"isActive"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Position *string `json:"position" validate:"omitempty,max=120"`
	RoleID   *string `json:"roleId" validate:"omitempty,uuid"`
	IsActive *bool   `json:"isActive"`
}

func (s *Service) checkRole(ctx context.Context, roleID *string) error {
	if roleID == nil || *roleID == "" {
		return nil
	}
	if _, err := s.roles.Get(ctx, *roleID); err != nil {
		if ierr.IsNotFound(err) {
			return ierr.WithError(err).WithHint("Role does not exist").Mark(ierr.ErrValidation)
		}
		return err
	}
	return nil
}

// CreateUser registers an operator account
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, req.RoleID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ierr.NewError("email taken").
			WithHint("A user with this email already exists").
			Mark(ierr.ErrAlreadyExists)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Could not hash password").Mark(ierr.ErrSystem)
	}
	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    email,
		Password: hash,
		Name:     req.Name,
		Position: req.Position,
		RoleID:   emptyToNil(req.RoleID),
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user created")
	return s.users.Get(ctx, user.ID)
}

// UpdateUser applies a partial update
func (s *Service) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if other, err := s.users.GetByEmail(ctx, email); err == nil && other.ID != user.ID {
			return nil, ierr.NewError("email taken").
				WithHint("A user with this email already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		user.Email = email
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, ierr.WithError(err).WithHint("Could not hash password").Mark(ierr.ErrSystem)
		}
		user.Password = hash
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Position != nil {
		user.Position = *req.Position
	}
	if req.RoleID != nil {
		if err := s.checkRole(ctx, req.RoleID); err != nil {
			return nil, err
		}
		user.RoleID = emptyToNil(req.RoleID)
		user.Role = nil
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(user.ID)
	return s.users.Get(ctx, user.ID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.Get(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f repository.UserFilter) (repository.Page[models.User], error) {
	items, total, err := s.users.List(ctx, f)
	if err != nil {
		return repository.Page[models.User]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

// DeleteUser removes an account; operators cannot delete themselves
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ierr.NewError("self delete").
			WithHint("You cannot delete your own account").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateUser(id)
	s.log.Info().Str("user_id", id).Str("actor", actorID).Msg("user deleted")
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
