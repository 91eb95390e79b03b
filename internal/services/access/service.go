package access

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/kami-operation/kamiops/internal/cache"
	"github.com/kami-operation/kamiops/internal/config"
	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/utils"
	"github.com/kami-operation/kamiops/internal/validation"
)

// Service handles authentication, users, roles and permissions
type Service struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	cache       *cache.Cache
	tokens      utils.TokenConfig
	validate    *validation.Validator
	log         zerolog.Logger
}

// NewService creates a new access service
func NewService(repos *repository.Repositories, c *cache.Cache, tokens utils.TokenConfig, log zerolog.Logger) *Service {
	return &Service{
		users:       repos.Users,
		roles:       repos.Roles,
		permissions: repos.Permissions,
		cache:       c,
		tokens:      tokens,
		validate:    validation.New(),
		log:         log.With().Str("service", "access").Logger(),
	}
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned on login and refresh
type AuthResult struct {
	*utils.TokenPair
	User *models.User `json:"user"`
}

// Profile is the signed-in user with the permission codes granted to them
type Profile struct {
	User        *models.User `json:"user"`
	Permissions []string     `json:"permissions"`
}

func invalidCredentials() error {
	return ierr.NewError("invalid credentials").
		WithHint("Invalid email or password").
		Mark(ierr.ErrUnauthorized)
}

// Login checks credentials and issues a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, ierr.NewError("user inactive").
			WithHint("This account has been deactivated").
			Mark(ierr.ErrUnauthorized)
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	tokens, err := utils.GenerateTokens(user, s.tokens)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Could not issue tokens").Mark(ierr.ErrSystem)
	}
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &AuthResult{TokenPair: tokens, User: user}, nil
}

// Refresh exchanges a refresh token for a new pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := utils.ParseRefresh(refreshToken, s.tokens.Secret)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Invalid or expired refresh token").Mark(ierr.ErrUnauthorized)
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).WithHint("Invalid or expired refresh token").Mark(ierr.ErrUnauthorized)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ierr.NewError("user inactive").
			WithHint("This account has been deactivated").
			Mark(ierr.ErrUnauthorized)
	}
	tokens, err := utils.GenerateTokens(user, s.tokens)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Could not issue tokens").Mark(ierr.ErrSystem)
	}
	return &AuthResult{TokenPair: tokens, User: user}, nil
}

// Me returns the user with the effective permission codes
func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	set, err := s.Permissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var codes []string
	if set.All {
		catalog, err := s.permissions.List(ctx)
		if err != nil {
			return nil, err
		}
		codes = lo.Map(catalog, func(p models.Permission, _ int) string { return p.Code })
	} else {
		codes = lo.Keys(set.Codes)
	}
	return &Profile{User: user, Permissions: sortedStrings(codes)}, nil
}

// Permissions resolves the grant set of a user through the cache
func (s *Service) Permissions(ctx context.Context, userID string) (cache.PermissionSet, error) {
	if set, ok := s.cache.GetPermissions(userID); ok {
		return set, nil
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return cache.PermissionSet{}, err
	}

	set := cache.PermissionSet{Codes: map[string]struct{}{}}
	if user.IsActive && user.Role != nil {
		if user.Role.Code == models.RoleCodeAdmin {
			set.All = true
		}
		for _, code := range user.Role.PermissionCodes() {
			set.Codes[code] = struct{}{}
		}
	}
	s.cache.SetPermissions(userID, set)
	return set, nil
}

// HasPermission reports whether the user is granted code
func (s *Service) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	set, err := s.Permissions(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return set.Has(code), nil
}

// Bootstrap seeds the permission catalog, the ADMIN role and the first administrator
func (s *Service) Bootstrap(ctx context.Context, cfg config.BootstrapConfig) error {
	// 1. Permission catalog
	existing, err := s.permissions.List(ctx)
	if err != nil {
		return err
	}
	known := lo.SliceToMap(existing, func(p models.Permission) (string, bool) { return p.Code, true })
	for _, p := range models.DefaultPermissions() {
		if known[p.Code] {
			continue
		}
		p := p
		if err := s.permissions.Create(ctx, &p); err != nil {
			return err
		}
		s.log.Info().Str("code", p.Code).Msg("seeded permission")
	}

	// 2. Administrator role
	admin, err := s.roles.GetByCode(ctx, models.RoleCodeAdmin)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return err
		}
		all, err := s.permissions.List(ctx)
		if err != nil {
			return err
		}
		admin = &models.Role{
			Code:        models.RoleCodeAdmin,
			Name:        "Administrator",
			Description: "Full access to every module",
			IsSystem:    true,
			Permissions: all,
		}
		if err := s.roles.Create(ctx, admin); err != nil {
			return err
		}
		s.log.Info().Msg("seeded ADMIN role")
	}

	// 3. First administrator
	if cfg.AdminEmail == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !ierr.IsNotFound(err) {
		return err
	}
	if cfg.AdminPassword == "" {
		s.log.Warn().Str("email", cfg.AdminEmail).Msg("ADMIN_PASSWORD not set, skipping admin user bootstrap")
		return nil
	}
	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return ierr.WithError(err).WithHint("Could not hash password").Mark(ierr.ErrSystem)
	}
	user := &models.User{
		Username: strings.Split(cfg.AdminEmail, "@")[0],
		Email:    strings.ToLower(cfg.AdminEmail),
		Password: hash,
		Name:     "Administrator",
		RoleID:   &admin.ID,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}
	s.log.Info().Str("email", user.Email).Msg("seeded admin user")
	return nil
}

func sortedStrings(in []string) []string {
	out := lo.Uniq(in)
	sort.Strings(out)
	return out
}
