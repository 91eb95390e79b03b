package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kami-operation/kamiops/internal/config"
	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/testutil"
	"github.com/kami-operation/kamiops/internal/utils"
)

type AccessServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *Service
}

func TestAccessService(t *testing.T) {
	suite.Run(t, new(AccessServiceSuite))
}

func (s *AccessServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewService(s.GetRepos(), s.GetCache(), utils.TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, s.GetLogger())
}

func (s *AccessServiceSuite) bootstrap() {
	err := s.service.Bootstrap(s.GetContext(), config.BootstrapConfig{
		AdminEmail:    "admin@kami.local",
		AdminPassword: "supersecret",
	})
	s.Require().NoError(err)
}

func (s *AccessServiceSuite) TestBootstrapIsIdempotent() {
	s.bootstrap()
	s.bootstrap()

	perms, err := s.service.ListPermissions(s.GetContext())
	s.Require().NoError(err)
	s.Len(perms, len(models.DefaultPermissions()))

	roles, err := s.service.ListRoles(s.GetContext())
	s.Require().NoError(err)
	s.Require().Len(roles, 1)
	s.Equal(models.RoleCodeAdmin, roles[0].Code)
	s.True(roles[0].IsSystem)

	admin, err := s.GetRepos().Users.GetByEmail(s.GetContext(), "admin@kami.local")
	s.Require().NoError(err)
	s.True(admin.IsActive)
}

func (s *AccessServiceSuite) TestBootstrapWithoutPasswordSkipsAdmin() {
	s.Require().NoError(s.service.Bootstrap(s.GetContext(), config.BootstrapConfig{AdminEmail: "admin@kami.local"}))
	_, err := s.GetRepos().Users.GetByEmail(s.GetContext(), "admin@kami.local")
	s.True(ierr.IsNotFound(err))
}

func (s *AccessServiceSuite) TestLogin() {
	s.bootstrap()

	testCases := []struct {
		name     string
		email    string
		password string
		wantErr  func(error) bool
	}{
		{name: "success", email: "ADMIN@kami.local", password: "supersecret"},
		{name: "wrong_password", email: "admin@kami.local", password: "nope", wantErr: ierr.IsUnauthorized},
		{name: "unknown_email", email: "ghost@kami.local", password: "supersecret", wantErr: ierr.IsUnauthorized},
		{name: "invalid_email", email: "not-an-email", password: "x", wantErr: ierr.IsValidation},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			res, err := s.service.Login(s.GetContext(), LoginRequest{Email: tc.email, Password: tc.password})
			if tc.wantErr != nil {
				s.Error(err)
				s.True(tc.wantErr(err), "unexpected error kind: %v", err)
				return
			}
			s.Require().NoError(err)
			s.NotEmpty(res.AccessToken)
			s.NotEmpty(res.RefreshToken)
			s.NotNil(res.User.LastLogin)
		})
	}
}

func (s *AccessServiceSuite) TestLoginRejectsInactiveUser() {
	u := s.CreateUser("frozen", nil)
	u.IsActive = false
	s.Require().NoError(s.GetRepos().Users.Update(s.GetContext(), u))

	_, err := s.service.Login(s.GetContext(), LoginRequest{Email: u.Email, Password: "password123"})
	s.True(ierr.IsUnauthorized(err))
}

func (s *AccessServiceSuite) TestRefresh() {
	s.bootstrap()
	res, err := s.service.Login(s.GetContext(), LoginRequest{Email: "admin@kami.local", Password: "supersecret"})
	s.Require().NoError(err)

	again, err := s.service.Refresh(s.GetContext(), res.RefreshToken)
	s.Require().NoError(err)
	s.Equal(res.User.ID, again.User.ID)

	_, err = s.service.Refresh(s.GetContext(), res.AccessToken)
	s.True(ierr.IsUnauthorized(err), "access token must not refresh")
}

func (s *AccessServiceSuite) TestHasPermission() {
	s.bootstrap()
	signer := s.CreateRole("SIGNER", models.PermDocumentsRead, models.PermDocumentsSign)
	user := s.CreateUser("sam", signer)
	admin, err := s.GetRepos().Users.GetByEmail(s.GetContext(), "admin@kami.local")
	s.Require().NoError(err)

	ok, err := s.service.HasPermission(s.GetContext(), user.ID, models.PermDocumentsSign)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.HasPermission(s.GetContext(), user.ID, models.PermUsersManage)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.service.HasPermission(s.GetContext(), admin.ID, "anything.at_all")
	s.Require().NoError(err)
	s.True(ok, "ADMIN is granted everything")

	ok, err = s.service.HasPermission(s.GetContext(), "missing", models.PermDocumentsRead)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *AccessServiceSuite) TestRoleChangeInvalidatesCache() {
	s.bootstrap()
	role := s.CreateRole("CLERK", models.PermDocumentsRead)
	user := s.CreateUser("cleo", role)

	ok, _ := s.service.HasPermission(s.GetContext(), user.ID, models.PermDocumentsCreate)
	s.False(ok)

	_, err := s.service.UpdateRole(s.GetContext(), role.ID, UpdateRoleRequest{
		Permissions: []string{models.PermDocumentsRead, models.PermDocumentsCreate},
	})
	s.Require().NoError(err)

	ok, _ = s.service.HasPermission(s.GetContext(), user.ID, models.PermDocumentsCreate)
	s.True(ok)
}

func (s *AccessServiceSuite) TestCreateRoleValidation() {
	s.bootstrap()

	_, err := s.service.CreateRole(s.GetContext(), CreateRoleRequest{Code: "clerk", Name: "Clerk"})
	s.True(ierr.IsValidation(err), "lowercase code is rejected")

	_, err = s.service.CreateRole(s.GetContext(), CreateRoleRequest{Code: "CLERK", Name: "Clerk", Permissions: []string{"ghost.read"}})
	s.True(ierr.IsValidation(err))

	role, err := s.service.CreateRole(s.GetContext(), CreateRoleRequest{
		Code:        "CLERK",
		Name:        "Clerk",
		Permissions: []string{models.PermDocumentsRead, models.PermDocumentsRead},
	})
	s.Require().NoError(err)
	s.Len(role.Permissions, 1)
}

func (s *AccessServiceSuite) TestSystemRoleGuards() {
	s.bootstrap()
	admin, err := s.GetRepos().Roles.GetByCode(s.GetContext(), models.RoleCodeAdmin)
	s.Require().NoError(err)

	name := "Superuser"
	_, err = s.service.UpdateRole(s.GetContext(), admin.ID, UpdateRoleRequest{Name: &name})
	s.True(ierr.IsInvalidOperation(err))

	desc := "Everything"
	_, err = s.service.UpdateRole(s.GetContext(), admin.ID, UpdateRoleRequest{Description: &desc})
	s.NoError(err)

	s.True(ierr.IsInvalidOperation(s.service.DeleteRole(s.GetContext(), admin.ID)))
}

func (s *AccessServiceSuite) TestDeleteRoleInUse() {
	s.bootstrap()
	role := s.CreateRole("CLERK")
	user := s.CreateUser("cleo", role)

	s.True(ierr.IsInvalidOperation(s.service.DeleteRole(s.GetContext(), role.ID)))

	s.Require().NoError(s.GetRepos().Users.Delete(s.GetContext(), user.ID))
	s.NoError(s.service.DeleteRole(s.GetContext(), role.ID))
}

func (s *AccessServiceSuite) TestUserLifecycle() {
	s.bootstrap()
	role := s.CreateRole("CLERK", models.PermDocumentsRead)

	u, err := s.service.CreateUser(s.GetContext(), CreateUserRequest{
		Username: "clerk1",
		Email:    "Clerk1@Kami.Test",
		Password: "longenough",
		Name:     "Clerk One",
		RoleID:   &role.ID,
	})
	s.Require().NoError(err)
	s.Equal("clerk1@kami.test", u.Email)
	s.True(u.IsActive)
	s.Require().NotNil(u.Role)
	s.Equal("CLERK", u.Role.Code)

	_, err = s.service.CreateUser(s.GetContext(), CreateUserRequest{
		Username: "clerk2", Email: "clerk1@kami.test", Password: "longenough",
	})
	s.True(ierr.IsAlreadyExists(err))

	inactive := false
	u, err = s.service.UpdateUser(s.GetContext(), u.ID, UpdateUserRequest{IsActive: &inactive})
	s.Require().NoError(err)
	s.False(u.IsActive)

	ok, err := s.service.HasPermission(s.GetContext(), u.ID, models.PermDocumentsRead)
	s.Require().NoError(err)
	s.False(ok, "inactive users hold no permissions")

	page, err := s.service.ListUsers(s.GetContext(), repository.UserFilter{Search: "clerk"})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)

	s.True(ierr.IsInvalidOperation(s.service.DeleteUser(s.GetContext(), u.ID, u.ID)))
	s.NoError(s.service.DeleteUser(s.GetContext(), "someone-else", u.ID))
}

func (s *AccessServiceSuite) TestMe() {
	s.bootstrap()
	role := s.CreateRole("SIGNER", models.PermDocumentsSign, models.PermDocumentsRead)
	user := s.CreateUser("sam", role)

	profile, err := s.service.Me(s.GetContext(), user.ID)
	s.Require().NoError(err)
	s.Equal([]string{models.PermDocumentsRead, models.PermDocumentsSign}, profile.Permissions)

	admin, _ := s.GetRepos().Users.GetByEmail(s.GetContext(), "admin@kami.local")
	profile, err = s.service.Me(s.GetContext(), admin.ID)
	s.Require().NoError(err)
	s.Len(profile.Permissions, len(models.DefaultPermissions()))
}

func (s *AccessServiceSuite) TestPermissionCRUD() {
	s.bootstrap()

	_, err := s.service.CreatePermission(s.GetContext(), CreatePermissionRequest{Code: "Reports", Name: "Reports"})
	s.True(ierr.IsValidation(err))

	p, err := s.service.CreatePermission(s.GetContext(), CreatePermissionRequest{Code: "reports.export", Name: "Export reports"})
	s.Require().NoError(err)
	s.Equal("reports", p.Module)

	name := "Export all reports"
	p, err = s.service.UpdatePermission(s.GetContext(), p.ID, UpdatePermissionRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal(name, p.Name)

	s.NoError(s.service.DeletePermission(s.GetContext(), p.ID))

	builtin, err := s.GetRepos().Permissions.GetByCodes(s.GetContext(), []string{models.PermDocumentsRead})
	s.Require().NoError(err)
	s.Require().Len(builtin, 1)
	s.True(ierr.IsInvalidOperation(s.service.DeletePermission(s.GetContext(), builtin[0].ID)))
}
