package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) withRole(u models.User) models.User {
	if u.RoleID != nil {
		if role, ok := r.s.roles[*u.RoleID]; ok {
			role.Permissions = append([]models.Permission(nil), role.Permissions...)
			u.Role = &role
		}
	}
	return u
}

func (r *userRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if strings.EqualFold(other.Email, u.Email) || other.Username == u.Username {
			return alreadyExists("User")
		}
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	u.CreatedAt = r.s.tick()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	stored.Role = nil
	r.s.users[u.ID] = stored
	return nil
}

func (r *userRepo) Get(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("User")
	}
	u = r.withRole(u)
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			u = r.withRole(u)
			return &u, nil
		}
	}
	return nil, notFound("User")
}

func (r *userRepo) GetMany(_ context.Context, ids []string) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepo) List(_ context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for _, u := range r.s.users {
		if f.Search != "" && !contains(u.Username, f.Search) && !contains(u.Email, f.Search) && !contains(u.Name, f.Search) {
			continue
		}
		if f.RoleID != "" && (u.RoleID == nil || *u.RoleID != f.RoleID) {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		out = append(out, r.withRole(u))
	}
	sortByCreated(out, func(u models.User) time.Time { return u.CreatedAt }, true)
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *userRepo) Update(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return notFound("User")
	}
	for id, other := range r.s.users {
		if id != u.ID && (strings.EqualFold(other.Email, u.Email) || other.Username == u.Username) {
			return alreadyExists("User")
		}
	}
	u.UpdatedAt = r.s.tick()
	stored := *u
	stored.Role = nil
	r.s.users[u.ID] = stored
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return notFound("User")
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) CountByRole(_ context.Context, roleID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.users {
		if u.RoleID != nil && *u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

type roleRepo struct{ s *Store }

func (r *roleRepo) Create(_ context.Context, role *models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.roles {
		if other.Code == role.Code {
			return alreadyExists("Role")
		}
	}
	if role.ID == "" {
		role.ID = models.NewID()
	}
	role.CreatedAt = r.s.tick()
	role.UpdatedAt = role.CreatedAt
	stored := *role
	stored.Permissions = append([]models.Permission(nil), role.Permissions...)
	r.s.roles[role.ID] = stored
	return nil
}

func (r *roleRepo) Get(_ context.Context, id string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, notFound("Role")
	}
	role.Permissions = append([]models.Permission(nil), role.Permissions...)
	return &role, nil
}

func (r *roleRepo) GetByCode(_ context.Context, code string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.Code == code {
			role.Permissions = append([]models.Permission(nil), role.Permissions...)
			return &role, nil
		}
	}
	return nil, notFound("Role")
}

func (r *roleRepo) List(_ context.Context) ([]models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *roleRepo) Update(_ context.Context, role *models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[role.ID]; !ok {
		return notFound("Role")
	}
	for id, other := range r.s.roles {
		if id != role.ID && other.Code == role.Code {
			return alreadyExists("Role")
		}
	}
	role.UpdatedAt = r.s.tick()
	stored := *role
	stored.Permissions = append([]models.Permission(nil), role.Permissions...)
	r.s.roles[role.ID] = stored
	return nil
}

func (r *roleRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[id]; !ok {
		return notFound("Role")
	}
	delete(r.s.roles, id)
	return nil
}

type permissionRepo struct{ s *Store }

func (r *permissionRepo) Create(_ context.Context, p *models.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.permissions {
		if other.Code == p.Code {
			return alreadyExists("Permission")
		}
	}
	if p.ID == "" {
		p.ID = models.NewID()
	}
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	r.s.permissions[p.ID] = *p
	return nil
}

func (r *permissionRepo) Get(_ context.Context, id string) (*models.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.permissions[id]
	if !ok {
		return nil, notFound("Permission")
	}
	return &p, nil
}

func (r *permissionRepo) GetByCodes(_ context.Context, codes []string) ([]models.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	out := []models.Permission{}
	for _, p := range r.s.permissions {
		if want[p.Code] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *permissionRepo) List(_ context.Context) ([]models.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Permission, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *permissionRepo) Update(_ context.Context, p *models.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.permissions[p.ID]; !ok {
		return notFound("Permission")
	}
	for id, other := range r.s.permissions {
		if id != p.ID && other.Code == p.Code {
			return alreadyExists("Permission")
		}
	}
	p.UpdatedAt = r.s.tick()
	r.s.permissions[p.ID] = *p
	r.syncRoles(*p, false)
	return nil
}

func (r *permissionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.permissions[id]
	if !ok {
		return notFound("Permission")
	}
	delete(r.s.permissions, id)
	r.syncRoles(p, true)
	return nil
}

// syncRoles mirrors the role_permissions join table
func (r *permissionRepo) syncRoles(p models.Permission, remove bool) {
	for id, role := range r.s.roles {
		perms := make([]models.Permission, 0, len(role.Permissions))
		for _, rp := range role.Permissions {
			if rp.ID == p.ID {
				if remove {
					continue
				}
				rp = p
			}
			perms = append(perms, rp)
		}
		role.Permissions = perms
		r.s.roles[id] = role
	}
}
