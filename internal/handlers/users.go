package handlers

import (
	"net/http"

	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/access"
)

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	page, err := r.svc.Access.ListUsers(req.Context(), repository.UserFilter{
		Pagination: pagination(req),
		Search:     searchQuery(req),
		RoleID:     req.URL.Query().Get("roleId"),
		Active:     boolQuery(req, "active"),
	})
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getUser(w http.ResponseWriter, req *http.Request) {
	user, err := r.svc.Access.GetUser(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var body access.CreateUserRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	user, err := r.svc.Access.CreateUser(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (r *Router) updateUser(w http.ResponseWriter, req *http.Request) {
	var body access.UpdateUserRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	user, err := r.svc.Access.UpdateUser(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (r *Router) deleteUser(w http.ResponseWriter, req *http.Request) {
	actor := middleware.UserID(req.Context())
	if err := r.svc.Access.DeleteUser(req.Context(), actor, pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Roles

func (r *Router) listRoles(w http.ResponseWriter, req *http.Request) {
	roles, err := r.svc.Access.ListRoles(req.Context())
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

func (r *Router) getRole(w http.ResponseWriter, req *http.Request) {
	role, err := r.svc.Access.GetRole(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

func (r *Router) createRole(w http.ResponseWriter, req *http.Request) {
	var body access.CreateRoleRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	role, err := r.svc.Access.CreateRole(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, role)
}

func (r *Router) updateRole(w http.ResponseWriter, req *http.Request) {
	var body access.UpdateRoleRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	role, err := r.svc.Access.UpdateRole(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

func (r *Router) deleteRole(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Access.DeleteRole(req.Context(), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Permissions

func (r *Router) listPermissions(w http.ResponseWriter, req *http.Request) {
	perms, err := r.svc.Access.ListPermissions(req.Context())
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

func (r *Router) createPermission(w http.ResponseWriter, req *http.Request) {
	var body access.CreatePermissionRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	perm, err := r.svc.Access.CreatePermission(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, perm)
}

func (r *Router) updatePermission(w http.ResponseWriter, req *http.Request) {
	var body access.UpdatePermissionRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	perm, err := r.svc.Access.UpdatePermission(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, perm)
}

func (r *Router) deletePermission(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Access.DeletePermission(req.Context(), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
