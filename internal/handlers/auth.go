package handlers

import (
	"net/http"

	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/services/access"
)

// RefreshRequest is the body of POST /api/auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body access.LoginRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}

	result, err := r.svc.Access.Login(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// refresh exchanges a refresh token for a new pair
func (r *Router) refresh(w http.ResponseWriter, req *http.Request) {
	var body RefreshRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	if body.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	result, err := r.svc.Access.Refresh(req.Context(), body.RefreshToken)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// logout acknowledges the client dropping its tokens; access tokens are stateless
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	r.log.Info().Str("user_id", middleware.UserID(req.Context())).Msg("user logged out")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// me returns the current user and the permission codes it holds
func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	profile, err := r.svc.Access.Me(req.Context(), middleware.UserID(req.Context()))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
