package handlers

import (
	"net/http"

	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

// MarkReadRequest is the body of POST /api/notifications/read
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

func (r *Router) listNotifications(w http.ResponseWriter, req *http.Request) {
	unread := boolQuery(req, "unread")
	page, err := r.svc.Notify.List(req.Context(), repository.NotificationFilter{
		Pagination: pagination(req),
		UserID:     middleware.UserID(req.Context()),
		UnreadOnly: unread != nil && *unread,
	})
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) unreadCount(w http.ResponseWriter, req *http.Request) {
	n, err := r.svc.Notify.UnreadCount(req.Context(), middleware.UserID(req.Context()))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (r *Router) markRead(w http.ResponseWriter, req *http.Request) {
	var body MarkReadRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	n, err := r.svc.Notify.MarkRead(req.Context(), middleware.UserID(req.Context()), body.IDs)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (r *Router) markAllRead(w http.ResponseWriter, req *http.Request) {
	n, err := r.svc.Notify.MarkAllRead(req.Context(), middleware.UserID(req.Context()))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (r *Router) deleteNotification(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Notify.Delete(req.Context(), middleware.UserID(req.Context()), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dashboardStats returns the aggregate counts behind the home page charts
func (r *Router) dashboardStats(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserID(req.Context())
	manager, err := r.svc.Access.HasPermission(req.Context(), userID, models.PermDocumentsManage)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	stats, err := r.svc.Dashboard.Stats(req.Context(), userID, manager)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
