package handlers

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kami-operation/kamiops/internal/buildinfo"
	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/services/access"
	"github.com/kami-operation/kamiops/internal/services/catalog"
	"github.com/kami-operation/kamiops/internal/services/dashboard"
	"github.com/kami-operation/kamiops/internal/services/notify"
	"github.com/kami-operation/kamiops/internal/services/signatures"
	"github.com/kami-operation/kamiops/internal/services/templates"
	"github.com/kami-operation/kamiops/internal/services/workflow"
	"github.com/kami-operation/kamiops/internal/websocket"
)

// Services are the domain services exposed over HTTP
type Services struct {
	Access     *access.Service
	Catalog    *catalog.Service
	Templates  *templates.Service
	Signatures *signatures.Service
	Workflow   *workflow.Service
	Notify     *notify.Service
	Dashboard  *dashboard.Service
}

// Options configure the router outside of the services
type Options struct {
	JWTSecret string
	NodeEnv   string
	Hub       *websocket.Hub
	// Static serves the dashboard; nil disables it
	Static fs.FS
	Logger zerolog.Logger
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	svc     Services
	hub     *websocket.Hub
	secret  string
	nodeEnv string
	log     zerolog.Logger
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(svc Services, opts Options) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		svc:     svc,
		hub:     opts.Hub,
		secret:  opts.JWTSecret,
		nodeEnv: opts.NodeEnv,
		log:     opts.Logger.With().Str("component", "router").Logger(),
	}
	r.Use(middleware.RequestLogger(opts.Logger), middleware.Recover(opts.Logger))

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")

	// Public auth routes
	r.HandleFunc("/api/auth/login", r.login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", r.refresh).Methods("POST")

	// Public verification, reached from the QR code on sealed PDFs
	r.HandleFunc("/verify/public-key", r.sealPublicKey).Methods("GET")
	r.HandleFunc("/verify/{code}", r.verifyDocument).Methods("GET")
	r.HandleFunc("/verify/{code}/qr", r.verificationQR).Methods("GET")

	// Real-time events; the token travels in ?token= since browsers cannot set headers
	if r.hub != nil {
		r.HandleFunc("/ws", r.serveWs)
	}

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(opts.JWTSecret))

	api.HandleFunc("/auth/logout", r.logout).Methods("POST")
	api.HandleFunc("/auth/me", r.me).Methods("GET")

	// Users, roles and permissions
	api.Handle("/users", r.can(models.PermUsersRead, r.listUsers)).Methods("GET")
	api.Handle("/users", r.can(models.PermUsersManage, r.createUser)).Methods("POST")
	api.Handle("/users/{id}", r.can(models.PermUsersRead, r.getUser)).Methods("GET")
	api.Handle("/users/{id}", r.can(models.PermUsersManage, r.updateUser)).Methods("PUT")
	api.Handle("/users/{id}", r.can(models.PermUsersManage, r.deleteUser)).Methods("DELETE")

	api.Handle("/roles", r.can(models.PermRolesRead, r.listRoles)).Methods("GET")
	api.Handle("/roles", r.can(models.PermRolesManage, r.createRole)).Methods("POST")
	api.Handle("/roles/{id}", r.can(models.PermRolesRead, r.getRole)).Methods("GET")
	api.Handle("/roles/{id}", r.can(models.PermRolesManage, r.updateRole)).Methods("PUT")
	api.Handle("/roles/{id}", r.can(models.PermRolesManage, r.deleteRole)).Methods("DELETE")

	api.Handle("/permissions", r.can(models.PermRolesRead, r.listPermissions)).Methods("GET")
	api.Handle("/permissions", r.can(models.PermPermissionsManage, r.createPermission)).Methods("POST")
	api.Handle("/permissions/{id}", r.can(models.PermPermissionsManage, r.updatePermission)).Methods("PUT")
	api.Handle("/permissions/{id}", r.can(models.PermPermissionsManage, r.deletePermission)).Methods("DELETE")

	// Catalog
	api.Handle("/categories", r.can(models.PermCategoriesRead, r.listCategories)).Methods("GET")
	api.Handle("/categories", r.can(models.PermCategoriesManage, r.createCategory)).Methods("POST")
	api.Handle("/categories/{id}", r.can(models.PermCategoriesRead, r.getCategory)).Methods("GET")
	api.Handle("/categories/{id}", r.can(models.PermCategoriesManage, r.updateCategory)).Methods("PUT")
	api.Handle("/categories/{id}", r.can(models.PermCategoriesManage, r.deleteCategory)).Methods("DELETE")

	api.Handle("/document-types", r.can(models.PermDocumentTypesRead, r.listDocumentTypes)).Methods("GET")
	api.Handle("/document-types", r.can(models.PermDocumentTypesManage, r.createDocumentType)).Methods("POST")
	api.Handle("/document-types/{id}", r.can(models.PermDocumentTypesRead, r.getDocumentType)).Methods("GET")
	api.Handle("/document-types/{id}", r.can(models.PermDocumentTypesManage, r.updateDocumentType)).Methods("PUT")
	api.Handle("/document-types/{id}", r.can(models.PermDocumentTypesManage, r.deleteDocumentType)).Methods("DELETE")

	// PDF templates
	api.Handle("/templates", r.can(models.PermTemplatesRead, r.listTemplates)).Methods("GET")
	api.Handle("/templates", r.can(models.PermTemplatesManage, r.createTemplate)).Methods("POST")
	api.Handle("/templates/{id}", r.can(models.PermTemplatesRead, r.getTemplate)).Methods("GET")
	api.Handle("/templates/{id}", r.can(models.PermTemplatesManage, r.updateTemplate)).Methods("PUT")
	api.Handle("/templates/{id}", r.can(models.PermTemplatesManage, r.deleteTemplate)).Methods("DELETE")
	api.Handle("/templates/{id}/duplicate", r.can(models.PermTemplatesManage, r.duplicateTemplate)).Methods("POST")
	api.Handle("/templates/{id}/sections/{sid}/move", r.can(models.PermTemplatesManage, r.moveSection)).Methods("PUT", "POST")
	api.Handle("/templates/{id}/preview", r.can(models.PermTemplatesRead, r.previewTemplate)).Methods("POST")

	// Signature library of the current user
	api.HandleFunc("/signatures", r.listSignatures).Methods("GET")
	api.Handle("/signatures", r.can(models.PermDocumentsSign, r.captureSignature)).Methods("POST")
	api.HandleFunc("/signatures/{id}/default", r.setDefaultSignature).Methods("PUT", "POST")
	api.HandleFunc("/signatures/{id}", r.deleteSignature).Methods("DELETE")
	api.HandleFunc("/signatures/{id}/image", r.signatureImage).Methods("GET")

	// Documents
	api.Handle("/documents", r.can(models.PermDocumentsRead, r.listDocuments)).Methods("GET")
	api.Handle("/documents", r.can(models.PermDocumentsCreate, r.createDocument)).Methods("POST")
	api.Handle("/documents/{id}", r.can(models.PermDocumentsRead, r.getDocument)).Methods("GET")
	api.Handle("/documents/{id}", r.can(models.PermDocumentsUpdate, r.updateDocument)).Methods("PUT")
	api.Handle("/documents/{id}", r.can(models.PermDocumentsUpdate, r.deleteDocument)).Methods("DELETE")
	api.Handle("/documents/{id}/signatories", r.can(models.PermDocumentsUpdate, r.setSignatories)).Methods("PUT")
	api.Handle("/documents/{id}/submit", r.can(models.PermDocumentsUpdate, r.submitDocument)).Methods("POST")
	api.Handle("/documents/{id}/sign", r.can(models.PermDocumentsSign, r.signDocument)).Methods("POST")
	api.Handle("/documents/{id}/reject", r.can(models.PermDocumentsSign, r.rejectDocument)).Methods("POST")
	api.Handle("/documents/{id}/cancel", r.can(models.PermDocumentsCancel, r.cancelDocument)).Methods("POST")
	api.Handle("/documents/{id}/activate", r.can(models.PermDocumentsManage, r.activateDocument)).Methods("POST")
	api.Handle("/documents/{id}/use", r.can(models.PermDocumentsManage, r.useDocument)).Methods("POST")
	api.Handle("/documents/{id}/seal", r.can(models.PermDocumentsManage, r.sealDocument)).Methods("POST")
	api.Handle("/documents/{id}/pdf", r.can(models.PermDocumentsRead, r.documentPDF)).Methods("GET")

	// Notifications of the current user
	api.HandleFunc("/notifications", r.listNotifications).Methods("GET")
	api.HandleFunc("/notifications/unread-count", r.unreadCount).Methods("GET")
	api.HandleFunc("/notifications/read", r.markRead).Methods("POST")
	api.HandleFunc("/notifications/read-all", r.markAllRead).Methods("POST")
	api.HandleFunc("/notifications/{id}", r.deleteNotification).Methods("DELETE")

	api.Handle("/dashboard/stats", r.can(models.PermDashboardRead, r.dashboardStats)).Methods("GET")

	// Dashboard bundle
	if opts.Static != nil {
		r.PathPrefix("/").Handler(http.FileServer(http.FS(opts.Static)))
	}

	return r
}

// Handler returns the router behind the path rewrites that must run before matching
func (r *Router) Handler() http.Handler {
	return middleware.CaseInsensitivePrefixes(r.Router, "/verify")
}

// can guards h with a permission check
func (r *Router) can(code string, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(r.svc.Access, r.log, code)(h)
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns build and runtime information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status":     "running",
		"env":        r.nodeEnv,
		"buildTime":  buildinfo.BuildTime,
		"commitTime": buildinfo.CommitTime,
		"commitHash": buildinfo.CommitHash,
		"startTime":  buildinfo.StartTime,
	}
	if r.hub != nil {
		status["connectedUsers"] = len(r.hub.ConnectedUsers())
	}
	respondJSON(w, http.StatusOK, status)
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.hub, r.secret, w, req)
}
