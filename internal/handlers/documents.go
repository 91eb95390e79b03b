package handlers

import (
	"net/http"
	"strings"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/workflow"
)

// SignatoriesRequest is the body of PUT /api/documents/{id}/signatories
type SignatoriesRequest struct {
	Signatories []workflow.SignatoryInput `json:"signatories"`
}

// actor resolves the current user; documents.manage makes it a manager
func (r *Router) actor(req *http.Request) (workflow.Actor, error) {
	userID := middleware.UserID(req.Context())
	manager, err := r.svc.Access.HasPermission(req.Context(), userID, models.PermDocumentsManage)
	if err != nil {
		return workflow.Actor{}, err
	}
	return workflow.Actor{UserID: userID, Manager: manager}, nil
}

// documentFilter reads ?status=, ?documentTypeId=, ?createdBy=, ?search= and ?awaiting=true
func documentFilter(req *http.Request, userID string) (repository.DocumentFilter, error) {
	q := req.URL.Query()
	f := repository.DocumentFilter{
		Pagination:     pagination(req),
		Search:         searchQuery(req),
		DocumentTypeID: q.Get("documentTypeId"),
		CreatedBy:      q.Get("createdBy"),
	}
	if q.Get("mine") == "true" {
		f.CreatedBy = userID
	}
	for _, s := range listQuery(req, "status") {
		status := models.DocumentStatus(strings.ToUpper(s))
		if !status.Valid() {
			return f, ierr.NewErrorf("unknown status %q", s).
				WithHintf("Unknown status %s", s).
				Mark(ierr.ErrValidation)
		}
		f.Statuses = append(f.Statuses, status)
	}
	if awaiting := boolQuery(req, "awaiting"); awaiting != nil && *awaiting {
		f.AwaitingUser = userID
	}
	return f, nil
}

func (r *Router) listDocuments(w http.ResponseWriter, req *http.Request) {
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	f, err := documentFilter(req, actor.UserID)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	page, err := r.svc.Workflow.List(req.Context(), actor, f)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getDocument(w http.ResponseWriter, req *http.Request) {
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	doc, err := r.svc.Workflow.Get(req.Context(), actor, pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (r *Router) createDocument(w http.ResponseWriter, req *http.Request) {
	var body workflow.CreateRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	doc, err := r.svc.Workflow.Create(req.Context(), actor, body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (r *Router) updateDocument(w http.ResponseWriter, req *http.Request) {
	var body workflow.UpdateRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	doc, err := r.svc.Workflow.Update(req.Context(), actor, pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (r *Router) deleteDocument(w http.ResponseWriter, req *http.Request) {
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	if err := r.svc.Workflow.Delete(req.Context(), actor, pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) setSignatories(w http.ResponseWriter, req *http.Request) {
	var body SignatoriesRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	doc, err := r.svc.Workflow.SetSignatories(req.Context(), actor, pathVar(req, "id"), body.Signatories)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// transition runs a body-less lifecycle operation
func (r *Router) transition(op func(workflow.Actor, string) (*models.Document, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		actor, err := r.actor(req)
		if err != nil {
			r.respondErr(w, req, err)
			return
		}
		doc, err := op(actor, pathVar(req, "id"))
		if err != nil {
			r.respondErr(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	}
}

func (r *Router) submitDocument(w http.ResponseWriter, req *http.Request) {
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Submit(req.Context(), a, id)
	})(w, req)
}

func (r *Router) activateDocument(w http.ResponseWriter, req *http.Request) {
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Activate(req.Context(), a, id)
	})(w, req)
}

func (r *Router) useDocument(w http.ResponseWriter, req *http.Request) {
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.MarkUsed(req.Context(), a, id)
	})(w, req)
}

func (r *Router) sealDocument(w http.ResponseWriter, req *http.Request) {
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Seal(req.Context(), a, id)
	})(w, req)
}

func (r *Router) signDocument(w http.ResponseWriter, req *http.Request) {
	var body workflow.SignRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Sign(req.Context(), a, id, body)
	})(w, req)
}

func (r *Router) rejectDocument(w http.ResponseWriter, req *http.Request) {
	var body workflow.ReasonRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Reject(req.Context(), a, id, body)
	})(w, req)
}

func (r *Router) cancelDocument(w http.ResponseWriter, req *http.Request) {
	var body workflow.ReasonRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	r.transition(func(a workflow.Actor, id string) (*models.Document, error) {
		return r.svc.Workflow.Cancel(req.Context(), a, id, body)
	})(w, req)
}

// documentPDF redirects to storage when it hands out direct links, else streams the file.
// ?download=1 forces an attachment.
func (r *Router) documentPDF(w http.ResponseWriter, req *http.Request) {
	actor, err := r.actor(req)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	id := pathVar(req, "id")

	url, err := r.svc.Workflow.PDFURL(req.Context(), actor, id)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	if url != "" {
		http.Redirect(w, req, url, http.StatusFound)
		return
	}

	file, err := r.svc.Workflow.PDF(req.Context(), actor, id)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	if !file.Sealed {
		w.Header().Set("X-Document-Draft", "true")
	}
	writePDF(w, file.Filename, file.Content, req.URL.Query().Get("download") == "")
}
