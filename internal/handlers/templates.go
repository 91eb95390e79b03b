package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/templates"
)

// MoveSectionRequest carries the new top-left corner in page percent
type MoveSectionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (r *Router) listTemplates(w http.ResponseWriter, req *http.Request) {
	page, err := r.svc.Templates.List(req.Context(), repository.TemplateFilter{
		Pagination:     pagination(req),
		Search:         searchQuery(req),
		DocumentTypeID: req.URL.Query().Get("documentTypeId"),
	})
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getTemplate(w http.ResponseWriter, req *http.Request) {
	tpl, err := r.svc.Templates.Get(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (r *Router) createTemplate(w http.ResponseWriter, req *http.Request) {
	var body templates.TemplateRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	tpl, err := r.svc.Templates.Create(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, tpl)
}

func (r *Router) updateTemplate(w http.ResponseWriter, req *http.Request) {
	var body templates.TemplateRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	tpl, err := r.svc.Templates.Update(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (r *Router) deleteTemplate(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Templates.Delete(req.Context(), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) duplicateTemplate(w http.ResponseWriter, req *http.Request) {
	tpl, err := r.svc.Templates.Duplicate(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, tpl)
}

// moveSection stores the position of a dragged section
func (r *Router) moveSection(w http.ResponseWriter, req *http.Request) {
	var body MoveSectionRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	tpl, err := r.svc.Templates.MoveSection(req.Context(), pathVar(req, "id"), pathVar(req, "sid"), body.X, body.Y)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

// previewTemplate renders the template with sample data
func (r *Router) previewTemplate(w http.ResponseWriter, req *http.Request) {
	var body templates.PreviewRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	pdf, err := r.svc.Templates.Preview(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	writePDF(w, "preview.pdf", pdf, true)
}

// writePDF streams a PDF; inline lets the browser display it instead of downloading
func writePDF(w http.ResponseWriter, filename string, data []byte, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
