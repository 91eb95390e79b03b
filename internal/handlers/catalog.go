package handlers

import (
	"net/http"

	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/catalog"
)

// Categories

func (r *Router) listCategories(w http.ResponseWriter, req *http.Request) {
	page, err := r.svc.Catalog.ListCategories(req.Context(), repository.CategoryFilter{
		Pagination: pagination(req),
		Search:     searchQuery(req),
		ParentID:   req.URL.Query().Get("parentId"),
		Active:     boolQuery(req, "active"),
	})
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getCategory(w http.ResponseWriter, req *http.Request) {
	cat, err := r.svc.Catalog.GetCategory(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, cat)
}

func (r *Router) createCategory(w http.ResponseWriter, req *http.Request) {
	var body catalog.CategoryRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	cat, err := r.svc.Catalog.CreateCategory(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, cat)
}

func (r *Router) updateCategory(w http.ResponseWriter, req *http.Request) {
	var body catalog.CategoryRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	cat, err := r.svc.Catalog.UpdateCategory(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, cat)
}

func (r *Router) deleteCategory(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Catalog.DeleteCategory(req.Context(), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Document types

func (r *Router) listDocumentTypes(w http.ResponseWriter, req *http.Request) {
	page, err := r.svc.Catalog.ListDocumentTypes(req.Context(), repository.DocumentTypeFilter{
		Pagination: pagination(req),
		Search:     searchQuery(req),
		CategoryID: req.URL.Query().Get("categoryId"),
		Active:     boolQuery(req, "active"),
	})
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getDocumentType(w http.ResponseWriter, req *http.Request) {
	dt, err := r.svc.Catalog.GetDocumentType(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, dt)
}

func (r *Router) createDocumentType(w http.ResponseWriter, req *http.Request) {
	var body catalog.DocumentTypeRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	dt, err := r.svc.Catalog.CreateDocumentType(req.Context(), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, dt)
}

func (r *Router) updateDocumentType(w http.ResponseWriter, req *http.Request) {
	var body catalog.DocumentTypeRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}
	dt, err := r.svc.Catalog.UpdateDocumentType(req.Context(), pathVar(req, "id"), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, dt)
}

func (r *Router) deleteDocumentType(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Catalog.DeleteDocumentType(req.Context(), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
