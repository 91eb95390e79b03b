package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/services/signatures"
)

func (r *Router) listSignatures(w http.ResponseWriter, req *http.Request) {
	list, err := r.svc.Signatures.List(req.Context(), middleware.UserID(req.Context()))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// captureSignature accepts a JSON capture request, or a multipart upload with a "file" part
func (r *Router) captureSignature(w http.ResponseWriter, req *http.Request) {
	var body signatures.CaptureRequest

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		if body, err = readUpload(w, req); err != nil {
			r.respondErr(w, req, err)
			return
		}
	} else if err := decodeJSON(w, req, &body); err != nil {
		r.respondErr(w, req, err)
		return
	}

	sig, err := r.svc.Signatures.Capture(req.Context(), middleware.UserID(req.Context()), body)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, sig)
}

func readUpload(w http.ResponseWriter, req *http.Request) (signatures.CaptureRequest, error) {
	req.Body = http.MaxBytesReader(w, req.Body, signatures.MaxImageSize+64<<10)
	if err := req.ParseMultipartForm(signatures.MaxImageSize); err != nil {
		return signatures.CaptureRequest{}, ierr.WithError(err).
			WithHint("Signature image must be at most 2 MiB").
			Mark(ierr.ErrValidation)
	}
	file, _, err := req.FormFile("file")
	if err != nil {
		return signatures.CaptureRequest{}, ierr.WithError(err).
			WithHint("Upload a PNG or JPEG file in the \"file\" field").
			Mark(ierr.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return signatures.CaptureRequest{}, ierr.WithError(err).WithHint("Could not read upload").Mark(ierr.ErrValidation)
	}
	save, _ := strconv.ParseBool(req.FormValue("save"))
	return signatures.CaptureRequest{
		Kind:   models.SignatureUploaded,
		Name:   req.FormValue("name"),
		Save:   save,
		Upload: data,
	}, nil
}

func (r *Router) setDefaultSignature(w http.ResponseWriter, req *http.Request) {
	sig, err := r.svc.Signatures.SetDefault(req.Context(), middleware.UserID(req.Context()), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, sig)
}

func (r *Router) deleteSignature(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Signatures.Delete(req.Context(), middleware.UserID(req.Context()), pathVar(req, "id")); err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// signatureImage streams the stored image; signed documents show it to every reader
func (r *Router) signatureImage(w http.ResponseWriter, req *http.Request) {
	data, contentType, err := r.svc.Signatures.Image(req.Context(), pathVar(req, "id"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
