package handlers

import (
	"net/http"
	"strconv"

	"github.com/kami-operation/kamiops/internal/services/printer"
)

const qrSize = 256

// verifyDocument is the public landing of the QR code printed on sealed PDFs
func (r *Router) verifyDocument(w http.ResponseWriter, req *http.Request) {
	v, err := r.svc.Workflow.Verify(req.Context(), pathVar(req, "code"))
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, v)
}

// sealPublicKey lets third parties check sealed PDFs offline
func (r *Router) sealPublicKey(w http.ResponseWriter, req *http.Request) {
	pub, err := r.svc.Workflow.SealPublicKey()
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(pub))
}

// verificationQR returns the QR code pointing at the verification page as PNG
func (r *Router) verificationQR(w http.ResponseWriter, req *http.Request) {
	code := pathVar(req, "code")
	if _, err := r.svc.Workflow.Verify(req.Context(), code); err != nil {
		r.respondErr(w, req, err)
		return
	}

	png, err := printer.QRCode(r.svc.Workflow.VerificationURL(code), qrSize)
	if err != nil {
		r.respondErr(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
