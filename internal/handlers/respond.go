package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/middleware"
	"github.com/kami-operation/kamiops/internal/repository"
)

const maxBodySize = 4 << 20

// errorResponse is the envelope of every API error
type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondErr maps a service error to its status; unexpected errors are logged and
// answered with a generic message
func (r *Router) respondErr(w http.ResponseWriter, req *http.Request, err error) {
	status := ierr.HTTPStatusFromErr(err)
	if status >= http.StatusInternalServerError {
		r.log.Error().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("user_id", middleware.UserID(req.Context())).
			Msg("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondJSON(w, status, errorResponse{Error: ierr.DisplayMessage(err), Details: ierr.Details(err)})
}

// decodeJSON reads the request body into v; an empty body leaves v untouched
func decodeJSON(w http.ResponseWriter, req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return ierr.WithError(err).WithHint("Invalid request payload").Mark(ierr.ErrValidation)
	}
	return nil
}

func pathVar(req *http.Request, name string) string {
	return mux.Vars(req)[name]
}

func pagination(req *http.Request) repository.Pagination {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return repository.Pagination{Page: page, PageSize: size}.Normalize()
}

// searchQuery accepts ?search= and the shorter ?q=
func searchQuery(req *http.Request) string {
	q := req.URL.Query()
	if s := q.Get("search"); s != "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(q.Get("q"))
}

// boolQuery returns nil when the parameter is absent or unparsable
func boolQuery(req *http.Request, name string) *bool {
	v, err := strconv.ParseBool(req.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &v
}

// listQuery splits comma separated and repeated parameters
func listQuery(req *http.Request, name string) []string {
	var out []string
	for _, v := range req.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
