package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/utils"
)

const testSecret = "test-secret"

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	pair, err := utils.GenerateTokens(&models.User{ID: userID, Role: &models.Role{Code: "SIGNER"}}, utils.TokenConfig{
		Secret:     testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestAuth(t *testing.T) {
	var seen, role string
	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		role = RoleCode(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	refresh, err := utils.GenerateTokens(&models.User{ID: "u1"}, utils.TokenConfig{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + refresh.RefreshToken, http.StatusUnauthorized},
		{"valid", "Bearer " + accessToken(t, "u1"), http.StatusNoContent},
		{"lowercase scheme", "bearer " + accessToken(t, "u1"), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "u1", seen)
				assert.Equal(t, "SIGNER", role)
			} else {
				assert.Empty(t, seen)
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

type stubChecker struct {
	grants map[string]bool
	err    error
}

func (s stubChecker) HasPermission(_ context.Context, userID, code string) (bool, error) {
	return s.grants[userID+":"+code], s.err
}

func TestRequirePermission_Allows(t *testing.T) {
	called := false
	mw := RequirePermission(stubChecker{grants: map[string]bool{"u1:documents.sign": true}}, zerolog.Nop(), "documents.sign")
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequirePermission_Forbids(t *testing.T) {
	mw := RequirePermission(stubChecker{grants: map[string]bool{"u1:documents.read": true}}, zerolog.Nop(), "documents.sign")
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach next handler")
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequirePermission_Errors(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach next handler")
	})

	// no authenticated user
	rec := httptest.NewRecorder()
	RequirePermission(stubChecker{}, zerolog.Nop(), "documents.read")(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// lookup failure
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "u1"))
	rec = httptest.NewRecorder()
	RequirePermission(stubChecker{err: errors.New("boom")}, zerolog.Nop(), "documents.read")(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCaseInsensitivePrefixes(t *testing.T) {
	r := mux.NewRouter()
	var code string
	r.HandleFunc("/verify/{code}/qr", func(w http.ResponseWriter, req *http.Request) {
		code = mux.Vars(req)["code"]
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("/api/Mixed", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CaseInsensitivePrefixes(r, "/verify")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/VERIFY/AB12CD/QR", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ab12cd", code)

	// other paths keep their case
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/Mixed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// prefix must end at a segment boundary
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/VERIFYX/AB12CD/QR", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestLogger(zerolog.Nop()), Recover(zerolog.Nop()))
	r.HandleFunc("/api/things/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.HandleFunc("/panic", func(w http.ResponseWriter, req *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/things/42", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
