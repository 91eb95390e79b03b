package middleware

import (
	"net/http"
	"strings"
)

// CaseInsensitivePrefixes lowercases request paths under the given prefixes.
// QR codes encode URLs in upper case since alphanumeric mode is denser, so
// /VERIFY/AB12.../QR must reach the same route as /verify/ab12.../qr.
// It wraps the router because mux matches routes before its own middlewares run.
func CaseInsensitivePrefixes(next http.Handler, prefixes ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lower := strings.ToLower(r.URL.Path)
		for _, p := range prefixes {
			if lower == p || strings.HasPrefix(lower, p+"/") {
				r.URL.Path = lower
				r.URL.RawPath = ""
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}
