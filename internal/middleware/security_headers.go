package middleware

import (
	"net/http"
)

// SecurityHeadersMiddleware sets the response headers appropriate for a
// JSON API that is never rendered in a browser.
type SecurityHeadersMiddleware struct {
	isProduction bool
}

func NewSecurityHeadersMiddleware(isProduction bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{isProduction: isProduction}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		if m.isProduction {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
