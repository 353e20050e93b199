package middleware

import (
	"net/http"
)

const (
	// Activity reports carry a device_info blob and the bulk app report
	// can list every app on the device; 256KB covers both with room to
	// spare.
	DefaultMaxBodySize = 256 << 10
)

// BodyLimitMiddleware caps request body size before any handler reads it.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reject early when the device declares an oversized payload;
		// MaxBytesReader still guards chunked bodies with no length.
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
