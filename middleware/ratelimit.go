package middleware

import (
	"net/http"

	"github.com/authguard-dev/authguard"
)

// KeyFunc derives the rate-limit key for a request. The default keys by
// client IP.
type KeyFunc func(r *http.Request) string

// RateLimit returns middleware that admits requests through the engine's
// sliding window for the given category. Denied requests get 429; a cache
// outage admits (the engine fails open). A nil keyFn keys by client IP.
func RateLimit(guard *authguard.Guard, category authguard.RateCategory, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = func(r *http.Request) string { return clientIP(r) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			key := keyFn(r)
			if guard.IsBlocked(r.Context(), key) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			allowed, err := guard.AdmitRequest(r.Context(), key, category)
			if err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
