package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/authguard-dev/authguard"
)

type securityContextKey struct{}

// SecurityContextFromContext returns the identity a guard middleware
// injected for this request.
func SecurityContextFromContext(ctx context.Context) (*authguard.SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*authguard.SecurityContext)
	return sc, ok
}

// DeviceFingerprintHeader is the request header carrying the client's
// device fingerprint, when the caller computes one client-side.
const DeviceFingerprintHeader = "X-Device-Fingerprint"

// Authenticate returns middleware that requires a valid bearer token
// backed by a live session. Revoked tokens and invalidated sessions are
// rejected here; a Redis outage is not.
func Authenticate(guard *authguard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ip := clientIP(r)
			device := r.Header.Get(DeviceFingerprintHeader)
			if !guard.ValidateToken(r.Context(), token, device, ip) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sc, err := guard.GetSecurityContext(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), securityContextKey{}, sc)
			ctx = authguard.WithClientIP(ctx, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateStateless returns middleware that verifies only the token's
// signature and claims. No Redis round-trip, so revocation and session
// invalidation are not observed. Use for high-volume read paths.
func AuthenticateStateless(guard *authguard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sc, err := guard.GetSecurityContext(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), securityContextKey{}, sc)
			ctx = authguard.WithClientIP(ctx, clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles returns middleware that rejects requests whose injected
// identity lacks any of the given roles. It must run after a guard.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := SecurityContextFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, want := range roles {
				if !hasRole(sc.Roles, want) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(have []string, want string) bool {
	for _, r := range have {
		if r == want {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

// clientIP takes the first X-Forwarded-For hop when present, else the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
