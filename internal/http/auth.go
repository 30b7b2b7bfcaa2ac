package http

import (
	"context"
	"net"
	"net/http"
	"strings"

	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/user"
)

// contextKey is used for storing values in request context
type contextKey string

const userContextKey contextKey = "user"

const authRealm = `Basic realm="minutes", charset="UTF-8"`

// basicAuth middleware enforces HTTP Basic Authentication when any
// account is configured. With no accounts every request passes through.
func (s *Server) basicAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.users.AuthRequired() {
			handler(w, r)
			return
		}

		clientIP := s.clientIP(r)

		if s.rateLimiter.IsLimited(clientIP) {
			L_warn("http: rate limited", "ip", clientIP)
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Too many failed attempts. Try again later.", http.StatusTooManyRequests)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		u, ok := s.users.Authenticate(username, password)
		if !ok {
			s.rateLimiter.RecordFailure(clientIP)
			L_warn("http: auth failed", "username", username, "ip", clientIP)
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		s.rateLimiter.ClearFailure(clientIP)
		L_trace("http: auth success", "username", username, "ip", clientIP)

		handler(w, r.WithContext(setUserInContext(r.Context(), u)))
	}
}

// clientIP extracts the client IP from the request. Forwarding headers
// are only honoured with trustProxy set, otherwise any client could pick
// its own rate limit key.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		// the first X-Forwarded-For entry is the client
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getUserFromContext retrieves the authenticated user from request context.
// Returns nil when auth is disabled.
func getUserFromContext(r *http.Request) *user.User {
	if u, ok := r.Context().Value(userContextKey).(*user.User); ok {
		return u
	}
	return nil
}

// setUserInContext stores the user in the context
func setUserInContext(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// userName returns the authenticated username, or "" when auth is disabled.
func userName(r *http.Request) string {
	if u := getUserFromContext(r); u != nil {
		return u.Name
	}
	return ""
}
