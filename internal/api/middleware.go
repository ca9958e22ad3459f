package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"opsboard/internal/core"
	"opsboard/internal/logger"
	"opsboard/internal/metrics"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.Info.Printf("%s %s %d %v", r.Method, r.URL.Path, rw.status, duration)
	})
}

// MetricsMiddleware records request counts and latency per chi route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		route := routePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// unmatchedRoute labels requests no route matched, keeping label values bounded.
const unmatchedRoute = "unmatched"

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatchedRoute
}

// Custom response writer to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// SessionMiddleware loads the caller's session cookie into the request context.
func SessionMiddleware(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sessions.Load(r)
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}

// RequireSession rejects anonymous callers and re-checks the account behind
// the cookie, so deleted accounts and role changes take effect immediately.
func RequireSession(auth *service.AuthService, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if !s.Authenticated || s.AccountID == nil {
				JSONError(w, ErrUnauthorized)
				return
			}

			acc, err := auth.Account(r.Context(), *s.AccountID)
			if errors.Is(err, core.ErrNotFound) {
				logger.Info.Printf("Session for removed account %d rejected", *s.AccountID)
				_ = sessions.Clear(w, r)
				JSONError(w, ErrUnauthorized)
				return
			}
			if err != nil {
				writeError(w, r, err)
				return
			}

			fresh := &session.Session{}
			fresh.SignIn(acc)
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), fresh)))
		})
	}
}

// RequireRole allows callers whose role is at least min (user < analyst < admin).
func RequireRole(min core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session.FromContext(r.Context()).HasRole(min) {
				JSONError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
