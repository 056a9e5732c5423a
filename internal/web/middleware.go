package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"parkalot/internal/auth"
	appLog "parkalot/internal/log"
	"parkalot/internal/metrics"
	"parkalot/internal/model"
	"parkalot/internal/store"
)

type requestIDKey struct{}

// requestID tags every request with an id, reusing X-Request-ID when the
// client sent a well formed one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.ObserveRequest(r.Method, rec.status, elapsed)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// loadUser resolves the current user from the session cookie, or for API
// calls from HTTP Basic credentials, and stores it in the request context.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.sessions.UserID(r); ok {
			u, err := s.store.GetUser(r.Context(), id)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithUser(r.Context(), u))
			case errors.Is(err, store.ErrNotFound):
				// Account is gone; treat as logged out.
			default:
				appLog.Error("load session user failed", err, "user_id", id)
			}
		} else if email, password, ok := r.BasicAuth(); ok && isAPI(r) {
			ip := clientIP(r)
			if s.limiter.Throttled(ip) {
				metrics.LoginAttempts.WithLabelValues("throttled").Inc()
				writeError(w, http.StatusTooManyRequests, "too many login attempts")
				return
			}
			u, err := s.accounts.Authenticate(r.Context(), email, password)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidCredentials) {
					appLog.Error("basic auth failed", err, "request_id", requestIDFrom(r.Context()))
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
				s.limiter.Fail(ip)
				metrics.LoginAttempts.WithLabelValues("failure").Inc()
				w.Header().Set("WWW-Authenticate", `Basic realm="Park-a-Lot", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			metrics.LoginAttempts.WithLabelValues("success").Inc()
			r = r.WithContext(auth.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, u *model.User)

// requirePage redirects anonymous visitors to the login page.
func (s *Server) requirePage(h userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFrom(r.Context())
		if !ok {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		h(w, r, u)
	})
}

// requireAPI answers 401 for anonymous API calls.
func (s *Server) requireAPI(h userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFrom(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Park-a-Lot", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		h(w, r, u)
	})
}

func isAPI(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
