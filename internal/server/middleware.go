package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/incisive-io/tabled/internal/policy"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller identity forwarded by the gateway. An absent or
// unknown role header degrades to viewer.
type Identity struct {
	UserID string
	Role   policy.Role
}

// identity extracts the caller identity from the trusted headers.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get("X-User-Id"),
			Role:   policy.ParseRole(r.Header.Get("X-User-Role")),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func callerIdentity(r *http.Request) Identity {
	if id, ok := r.Context().Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{Role: policy.RoleViewer}
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("duration", time.Since(start).String()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger().
			Info("request completed")
	})
}
