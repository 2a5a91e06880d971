package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/service"
)

// tokenHeader carries the session token on authenticated routes.
const tokenHeader = "X-Token"

type contextKey string

const userIDKey contextKey = "user_id"

// userID returns the identity attached by requireIdentity or
// optionalIdentity, or "" for anonymous requests.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// observe logs and measures every request. The metrics label is the chi
// route pattern, so IDs in paths do not explode cardinality.
func observe(hm metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			hm.RecordRequestStart()
			defer hm.RecordRequestEnd()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			duration := time.Since(start)
			hm.RecordRequest(r.Method, route, status, duration)
			logger.Debug("REST %s %s -> %d (%d bytes, %s)",
				r.Method, r.URL.Path, status, ww.BytesWritten(), duration)
		})
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireIdentity resolves X-Token and rejects the request with 401 when
// it is missing or has no active session.
func requireIdentity(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.ResolveIdentity(r.Context(), r.Header.Get(tokenHeader))
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
		})
	}
}

// optionalIdentity attaches the identity when X-Token resolves and
// otherwise lets the request through anonymously.
func optionalIdentity(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(tokenHeader)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.ResolveIdentity(r.Context(), token)
			if err != nil {
				if service.KindOf(err) == service.KindInternal {
					writeError(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
		})
	}
}
