package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
)

// newRouter mounts every route on a chi router.
func newRouter(reg *registry.Registry, hm metrics.HTTPMetrics, maxBodyBytes int64) http.Handler {
	h := &handlers{reg: reg, metrics: hm}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe(hm))
	r.Use(limitBody(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})

	r.Get("/status", h.getStatus)
	r.Get("/stats", h.getStats)
	r.Post("/users", h.postUser)
	r.Get("/connect", h.getConnect)
	r.Get("/disconnect", h.getDisconnect)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity(reg.Auth()))

		r.Get("/users/me", h.getMe)
		r.Post("/files", h.postFile)
		r.Get("/files", h.listFiles)
		r.Get("/files/{id}", h.getFile)
		r.Put("/files/{id}/publish", h.publish)
		r.Put("/files/{id}/unpublish", h.unpublish)
	})

	r.With(optionalIdentity(reg.Auth())).Get("/files/{id}/data", h.getFileData)

	return r
}
