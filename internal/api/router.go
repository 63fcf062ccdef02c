package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/photolog/internal/gallery"
)

// NewRouter creates the /api sub-router.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(m *gallery.Manager, authEnabled bool, token string, sseHandler http.Handler, logger *slog.Logger) chi.Router {
	h := NewHandler(m, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/photos", h.ListPhotos)
	r.Post("/photos", h.CapturePhoto)
	r.Post("/photos/reload", h.Reload)
	r.Get("/photos/{id}", h.GetPhoto)
	r.Patch("/photos/{id}", h.RenamePhoto)
	r.Delete("/photos/{id}", h.DeletePhoto)
	r.Post("/photos/{id}/share", h.SharePhoto)

	r.Get("/status", h.Status)
	r.Get("/audit", h.Audit)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
