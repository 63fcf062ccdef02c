package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/starford/photolog/internal/capture"
)

// Resolver maps a plain asset name to its path on disk.
type Resolver interface {
	Resolve(name string) (string, error)
}

// MediaHandler serves captured assets from the media directory.
type MediaHandler struct {
	media Resolver
}

// NewMediaHandler creates a handler over the given store.
func NewMediaHandler(media Resolver) *MediaHandler {
	return &MediaHandler{media: media}
}

// ServeFile handles GET /media/{filename}. Only image files are served.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	abs, err := h.media.Resolve(name)
	if err != nil || !capture.IsImageName(name) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid filename"))
		return
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, abs)
}
