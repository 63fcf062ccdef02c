package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/models"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	gallery *gallery.Manager
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(m *gallery.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gallery: m, logger: logger}
}

// ListPhotos handles GET /api/photos.
//
//	@Summary		List photos, newest first
//	@Tags			photos
//	@Produce		json
//	@Success		200	{object}	PhotoListResponse
//	@Security		BearerAuth
//	@Router			/photos [get]
func (h *Handler) ListPhotos(w http.ResponseWriter, _ *http.Request) {
	entries := h.gallery.Entries()
	photos := make([]PhotoResponse, 0, len(entries))
	for _, e := range entries {
		photos = append(photos, toPhotoResponse(e))
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: photos, Total: len(photos)})
}

// GetPhoto handles GET /api/photos/{id}.
//
//	@Summary		Get a single photo
//	@Tags			photos
//	@Produce		json
//	@Param			id	path		string	true	"Photo id"
//	@Success		200	{object}	PhotoResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id} [get]
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.gallery.Get(id)
	if !ok {
		writeError(w, h.logger, "get photo failed",
			apperr.New("get", apperr.KindNotFound, id, errors.New("photo not found")))
		return
	}
	writeJSON(w, http.StatusOK, toPhotoResponse(entry))
}

// CapturePhoto handles POST /api/photos.
//
//	@Summary		Capture a photo and add it to the collection
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CapturePhotoRequest	false	"Optional title and source"
//	@Success		201		{object}	PhotoResponse
//	@Failure		409		{object}	errResponse	"Capture cancelled"
//	@Failure		503		{object}	errResponse	"Capture unavailable"
//	@Security		BearerAuth
//	@Router			/photos [post]
func (h *Handler) CapturePhoto(w http.ResponseWriter, r *http.Request) {
	var req CapturePhotoRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	var (
		entry *models.PhotoEntry
		err   error
	)
	if req.Source != "" {
		entry, err = h.gallery.CaptureWith(r.Context(), capture.Source{URI: req.Source}, req.Title)
	} else {
		entry, err = h.gallery.Capture(r.Context(), req.Title)
	}
	if err != nil {
		writeError(w, h.logger, "capture photo failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPhotoResponse(*entry))
}

// RenamePhoto handles PATCH /api/photos/{id}.
//
//	@Summary		Change a photo's title
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Photo id"
//	@Param			body	body		RenamePhotoRequest	true	"New title"
//	@Success		200		{object}	PhotoResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id} [patch]
func (h *Handler) RenamePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RenamePhotoRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if err := h.gallery.UpdateTitle(r.Context(), id, req.Title); err != nil {
		writeError(w, h.logger, "rename photo failed", err)
		return
	}
	entry, _ := h.gallery.Get(id)
	writeJSON(w, http.StatusOK, toPhotoResponse(entry))
}

// DeletePhoto handles DELETE /api/photos/{id}.
//
//	@Summary		Delete a photo
//	@Tags			photos
//	@Param			id	path	string	true	"Photo id"
//	@Success		204	"Photo deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id} [delete]
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.DeletePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete photo failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SharePhoto handles POST /api/photos/{id}/share.
//
//	@Summary		Share a photo
//	@Tags			photos
//	@Produce		json
//	@Param			id	path		string	true	"Photo id"
//	@Success		200	{object}	ShareResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id}/share [post]
func (h *Handler) SharePhoto(w http.ResponseWriter, r *http.Request) {
	shared, err := h.gallery.SharePhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "share photo failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ShareResponse{Shared: shared})
}

// Reload handles POST /api/photos/reload.
//
//	@Summary		Re-read the persisted collection
//	@Tags			photos
//	@Produce		json
//	@Success		200	{object}	PhotoListResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.Reload(r.Context()); err != nil {
		writeError(w, h.logger, "reload failed", err)
		return
	}
	h.ListPhotos(w, r)
}

// Status handles GET /api/status.
//
//	@Summary		Manager state
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Busy:  h.gallery.Busy(),
		Total: len(h.gallery.Entries()),
	}
	if err := h.gallery.LastError(); err != nil {
		resp.LastError = err.Error()
		resp.Kind = string(apperr.KindOf(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Audit handles GET /api/audit.
//
//	@Summary		Compare the index with the media directory
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	AuditResponse
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.gallery.Audit(r.Context())
	if err != nil {
		writeError(w, h.logger, "audit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// decodeBody reads a JSON body into v. An empty body is accepted only when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
	return false
}
