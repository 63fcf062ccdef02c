package api

import (
	"path/filepath"
	"time"

	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/models"
)

// CapturePhotoRequest is the request body for POST /api/photos.
// Source is a data: URI or http(s) URL; local paths are rejected. When
// empty the server's configured capture device is used.
type CapturePhotoRequest struct {
	Title  string `json:"title,omitempty" example:"Beach"`
	Source string `json:"source,omitempty" example:"data:image/png;base64,..."`
}

// RenamePhotoRequest is the request body for PATCH /api/photos/{id}.
type RenamePhotoRequest struct {
	Title string `json:"title" example:"Sunset" validate:"required"`
}

// PhotoResponse is a photo entry plus the URL its asset is served from.
type PhotoResponse struct {
	ID          string    `json:"id" validate:"required"`
	Filepath    string    `json:"filepath" validate:"required"`
	PreviewPath string    `json:"previewPath" validate:"required"`
	Title       string    `json:"title" example:"Photo Mar 7, 14:05" validate:"required"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	MediaURL    string    `json:"mediaUrl" example:"/media/1709820300000.jpeg"`
}

// PhotoListResponse wraps the collection.
type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos" validate:"required"`
	Total  int             `json:"total" example:"3" validate:"required"`
}

// ShareResponse reports whether the share completed.
type ShareResponse struct {
	Shared bool `json:"shared"`
}

// StatusResponse mirrors the manager's observable state.
type StatusResponse struct {
	Busy      bool   `json:"busy"`
	LastError string `json:"lastError,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Total     int    `json:"total"`
}

// AuditResponse is the consistency report.
type AuditResponse = gallery.AuditReport

func toPhotoResponse(e models.PhotoEntry) PhotoResponse {
	return PhotoResponse{
		ID:          e.ID,
		Filepath:    e.Filepath,
		PreviewPath: e.PreviewPath,
		Title:       e.Title,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		MediaURL:    "/media/" + filepath.Base(e.Filepath),
	}
}
