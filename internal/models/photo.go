// Package models defines the domain types for photolog.
package models

import "time"

// PhotoEntry is the metadata record of one captured photo.
type PhotoEntry struct {
	ID          string    `json:"id"`
	Filepath    string    `json:"filepath"`    // storage locator of the durable asset
	PreviewPath string    `json:"previewPath"` // renderable reference, session-scoped
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Asset describes a file present in the media store.
type Asset struct {
	Name     string    `json:"name"`
	Locator  string    `json:"locator"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}
