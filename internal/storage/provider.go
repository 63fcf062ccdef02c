// Package storage defines the media file store used for photo assets.
package storage

import "github.com/starford/photolog/internal/models"

// Provider is the interface for media file operations.
type Provider interface {
	// Write atomically stores data under name and returns its locator.
	Write(name string, data []byte) (string, error)
	// Delete removes the asset at locator. A missing file is not an error.
	Delete(locator string) error
	// List returns every asset in the store.
	List() ([]models.Asset, error)
}
