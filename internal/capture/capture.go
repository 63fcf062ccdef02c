// Package capture defines the capture device capability and its
// workstation implementations.
package capture

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
)

// Photo is the result of a successful capture.
type Photo struct {
	Data    []byte // raw image bytes
	Preview string // renderable reference; not guaranteed durable
}

// Device obtains a photo from the user.
//
// Implementations wrap apperr.ErrCaptureCancelled when the user aborts and
// apperr.ErrCaptureUnavailable when the device or permission is missing.
type Device interface {
	CapturePhoto(ctx context.Context) (Photo, error)
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context) (Photo, error)

func (f DeviceFunc) CapturePhoto(ctx context.Context) (Photo, error) { return f(ctx) }

// DefaultExtension is used when the image type cannot be sniffed.
const DefaultExtension = ".jpeg"

var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".bmp": true,
	}

	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpeg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"image/bmp":  ".bmp",
	}
)

// Extension sniffs data and returns the matching file extension,
// or DefaultExtension when the type is not a known image.
func Extension(data []byte) string {
	if ext, ok := sniff(data); ok {
		return ext
	}
	return DefaultExtension
}

// IsImageName reports whether name has an image file extension.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

func sniff(data []byte) (string, bool) {
	detected := http.DetectContentType(data)
	ext, ok := mimeToExt[strings.Split(detected, ";")[0]]
	return ext, ok
}
