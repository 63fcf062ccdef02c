package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/photolog/internal/apperr"
)

const maxImageSize = 10 << 20 // 10 MB

// Source captures the image referenced by a URI: a base64 data: URI, an
// http(s) URL, or, when AllowLocal is set, a local path or file:// URI.
// An empty URI means the user picked nothing.
type Source struct {
	URI    string
	Client *http.Client

	// AllowLocal permits reading files from this host. Leave it unset for
	// sources supplied over the network.
	AllowLocal bool
}

// ErrLocalSource is returned for a local path when AllowLocal is unset.
var ErrLocalSource = fmt.Errorf("%w: local file sources are not accepted", apperr.ErrValidation)

// CapturePhoto resolves the URI and returns its bytes.
func (s Source) CapturePhoto(ctx context.Context) (Photo, error) {
	if err := ctx.Err(); err != nil {
		return Photo{}, fmt.Errorf("%w: %v", apperr.ErrCaptureCancelled, err)
	}
	uri := strings.TrimSpace(s.URI)
	if uri == "" {
		return Photo{}, fmt.Errorf("%w: no image selected", apperr.ErrCaptureCancelled)
	}

	var (
		data    []byte
		preview = uri
		err     error
	)
	switch {
	case strings.HasPrefix(uri, "data:"):
		data, err = decodeDataURI(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		data, err = s.fetchHTTP(ctx, uri)
	case !s.AllowLocal:
		return Photo{}, ErrLocalSource
	default:
		data, preview, err = readLocal(uri)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Photo{}, fmt.Errorf("%w: %v", apperr.ErrCaptureCancelled, err)
		}
		return Photo{}, fmt.Errorf("%w: %v", apperr.ErrCaptureUnavailable, err)
	}

	if len(data) > maxImageSize {
		return Photo{}, fmt.Errorf("%w: image too large: %d bytes (max %d)", apperr.ErrCaptureUnavailable, len(data), maxImageSize)
	}
	if _, ok := sniff(data); !ok {
		return Photo{}, fmt.Errorf("%w: content is not a supported image (detected: %s)",
			apperr.ErrCaptureUnavailable, http.DetectContentType(data))
	}
	return Photo{Data: data, Preview: preview}, nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// readLocal reads a path or file:// URI and returns the bytes plus a
// file:// preview reference.
func readLocal(uri string) ([]byte, string, error) {
	p := uri
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return nil, "", fmt.Errorf("invalid file URI: %w", err)
		}
		p = parsed.Path
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, "", fmt.Errorf("permission denied: %s", abs)
		}
		return nil, "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("not a file: %s", abs)
	}
	if info.Size() > maxImageSize {
		return nil, "", fmt.Errorf("image too large: %d bytes (max %d)", info.Size(), maxImageSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", abs, err)
	}
	return data, fileURI(abs), nil
}

func fileURI(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// fetchHTTP downloads an image with security checks.
func (s Source) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	guarded := *client
	guarded.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("too many redirects (max 5)")
		}
		return checkBlockedHost(req.URL.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := guarded.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
