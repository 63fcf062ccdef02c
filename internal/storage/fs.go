package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/photolog/internal/models"
)

const tmpPrefix = ".photolog-tmp-"

// FS implements Provider backed by a flat local media directory.
// Locators are absolute file paths under the root.
type FS struct {
	root string // absolute path to media directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute media directory.
func (f *FS) Root() string {
	return f.root
}

// Resolve maps a plain file name to its absolute path under root.
// Names with separators or traversal are rejected.
func (f *FS) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage: name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == ".." || cleaned == "." ||
		strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("storage: invalid name: %s", name)
	}
	return filepath.Join(f.root, cleaned), nil
}

// safeLocator maps a locator to a path under root. Absolute locators are
// resolved by base name, so entries written before the media directory
// moved still address their files.
func (f *FS) safeLocator(loc string) (string, error) {
	if filepath.IsAbs(loc) {
		loc = filepath.Base(filepath.Clean(loc))
	}
	return f.Resolve(loc)
}

// Write atomically writes data: tmp file → fsync → rename.
func (f *FS) Write(name string, data []byte) (string, error) {
	abs, err := f.Resolve(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(f.root, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return abs, nil
}

// Read returns the raw bytes of an asset.
func (f *FS) Read(locator string) ([]byte, error) {
	abs, err := f.safeLocator(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", filepath.Base(abs), err)
	}
	return data, nil
}

// Delete removes an asset. Deleting a file that is already gone succeeds.
func (f *FS) Delete(locator string) error {
	abs, err := f.safeLocator(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", filepath.Base(abs), err)
	}
	return nil
}

// List returns every regular file in the media directory, sorted by name.
// In-flight temp files are skipped.
func (f *FS) List() ([]models.Asset, error) {
	dirEntries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]models.Asset, 0, len(dirEntries))
	for _, d := range dirEntries {
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", d.Name(), err)
		}
		data, err := f.Read(d.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, models.Asset{
			Name:     d.Name(),
			Locator:  filepath.Join(f.root, d.Name()),
			Size:     info.Size(),
			Checksum: checksum(data),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
