// Package storage keeps generated files, such as result PDFs, and hands out
// public URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidName is returned for object names that escape the storage root.
var ErrInvalidName = errors.New("invalid object name")

// LocalPrefix is the URL path under which Local files are served.
const LocalPrefix = "/files/"

// Local stores files on disk.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates a Local uploader rooted at dir. URLs are publicURL followed
// by LocalPrefix and the object name.
func NewLocal(dir, publicURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the storage root.
func (l *Local) Dir() string { return l.dir }

// Upload writes data under name and returns its URL.
func (l *Local) Upload(_ context.Context, name string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	return l.URL(clean), nil
}

// URL returns the public URL of an object.
func (l *Local) URL(name string) string {
	return l.baseURL + LocalPrefix + strings.TrimPrefix(name, "/")
}

// ContentType sniffs the media type of data.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func cleanName(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}
