// Package imagesrc decodes uploaded images and archives enrollment photos.
package imagesrc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel kinds for image source errors.
var (
	ErrMalformedDataURL = errors.New("malformed image data")
	ErrInvalidRoll      = errors.New("roll is not a safe file name")
)

// DecodeDataURL returns the bytes of a base64 image. A "data:image/...;base64,"
// prefix is optional; everything up to the first comma is dropped.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedDataURL, err)
	}
	return data, nil
}

// Archive stores enrollment reference images as <dir>/<roll>.jpg. An empty
// dir disables archiving.
type Archive struct {
	dir string
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Enabled reports whether Save writes anything.
func (a *Archive) Enabled() bool { return a != nil && a.dir != "" }

// Save writes data for roll and returns the file path, or "" when disabled.
func (a *Archive) Save(roll string, data []byte) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if roll == "" || roll == "." || roll == ".." || strings.ContainsAny(roll, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoll, roll)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, roll+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
