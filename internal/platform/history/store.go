// Package history keeps a PNG of every printed label.
package history

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/dontdude/scanprint/internal/domain"
)

// Store writes rasters into a directory, one file per capture.
type Store struct {
	dir string
}

var _ domain.ArtifactStore = (*Store)(nil)

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// FileName is scan_YYYYMMDD_HHMMSS_ffffff.png for the capture time.
func FileName(capturedAt time.Time) string {
	return fmt.Sprintf("scan_%s_%06d.png", capturedAt.Format("20060102_150405"), capturedAt.Nanosecond()/1000)
}

// Save encodes img as PNG and returns the file name relative to the store.
func (s *Store) Save(capturedAt time.Time, img image.Image) (string, error) {
	name := FileName(capturedAt)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	return name, nil
}

// Dir returns the directory artifacts are written to.
func (s *Store) Dir() string {
	return s.dir
}
