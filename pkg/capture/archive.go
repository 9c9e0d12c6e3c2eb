package capture

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	requestNameLayout = "2006-01-02-15-04-05"
	requestExt        = ".bin"
	imageNameLayout   = "20060102150405"
	imagePrefix       = "image_"
	// Every extracted image is named .jpg whatever its declared subtype.
	imageExt = ".jpg"
)

// EnsureDir creates the capture directory if it does not exist
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(err, "capture: creating directory")
	}
	return nil
}

// Archiver writes request snapshots and extracted images into one directory.
// Names have one-second resolution, so two writes of the same kind in the
// same second go to the same file and the last one wins.
type Archiver struct {
	dir string
	now func() time.Time
}

// NewArchiver returns an archiver writing into dir using the wall clock
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir, now: time.Now}
}

// WithClock replaces the clock used for file names
func (a *Archiver) WithClock(now func() time.Time) *Archiver {
	a.now = now
	return a
}

// Dir returns the capture directory
func (a *Archiver) Dir() string {
	return a.dir
}

// RequestPath returns the snapshot path for a capture taken at t
func (a *Archiver) RequestPath(t time.Time) string {
	return filepath.Join(a.dir, t.Format(requestNameLayout)+requestExt)
}

// ImagePath returns the image path for an extraction at t
func (a *Archiver) ImagePath(t time.Time) string {
	return filepath.Join(a.dir, imagePrefix+t.Format(imageNameLayout)+imageExt)
}

// SaveRequest writes data verbatim, even when empty, and returns the path
func (a *Archiver) SaveRequest(data []byte) (string, error) {
	path := a.RequestPath(a.now())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(err, "capture: saving request")
	}
	return path, nil
}

// SaveImage writes an extracted image payload and returns the path
func (a *Archiver) SaveImage(data []byte) (string, error) {
	path := a.ImagePath(a.now())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(err, "capture: saving image")
	}
	return path, nil
}
