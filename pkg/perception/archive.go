package perception

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Archive stores captured frames on disk, one JPEG per report.
type Archive struct {
	dir     string
	quality int
	width   int // 0 keeps the original size
}

// NewArchive creates dir if needed. width > 0 downscales saved frames.
func NewArchive(dir string, quality, width int) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dir: dir, quality: quality, width: width}, nil
}

// Path returns where the frame of r is stored.
func (a *Archive) Path(r Report) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s-%s.jpg", r.Direction, r.ID))
}

// Save decodes frame and writes it under Path(r).
func (a *Archive) Save(r Report, frame []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(frame), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	if a.width > 0 && img.Bounds().Dx() > a.width {
		img = imaging.Resize(img, a.width, 0, imaging.Lanczos)
	}

	path := a.Path(r)
	if err := imaging.Save(img, path, imaging.JPEGQuality(a.quality)); err != nil {
		return "", fmt.Errorf("save frame: %w", err)
	}
	return path, nil
}
