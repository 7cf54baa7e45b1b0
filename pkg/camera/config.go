// Package camera captures still frames for the perception sweep.
package camera

import (
	"context"
	"fmt"
)

// Camera captures a single JPEG-encoded frame.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Config holds the capture settings.
type Config struct {
	Device  int `json:"device"`  // Video device index
	Width   int `json:"width"`   // Frame width in pixels
	Height  int `json:"height"`  // Frame height in pixels
	Quality int `json:"quality"` // JPEG quality 1-100

	// Warmup frames are read and discarded before each capture so the
	// frame reflects the current head pose rather than a buffered one.
	Warmup int `json:"warmup"`
}

// Sensor limits of the head camera.
const (
	SensorMaxWidth  = 2560
	SensorMaxHeight = 1920
)

// DefaultConfig returns the standard 640x480 capture configuration.
func DefaultConfig() Config {
	return Config{
		Device:  0,
		Width:   640,
		Height:  480,
		Quality: 90,
		Warmup:  2,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < 160 || c.Width > SensorMaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", SensorMaxWidth))
	}
	if c.Height < 120 || c.Height > SensorMaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", SensorMaxHeight))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Warmup < 0 {
		errors = append(errors, "warmup must not be negative")
	}

	return errors
}
