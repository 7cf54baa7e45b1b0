package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceCamera captures frames from a local video device through OpenCV.
type DeviceCamera struct {
	mu     sync.Mutex
	config Config
	vc     *gocv.VideoCapture
	frame  gocv.Mat
}

// OpenDevice opens the video device described by cfg.
func OpenDevice(cfg Config) (*DeviceCamera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %v", errs)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	return &DeviceCamera{
		config: cfg,
		vc:     vc,
		frame:  gocv.NewMat(),
	}, nil
}

// Capture grabs a fresh frame and returns it JPEG-encoded.
func (d *DeviceCamera) Capture(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i <= d.config.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := d.vc.Read(&d.frame); !ok {
			return nil, fmt.Errorf("read frame from device %d failed", d.config.Device)
		}
	}
	if d.frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.frame, []int{gocv.IMWriteJpegQuality, d.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// Copy out of the native buffer before it is released.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the device.
func (d *DeviceCamera) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame.Close()
	return d.vc.Close()
}

// Ensure DeviceCamera implements Camera
var _ Camera = (*DeviceCamera)(nil)
