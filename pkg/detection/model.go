package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// detectionOutputCols is the row width of an SSD DetectionOutput layer:
// image id, class id, score, left, top, right, bottom.
const detectionOutputCols = 7

// Model runs the detection network on one encoded image.
type Model interface {
	// Infer returns every candidate the network produced, unfiltered.
	Infer(jpeg []byte) (RawBatch, error)

	// Close releases resources
	Close() error
}

// ModelConfig holds detection network configuration.
type ModelConfig struct {
	ModelPath   string // Frozen graph / ONNX / caffemodel
	ConfigPath  string // Optional text graph (pbtxt, prototxt)
	InputWidth  int    // Network input width
	InputHeight int    // Network input height
	SwapRB      bool   // Feed RGB instead of OpenCV's BGR
}

// DefaultModelConfig returns defaults for an SSD MobileNet v2 COCO graph.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelPath:   "models/ssd_mobilenet_v2_coco.pb",
		ConfigPath:  "models/ssd_mobilenet_v2_coco.pbtxt",
		InputWidth:  300,
		InputHeight: 300,
		SwapRB:      true,
	}
}

// NetModel runs an SSD-style network through OpenCV's DNN module.
type NetModel struct {
	net       gocv.Net
	config    ModelConfig
	mu        sync.Mutex
	inputSize image.Point
}

// NewNetModel loads the network described by cfg.
func NewNetModel(cfg ModelConfig) (*NetModel, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &NetModel{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Infer decodes the JPEG, runs a forward pass and returns the raw candidates.
func (m *NetModel) Infer(jpeg []byte) (RawBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return RawBatch{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return RawBatch{}, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0, m.inputSize, gocv.NewScalar(0, 0, 0, 0), m.config.SwapRB, false)
	defer blob.Close()

	m.net.SetInput(blob, "")

	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return RawBatch{}, fmt.Errorf("read network output: %w", err)
	}

	return parseDetectionOutput(data), nil
}

// Close releases the network.
func (m *NetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

// parseDetectionOutput converts the flat [1, 1, N, 7] output into a RawBatch
// sorted by score descending. DetectionOutput groups rows by class and only
// sorts within each class, so Filter would otherwise truncate the wrong rows.
func parseDetectionOutput(data []float32) RawBatch {
	n := len(data) / detectionOutputCols
	batch := RawBatch{
		Scores:  make([]float32, 0, n),
		Boxes:   make([]Box, 0, n),
		Classes: make([]float32, 0, n),
	}

	for i := 0; i < n; i++ {
		row := data[i*detectionOutputCols : (i+1)*detectionOutputCols]
		// A negative image id marks the padding after the last detection.
		if row[0] < 0 {
			break
		}
		left, top, right, bottom := row[3], row[4], row[5], row[6]

		batch.Classes = append(batch.Classes, row[1])
		batch.Scores = append(batch.Scores, row[2])
		batch.Boxes = append(batch.Boxes, Box{top, left, bottom, right})
	}
	return SortByScore(batch)
}
