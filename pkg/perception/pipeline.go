// Package perception implements the capture+detect step of the sweep:
// grab a frame, run the detector and keep the thresholded result.
package perception

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/camera"
	"github.com/teslashibe/go-pepper/pkg/detection"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// Config holds pipeline tuning.
type Config struct {
	Threshold float32 // Minimum score kept (exclusive)

	// StrictTopK sorts candidates by score before truncating, for models
	// that do not emit score-descending output.
	StrictTopK bool
}

// DefaultConfig returns the default 0.5 threshold with plain truncation.
func DefaultConfig() Config {
	return Config{
		Threshold:  detection.DefaultThreshold,
		StrictTopK: false,
	}
}

// Validate checks the threshold range.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", c.Threshold)
	}
	return nil
}

// Report is the outcome of one capture.
type Report struct {
	ID         string                `json:"id"`
	Direction  protocol.Direction    `json:"direction"`
	Taken      time.Time             `json:"taken"`
	Candidates int                   `json:"candidates"`
	Detections detection.FilteredSet `json:"detections"`
	Labels     []string              `json:"labels"`
}

// Summary converts r into the wire summary returned by TakePicture.
func (r Report) Summary() *protocol.CaptureSummary {
	return &protocol.CaptureSummary{
		ID:        r.ID,
		Direction: r.Direction,
		Count:     r.Detections.Count,
		Scores:    r.Detections.Scores,
		Classes:   r.Detections.Classes,
		Labels:    r.Labels,
	}
}

// Pipeline owns the camera and the model.
type Pipeline struct {
	cam     camera.Camera
	model   detection.Model
	labels  detection.Labels
	archive *Archive
	cfg     Config
	log     *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest map[protocol.Direction]Report

	// OnReport is called after every successful capture.
	OnReport func(Report)
}

// NewPipeline creates a pipeline. archive may be nil.
func NewPipeline(cam camera.Camera, model detection.Model, cfg Config, archive *Archive) *Pipeline {
	return &Pipeline{
		cam:     cam,
		model:   model,
		labels:  detection.COCOLabels(),
		archive: archive,
		cfg:     cfg,
		log:     log.Component("perception"),
		now:     time.Now,
		latest:  make(map[protocol.Direction]Report),
	}
}

// SetLogger replaces the logger.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	p.log = l
}

// TakePicture captures a frame at dir, runs the detector and filters the
// result. Any capture or inference error fails the step.
func (p *Pipeline) TakePicture(ctx context.Context, dir protocol.Direction) (Report, error) {
	frame, err := p.cam.Capture(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("capture at %s: %w", dir, err)
	}

	raw, err := p.model.Infer(frame)
	if err != nil {
		return Report{}, fmt.Errorf("inference at %s: %w", dir, err)
	}
	if err := raw.Validate(); err != nil {
		p.log.Warn("ragged detector output", "direction", dir, "err", err)
	}

	var set detection.FilteredSet
	if p.cfg.StrictTopK {
		set = detection.FilterTopK(raw, p.cfg.Threshold)
	} else {
		if !detection.IsSortedDescending(raw.Scores) {
			p.log.Warn("detector scores not sorted, kept set may miss candidates",
				"direction", dir, "candidates", raw.Len())
		}
		set = detection.Filter(raw, p.cfg.Threshold)
	}

	report := Report{
		ID:         uuid.New().String(),
		Direction:  dir,
		Taken:      p.now(),
		Candidates: raw.Len(),
		Detections: set,
		Labels:     p.labels.Names(set.Classes),
	}

	if p.archive != nil {
		if path, err := p.archive.Save(report, frame); err != nil {
			p.log.Warn("archive frame failed", "direction", dir, "err", err)
		} else {
			p.log.Debug("frame archived", "path", path)
		}
	}

	p.mu.Lock()
	p.latest[dir] = report
	p.mu.Unlock()

	p.log.Info("picture taken",
		"direction", dir,
		"id", report.ID,
		"candidates", report.Candidates,
		"kept", set.Count,
		"labels", report.Labels)

	if p.OnReport != nil {
		p.OnReport(report)
	}
	return report, nil
}

// Latest returns the most recent report for dir.
func (p *Pipeline) Latest(dir protocol.Direction) (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.latest[dir]
	return r, ok
}

// All returns the latest report of every direction, in sweep order.
func (p *Pipeline) All() []Report {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Report, 0, len(p.latest))
	for _, r := range p.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Direction < out[j].Direction })
	return out
}

// Close releases the camera and the model.
func (p *Pipeline) Close() error {
	camErr := p.cam.Close()
	modelErr := p.model.Close()
	if camErr != nil {
		return camErr
	}
	return modelErr
}
