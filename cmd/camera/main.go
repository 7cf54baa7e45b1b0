// Command camera runs the camera node: it owns the camera and the detection
// model and serves the TakePicture service plus a live detections stream.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-pepper/internal/config"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/camera"
	"github.com/teslashibe/go-pepper/pkg/detection"
	"github.com/teslashibe/go-pepper/pkg/hub"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/service"
)

func main() {
	cfg := config.Load()
	camCfg := camera.DefaultConfig()
	percCfg := perception.DefaultConfig()

	addr := flag.String("addr", cfg.CameraAddr, "Listen address")
	device := flag.Int("device", cfg.CameraDevice, "Video device index")
	modelPath := flag.String("model", cfg.ModelPath, "Frozen detection graph")
	modelConfig := flag.String("config", cfg.ModelConfig, "Detection graph config")
	threshold := flag.Float64("threshold", float64(percCfg.Threshold), "Minimum detection score (exclusive)")
	strict := flag.Bool("strict", false, "Sort candidates by score before keeping the top ones")
	archiveDir := flag.String("archive", cfg.ArchiveDir, "Directory to archive frames in (empty disables)")
	width := flag.Int("width", camCfg.Width, "Frame width")
	height := flag.Int("height", camCfg.Height, "Frame height")
	logLevel := flag.String("log", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel)

	cfg.CameraAddr = *addr
	camCfg.Device = *device
	camCfg.Width = *width
	camCfg.Height = *height
	percCfg.Threshold = float32(*threshold)
	percCfg.StrictTopK = *strict

	if errs := camCfg.Validate(); len(errs) > 0 {
		log.Fatal("invalid camera configuration", "errors", strings.Join(errs, "; "))
	}
	if err := percCfg.Validate(); err != nil {
		log.Fatal("invalid perception configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	cam, err := camera.OpenDevice(camCfg)
	if err != nil {
		log.Fatal("failed to open camera", "device", camCfg.Device, "err", err)
	}

	modelCfg := detection.DefaultModelConfig()
	modelCfg.ModelPath = *modelPath
	modelCfg.ConfigPath = *modelConfig
	model, err := detection.NewNetModel(modelCfg)
	if err != nil {
		cam.Close()
		log.Fatal("failed to load model", "model", modelCfg.ModelPath, "err", err)
	}

	var archive *perception.Archive
	if *archiveDir != "" {
		archive, err = perception.NewArchive(*archiveDir, camCfg.Quality, 0)
		if err != nil {
			log.Fatal("failed to create archive", "dir", *archiveDir, "err", err)
		}
	}

	pipeline := perception.NewPipeline(cam, model, percCfg, archive)
	defer pipeline.Close()

	detections := hub.New("detections", hub.WithReplay(len(protocol.DefaultDirections())))
	go detections.Run(ctx)
	pipeline.OnReport = func(r perception.Report) {
		if err := detections.PublishJSON(r); err != nil {
			log.Warn("publish report failed", "err", err)
		}
	}

	log.Info("camera node ready",
		"addr", cfg.CameraAddr,
		"threshold", percCfg.Threshold,
		"strict", percCfg.StrictTopK,
		"archive", *archiveDir)

	srv := service.NewCameraServer(pipeline, detections, service.NamesFrom(cfg))
	if err := srv.ListenAndServe(ctx, cfg.CameraAddr); err != nil {
		log.Error("camera server failed", "err", err)
		pipeline.Close()
		os.Exit(1)
	}
}
