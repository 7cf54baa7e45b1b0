// Command master runs one perception sweep: it homes the robot, looks and
// captures at each direction through the head and camera nodes, records the
// result and exits non-zero if any step failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-pepper/internal/config"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/robot"
	"github.com/teslashibe/go-pepper/pkg/service"
	"github.com/teslashibe/go-pepper/pkg/store"
	"github.com/teslashibe/go-pepper/pkg/sweep"
)

func main() {
	cfg := config.Load()
	sweepCfg := sweep.DefaultConfig()

	robotIP := flag.String("robot", cfg.RobotIP, "Robot IP address")
	robotPort := flag.Int("port", cfg.RobotPort, "Robot motion bridge port")
	sim := flag.Bool("sim", false, "Use a simulated posture controller")
	dbPath := flag.String("db", cfg.SweepDB, "Sweep log database (empty disables)")
	watch := flag.Bool("watch", false, "Log live detections from the camera node")
	directions := flag.String("directions", "right,front,left", "Comma separated sweep directions")
	settle := flag.Duration("settle", sweepCfg.SettleDelay, "Wait after each capture")
	homeOnAbort := flag.Bool("home-on-abort", false, "Return home after a failed step")
	wait := flag.Duration("wait", 30*time.Second, "How long to wait for the head and camera nodes")
	logLevel := flag.String("log", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.RobotIP = *robotIP
	cfg.RobotPort = *robotPort

	log.Init(*logLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	dirs, err := parseDirections(*directions)
	if err != nil {
		log.Fatal("invalid directions", "err", err)
	}
	sweepCfg.Directions = dirs
	sweepCfg.SettleDelay = *settle
	sweepCfg.HomeOnAbort = *homeOnAbort
	if err := sweepCfg.Validate(); err != nil {
		log.Fatal("invalid sweep configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("interrupted, aborting sweep")
		cancel()
	}()

	var poser sweep.Poser
	if *sim {
		poser = robot.NewSimActuator()
		log.Info("using simulated posture controller")
	} else {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		bridge, err := robot.Connect(connectCtx, cfg.RobotAddr())
		connectCancel()
		if err != nil {
			log.Fatal("failed to connect to robot", "addr", cfg.RobotAddr(), "err", err)
		}
		poser = bridge
	}

	names := service.NamesFrom(cfg)
	look := service.NewLookAtClient(cfg.HeadURL(), names.LookAt)
	capture := service.NewTakePictureClient(cfg.CameraURL(), names.TakePicture)

	waitCtx, waitCancel := context.WithTimeout(ctx, *wait)
	for _, svc := range []interface{ WaitForService(context.Context) error }{look, capture} {
		if err := svc.WaitForService(waitCtx); err != nil {
			waitCancel()
			log.Fatal("service unavailable", "err", err)
		}
	}
	waitCancel()
	log.Info("services available", "head", cfg.HeadURL(), "camera", cfg.CameraURL())

	if *watch {
		go func() {
			err := service.WatchDetections(ctx, cfg.CameraURL(), func(r perception.Report) {
				log.Info("detections",
					"direction", r.Direction,
					"count", r.Detections.Count,
					"labels", r.Labels)
			})
			if err != nil {
				log.Warn("detections stream ended", "err", err)
			}
		}()
	}

	var db *store.DB
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Fatal("failed to open sweep log", "path", *dbPath, "err", err)
		}
		defer db.Close()
	}

	orch := sweep.New(look, capture, poser, sweepCfg, sweep.WithLogger(log.Component("sweep")))
	result, runErr := orch.Run(ctx)

	if db != nil {
		// The run context may be cancelled; still record what happened.
		recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.RecordSweep(recordCtx, result); err != nil {
			log.Error("failed to record sweep", "err", err)
		}
		recordCancel()
	}

	printResult(result)
	if runErr != nil {
		if db != nil {
			db.Close()
		}
		os.Exit(1)
	}
}

func parseDirections(s string) ([]protocol.Direction, error) {
	var dirs []protocol.Direction
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := protocol.ParseDirection(part)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no directions in %q", s)
	}
	return dirs, nil
}

func printResult(r sweep.Result) {
	fmt.Printf("Sweep %s\n", r.ID)
	for _, s := range r.Steps {
		line := fmt.Sprintf("  %-6s %s", s.Direction, s.Outcome)
		if s.Error != "" {
			line += " (" + s.Error + ")"
		}
		fmt.Println(line)
	}
	if r.Success {
		fmt.Printf("Success in %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	} else {
		fmt.Printf("Failed: %s\n", r.Error)
	}
}
