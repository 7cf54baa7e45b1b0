// Command head runs the head node: it owns the head actuator and serves
// the LookAt service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-pepper/internal/config"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/robot"
	"github.com/teslashibe/go-pepper/pkg/service"
)

func main() {
	cfg := config.Load()

	robotIP := flag.String("robot", cfg.RobotIP, "Robot IP address")
	robotPort := flag.Int("port", cfg.RobotPort, "Robot motion bridge port")
	addr := flag.String("addr", cfg.HeadAddr, "Listen address")
	sim := flag.Bool("sim", false, "Use a simulated head instead of the robot")
	timeout := flag.Duration("timeout", robot.DefaultHeadConfig().Timeout, "Convergence timeout per look")
	logLevel := flag.String("log", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.RobotIP = *robotIP
	cfg.RobotPort = *robotPort
	cfg.HeadAddr = *addr

	log.Init(*logLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
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

	var act robot.HeadActuator
	if *sim {
		act = robot.NewSimActuator()
		log.Info("using simulated head")
	} else {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		bridge, err := robot.Connect(connectCtx, cfg.RobotAddr())
		connectCancel()
		if err != nil {
			log.Fatal("failed to connect to robot", "addr", cfg.RobotAddr(), "err", err)
		}
		act = bridge
		log.Info("connected to robot", "addr", cfg.RobotAddr())
	}

	headCfg := robot.DefaultHeadConfig()
	headCfg.Timeout = *timeout
	if err := headCfg.Validate(); err != nil {
		log.Fatal("invalid head configuration", "err", err)
	}
	ctrl := robot.NewAngleController(act, headCfg, robot.WithLogger(log.Component("head")))

	srv := service.NewHeadServer(ctrl, service.NamesFrom(cfg))
	log.Info("head node ready",
		"addr", cfg.HeadAddr,
		"service", protocol.ServicePath(cfg.LookAtService),
		"timeout", headCfg.Timeout)
	if err := srv.ListenAndServe(ctx, cfg.HeadAddr); err != nil {
		log.Fatal("head server failed", "err", err)
	}
}
