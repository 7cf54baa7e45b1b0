// Package config provides environment configuration for go-pepper nodes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for the robot and the node services.
const (
	DefaultRobotIP            = "127.0.0.1"
	DefaultRobotPort          = 9559
	DefaultHeadAddr           = "127.0.0.1:8081"
	DefaultCameraAddr         = "127.0.0.1:8082"
	DefaultLookAtService      = "look_at"
	DefaultTakePictureService = "take_picture"
	DefaultLogLevel           = "info"
	DefaultSweepDB            = "sweeps.db"
	DefaultModelPath          = "models/ssd_mobilenet_v2_coco.pb"
	DefaultModelConfig        = "models/ssd_mobilenet_v2_coco.pbtxt"
)

// Config is the shared configuration surface of the three nodes.
type Config struct {
	RobotIP   string // motion bridge host
	RobotPort int    // motion bridge port

	HeadAddr   string // listen/dial address of the head node
	CameraAddr string // listen/dial address of the camera node

	LookAtService      string
	TakePictureService string

	LogLevel   string
	SweepDB    string
	ArchiveDir string // empty disables frame archiving

	ModelPath    string
	ModelConfig  string
	CameraDevice int
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() Config {
	return Config{
		RobotIP:            getString("ROBOT_IP", DefaultRobotIP),
		RobotPort:          getInt("ROBOT_PORT", DefaultRobotPort),
		HeadAddr:           getString("HEAD_ADDR", DefaultHeadAddr),
		CameraAddr:         getString("CAMERA_ADDR", DefaultCameraAddr),
		LookAtService:      getString("LOOK_AT_SERVICE", DefaultLookAtService),
		TakePictureService: getString("TAKE_PICTURE_SERVICE", DefaultTakePictureService),
		LogLevel:           getString("LOG_LEVEL", DefaultLogLevel),
		SweepDB:            getString("SWEEP_DB", DefaultSweepDB),
		ArchiveDir:         os.Getenv("ARCHIVE_DIR"),
		ModelPath:          getString("MODEL_PATH", DefaultModelPath),
		ModelConfig:        getString("MODEL_CONFIG", DefaultModelConfig),
		CameraDevice:       getInt("CAMERA_DEVICE", 0),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.RobotIP == "" {
		return fmt.Errorf("robot ip is required")
	}
	if c.RobotPort <= 0 || c.RobotPort > 65535 {
		return fmt.Errorf("robot port %d out of range", c.RobotPort)
	}
	if c.HeadAddr == "" || c.CameraAddr == "" {
		return fmt.Errorf("head and camera addresses are required")
	}
	if c.LookAtService == "" || c.TakePictureService == "" {
		return fmt.Errorf("service names are required")
	}
	if strings.ContainsAny(c.LookAtService+c.TakePictureService, "/ ") {
		return fmt.Errorf("service names must not contain '/' or spaces")
	}
	return nil
}

// RobotAddr returns host:port of the motion bridge.
func (c Config) RobotAddr() string {
	return fmt.Sprintf("%s:%d", c.RobotIP, c.RobotPort)
}

// HeadURL returns the base URL of the head node.
func (c Config) HeadURL() string {
	return "http://" + c.HeadAddr
}

// CameraURL returns the base URL of the camera node.
func (c Config) CameraURL() string {
	return "http://" + c.CameraAddr
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid %s=%q\n", key, v)
		return def
	}
	return n
}
