package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-pepper/internal/clock"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// ErrConvergenceTimeout is returned by PointHead when the head never settles
// within HeadConfig.Timeout. It is distinct from actuator transport errors.
var ErrConvergenceTimeout = errors.New("head convergence timeout")

// HeadConfig holds the tunables of the angle controller.
type HeadConfig struct {
	Pitch        float64       // Constant down-tilt (radians)
	CameraFOV    float64       // Horizontal camera field of view (radians)
	Tolerance    float64       // Per-joint convergence bound (radians)
	Speed        float64       // Fraction of max joint speed
	Stiffness    float64       // Stiffness applied before commanding
	PollInterval time.Duration // Delay between angle reads
	Timeout      time.Duration // Give up after this long
}

// DefaultHeadConfig returns the values the sweep was tuned with.
func DefaultHeadConfig() HeadConfig {
	return HeadConfig{
		Pitch:        deg2rad(15),
		CameraFOV:    deg2rad(55.2),
		Tolerance:    0.1,
		Speed:        0.25,
		Stiffness:    1.0,
		PollInterval: 20 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Validate checks the config ranges.
func (c HeadConfig) Validate() error {
	if c.CameraFOV <= 0 {
		return fmt.Errorf("camera fov must be positive")
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	if c.Speed <= 0 || c.Speed > 1 {
		return fmt.Errorf("speed must be greater than 0 and less than or equal to 1")
	}
	if c.Stiffness <= 0 || c.Stiffness > 1 {
		return fmt.Errorf("stiffness must be greater than 0 and less than or equal to 1")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// AngleController points the head at a sweep direction and blocks until
// the sensed angles converge on the target.
type AngleController struct {
	act   HeadActuator
	cfg   HeadConfig
	clock clock.Clock
	log   *slog.Logger
}

// Option configures an AngleController.
type Option func(*AngleController)

// WithClock replaces the wall clock (tests use clock.Mock).
func WithClock(c clock.Clock) Option {
	return func(a *AngleController) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *AngleController) { a.log = l }
}

// NewAngleController creates a controller driving act.
func NewAngleController(act HeadActuator, cfg HeadConfig, opts ...Option) *AngleController {
	c := &AngleController{
		act:   act,
		cfg:   cfg,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.Component("head")
	}
	return c
}

// Config returns the controller configuration.
func (c *AngleController) Config() HeadConfig {
	return c.cfg
}

// Target returns the joint target for dir: constant pitch, yaw = dir * FOV/2.
// The three default directions tile the space in front of the robot.
func (c *AngleController) Target(dir protocol.Direction) JointTarget {
	return JointTarget{
		HeadPitch: c.cfg.Pitch,
		HeadYaw:   float64(dir) * c.cfg.CameraFOV / 2,
	}.Clamp()
}

// PointHead stiffens the head, commands the target for dir and polls
// until every joint is within tolerance on the same read.
//
// Returns nil on convergence, an error wrapping ErrConvergenceTimeout when
// the head does not settle in time, ctx.Err() on cancellation, or the
// actuator error. Nothing is retried.
func (c *AngleController) PointHead(ctx context.Context, dir protocol.Direction) error {
	if !dir.Valid() {
		return fmt.Errorf("invalid direction %d", dir)
	}

	target := c.Target(dir)
	joints := HeadJoints()

	if err := c.act.SetStiffness(ctx, HeadChain, c.cfg.Stiffness); err != nil {
		return fmt.Errorf("stiffen head: %w", err)
	}
	if err := c.act.SetAngles(ctx, target, c.cfg.Speed); err != nil {
		return fmt.Errorf("command head: %w", err)
	}

	start := c.clock.Now()
	polls := 0
	for {
		state, err := c.act.GetAngles(ctx, joints)
		if err != nil {
			return fmt.Errorf("read head angles: %w", err)
		}
		polls++

		if Converged(target, state, c.cfg.Tolerance) {
			c.log.Debug("head converged",
				"direction", dir,
				"polls", polls,
				"elapsed", c.clock.Since(start))
			return nil
		}

		if elapsed := c.clock.Since(start); elapsed >= c.cfg.Timeout {
			c.log.Warn("head did not converge",
				"direction", dir,
				"polls", polls,
				"target", target,
				"last", state)
			return fmt.Errorf("%w after %s: target %v, last %v", ErrConvergenceTimeout, elapsed, target, state)
		}

		if err := clock.Sleep(ctx, c.clock, c.cfg.PollInterval); err != nil {
			return err
		}
	}
}
