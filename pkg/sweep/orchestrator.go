// Package sweep sequences the perception sweep: home, then look and capture
// at each direction in order, then home again. The first failure aborts.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pepper/internal/clock"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/robot"
)

// Looker points the head at a direction and reports readiness.
type Looker interface {
	LookAt(ctx context.Context, dir protocol.Direction) (bool, error)
}

// Capturer takes and processes a picture at a direction.
type Capturer interface {
	TakePicture(ctx context.Context, dir protocol.Direction) (bool, error)
}

// Poser moves the robot to a named posture. robot.PostureController
// satisfies it.
type Poser interface {
	GoToPosture(ctx context.Context, name string, speed float64) (bool, error)
}

// Config describes the sweep geometry and timing.
type Config struct {
	Directions  []protocol.Direction
	SettleDelay time.Duration
	HomePosture string
	HomeSpeed   float64

	// SettleAfterLast also waits after the final capture.
	SettleAfterLast bool

	// HomeOnAbort returns to the home posture after a failed step.
	HomeOnAbort bool
}

// DefaultConfig returns the right, front, left sweep with a 2s settle.
func DefaultConfig() Config {
	return Config{
		Directions:  protocol.DefaultDirections(),
		SettleDelay: 2 * time.Second,
		HomePosture: robot.HomePosture,
		HomeSpeed:   1.0,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if len(c.Directions) == 0 {
		return fmt.Errorf("at least one direction is required")
	}
	for _, d := range c.Directions {
		if !d.Valid() {
			return fmt.Errorf("invalid direction %d", d)
		}
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}
	if c.HomePosture == "" {
		return fmt.Errorf("home posture is required")
	}
	if c.HomeSpeed <= 0 || c.HomeSpeed > 1 {
		return fmt.Errorf("home speed must be greater than 0 and less than or equal to 1")
	}
	return nil
}

// Orchestrator runs sweeps. Calls are strictly sequential: look must return
// before capture is issued, and nothing is retried.
type Orchestrator struct {
	look    Looker
	capture Capturer
	poser   Poser
	cfg     Config
	clock   clock.Clock
	log     *slog.Logger

	onState func(State, protocol.Direction)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock used for the settle wait.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithStateHook registers fn to observe every state transition. Homing, Done
// and Aborted are reported with NoDirection.
func WithStateHook(fn func(State, protocol.Direction)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// New creates an Orchestrator. The poser is the single owner of the
// posture path for the orchestrator's lifetime.
func New(look Looker, capture Capturer, poser Poser, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		look:    look,
		capture: capture,
		poser:   poser,
		cfg:     cfg,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = log.Component("sweep")
	}
	return o
}

// Home sends the robot to the home posture at the configured speed.
func (o *Orchestrator) Home(ctx context.Context) error {
	o.transition(Homing, NoDirection)

	ok, err := o.poser.GoToPosture(ctx, o.cfg.HomePosture, o.cfg.HomeSpeed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHoming, err)
	}
	if !ok {
		return fmt.Errorf("%w: posture %q refused", ErrHoming, o.cfg.HomePosture)
	}
	return nil
}

// Run performs one sweep. The returned error is nil only when every
// direction succeeded and the robot returned home; Result is always filled.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	result := Result{
		ID:      uuid.New().String(),
		Started: o.clock.Now(),
	}
	logger := o.log.With("sweep", result.ID)

	finish := func(err error) (Result, error) {
		result.Finished = o.clock.Now()
		result.Success = err == nil
		if err != nil {
			result.Error = err.Error()
			o.transition(Aborted, NoDirection)
			logger.Error("sweep aborted", "err", err, "steps", len(result.Steps))
		} else {
			o.transition(Done, NoDirection)
			logger.Info("sweep done", "steps", len(result.Steps),
				"elapsed", result.Finished.Sub(result.Started))
		}
		return result, err
	}

	if err := o.Home(ctx); err != nil {
		return finish(err)
	}

	for i, dir := range o.cfg.Directions {
		if err := o.step(ctx, logger, &result, dir); err != nil {
			if o.cfg.HomeOnAbort {
				if homeErr := o.Home(ctx); homeErr != nil {
					logger.Warn("return home after abort failed", "err", homeErr)
				}
			}
			return finish(err)
		}

		last := i == len(o.cfg.Directions)-1
		if !last || o.cfg.SettleAfterLast {
			o.transition(Waiting, dir)
			if err := clock.Sleep(ctx, o.clock, o.cfg.SettleDelay); err != nil {
				return finish(err)
			}
		}
	}

	if err := o.Home(ctx); err != nil {
		return finish(err)
	}
	return finish(nil)
}

// step runs look then capture at dir and appends the outcome.
func (o *Orchestrator) step(ctx context.Context, logger *slog.Logger, result *Result, dir protocol.Direction) error {
	o.transition(Looking, dir)
	ok, err := o.look.LookAt(ctx, dir)
	if fail := failure(ok, err); fail != nil {
		result.Steps = append(result.Steps, Step{Direction: dir, Outcome: LookFailed, Error: fail.Error()})
		logger.Warn("look failed", "direction", dir, "err", fail)
		return fmt.Errorf("%w at %s: %v", ErrLookFailed, dir, fail)
	}

	o.transition(Capturing, dir)
	ok, err = o.capture.TakePicture(ctx, dir)
	if fail := failure(ok, err); fail != nil {
		result.Steps = append(result.Steps, Step{Direction: dir, Outcome: CaptureFailed, Error: fail.Error()})
		logger.Warn("capture failed", "direction", dir, "err", fail)
		return fmt.Errorf("%w at %s: %v", ErrCaptureFailed, dir, fail)
	}

	result.Steps = append(result.Steps, Step{Direction: dir, Outcome: Success})
	logger.Info("direction done", "direction", dir)
	return nil
}

// failure folds a transport error and a not-ready reply into one error.
func failure(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errNotReady
	}
	return nil
}

func (o *Orchestrator) transition(s State, dir protocol.Direction) {
	if dir == NoDirection {
		o.log.Debug("sweep state", "state", s)
	} else {
		o.log.Debug("sweep state", "state", s, "direction", dir)
	}
	if o.onState != nil {
		o.onState(s, dir)
	}
}
