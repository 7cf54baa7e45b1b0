package sweep

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-pepper/pkg/protocol"
)

var (
	// ErrHoming means the home posture command failed or was refused.
	ErrHoming = errors.New("home posture failed")

	// ErrLookFailed means a LookAt call returned not-ready or errored.
	ErrLookFailed = errors.New("look failed")

	// ErrCaptureFailed means a TakePicture call returned not-ready or errored.
	ErrCaptureFailed = errors.New("capture failed")

	errNotReady = errors.New("service replied not ready")
)

// Outcome is the result of one direction of the sweep.
type Outcome int

const (
	Success Outcome = iota
	LookFailed
	CaptureFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case LookFailed:
		return "look_failed"
	case CaptureFailed:
		return "capture_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{Success, LookFailed, CaptureFailed} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// NoDirection is reported alongside states not tied to a direction. It is
// never Valid.
const NoDirection protocol.Direction = math.MinInt8

// State is the orchestrator's position in the sweep.
type State int

const (
	Homing State = iota
	Looking
	Capturing
	Waiting
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Homing:
		return "homing"
	case Looking:
		return "looking"
	case Capturing:
		return "capturing"
	case Waiting:
		return "waiting"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Step records what happened at one direction.
type Step struct {
	Direction protocol.Direction `json:"direction"`
	Outcome   Outcome            `json:"outcome"`
	Error     string             `json:"error,omitempty"`
}

// Result is one sweep, in visiting order. Steps stop at the first failure.
type Result struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Steps    []Step    `json:"steps"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
}

// Failed returns the failing step, if any.
func (r Result) Failed() (Step, bool) {
	for _, s := range r.Steps {
		if s.Outcome != Success {
			return s, true
		}
	}
	return Step{}, false
}
