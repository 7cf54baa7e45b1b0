package robot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-pepper/internal/httpc"
)

// DefaultActuatorTimeout bounds every motion bridge request except posture
// changes.
const DefaultActuatorTimeout = 2 * time.Second

// DefaultPostureTimeout bounds a posture change. The bridge replies only once
// the whole-body motion has finished.
const DefaultPostureTimeout = 30 * time.Second

// HTTPActuator implements Actuator using the motion bridge HTTP API
// running next to the robot's motion service.
type HTTPActuator struct {
	BaseURL string
	client  *http.Client
	posture *http.Client
}

type stiffnessRequest struct {
	Names string  `json:"names"`
	Value float64 `json:"value"`
}

type anglesPayload struct {
	Names            []JointName `json:"names"`
	Angles           []float64   `json:"angles"`
	FractionMaxSpeed float64     `json:"fraction_max_speed,omitempty"`
}

type postureRequest struct {
	Name  string  `json:"name"`
	Speed float64 `json:"speed"`
}

type postureResponse struct {
	Success bool `json:"success"`
}

type statusResponse struct {
	State string `json:"state"`
}

// NewHTTPActuator creates an actuator for the bridge at addr (host:port).
func NewHTTPActuator(addr string) *HTTPActuator {
	return &HTTPActuator{
		BaseURL: "http://" + addr,
		client:  httpc.NewClient(DefaultActuatorTimeout),
		posture: httpc.NewClient(DefaultPostureTimeout),
	}
}

// Connect creates an actuator and checks it answers. A failure wraps
// ErrActuatorUnavailable.
func Connect(ctx context.Context, addr string) (*HTTPActuator, error) {
	a := NewHTTPActuator(addr)
	if err := a.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrActuatorUnavailable, addr, err)
	}
	return a, nil
}

// Ping queries the bridge status.
func (a *HTTPActuator) Ping(ctx context.Context) error {
	var status statusResponse
	if err := httpc.GetJSON(ctx, a.client, a.BaseURL+"/api/status", &status); err != nil {
		return fmt.Errorf("status request failed: %w", err)
	}
	if status.State != "" && status.State != "running" {
		return fmt.Errorf("motion service state is %q", status.State)
	}
	return nil
}

// SetStiffness sets the stiffness of a joint chain.
func (a *HTTPActuator) SetStiffness(ctx context.Context, chain string, value float64) error {
	req := stiffnessRequest{Names: chain, Value: value}
	if err := httpc.PostJSON(ctx, a.client, a.BaseURL+"/api/motion/stiffness", req, nil); err != nil {
		return fmt.Errorf("set stiffness failed: %w", err)
	}
	return nil
}

// SetAngles commands the target angles without waiting for the motion.
func (a *HTTPActuator) SetAngles(ctx context.Context, target JointTarget, speed float64) error {
	req := anglesPayload{FractionMaxSpeed: speed}
	for _, name := range target.Joints() {
		req.Names = append(req.Names, name)
		req.Angles = append(req.Angles, target[name])
	}
	if err := httpc.PostJSON(ctx, a.client, a.BaseURL+"/api/motion/angles", req, nil); err != nil {
		return fmt.Errorf("set angles failed: %w", err)
	}
	return nil
}

// GetAngles reads the sensed angles of joints.
func (a *HTTPActuator) GetAngles(ctx context.Context, joints []JointName) (AngleState, error) {
	names := make([]string, len(joints))
	for i, j := range joints {
		names[i] = string(j)
	}
	q := url.Values{}
	q.Set("names", strings.Join(names, ","))
	q.Set("use_sensors", "true")

	var resp anglesPayload
	if err := httpc.GetJSON(ctx, a.client, a.BaseURL+"/api/motion/angles?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("get angles failed: %w", err)
	}
	if len(resp.Names) != len(resp.Angles) {
		return nil, fmt.Errorf("get angles: %d names but %d angles", len(resp.Names), len(resp.Angles))
	}

	state := make(AngleState, len(resp.Names))
	for i, name := range resp.Names {
		state[name] = resp.Angles[i]
	}
	return state, nil
}

// GoToPosture moves the robot to a named posture and blocks until done.
func (a *HTTPActuator) GoToPosture(ctx context.Context, name string, speed float64) (bool, error) {
	var resp postureResponse
	req := postureRequest{Name: name, Speed: speed}
	if err := httpc.PostJSON(ctx, a.posture, a.BaseURL+"/api/posture/goto", req, &resp); err != nil {
		return false, fmt.Errorf("go to posture %q failed: %w", name, err)
	}
	return resp.Success, nil
}
