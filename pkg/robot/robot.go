package robot

import (
	"errors"
	"math"
	"sort"
)

// JointName identifies a joint of the head chain.
type JointName string

// Head joints, in the order the motion bridge expects them.
const (
	HeadPitch JointName = "HeadPitch"
	HeadYaw   JointName = "HeadYaw"
)

// HeadChain is the stiffness group containing HeadPitch and HeadYaw.
const HeadChain = "Head"

// HomePosture is the posture the sweep starts and ends in.
const HomePosture = "StandInit"

// Physical head limits (radians) of the Pepper head.
const (
	MinHeadPitch = -0.7068
	MaxHeadPitch = 0.6371
	MaxHeadYaw   = 2.0857
)

// ErrActuatorUnavailable is returned when the motion bridge cannot be reached.
// Nodes treat it as fatal at startup.
var ErrActuatorUnavailable = errors.New("actuator unavailable")

// HeadJoints returns the controlled joints in command order.
func HeadJoints() []JointName {
	return []JointName{HeadPitch, HeadYaw}
}

// JointTarget maps each joint to its commanded angle in radians.
type JointTarget map[JointName]float64

// AngleState maps each joint to its measured angle in radians.
type AngleState map[JointName]float64

// Joints returns the joint names of t in a stable order.
func (t JointTarget) Joints() []JointName {
	names := make([]JointName, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Clamp returns a copy of t with head joints limited to the physical range.
func (t JointTarget) Clamp() JointTarget {
	out := make(JointTarget, len(t))
	for name, v := range t {
		switch name {
		case HeadPitch:
			v = clamp(v, MinHeadPitch, MaxHeadPitch)
		case HeadYaw:
			v = clamp(v, -MaxHeadYaw, MaxHeadYaw)
		}
		out[name] = v
	}
	return out
}

// Converged reports whether every joint of target is within tol of the same
// snapshot. Joints missing from state never converge.
func Converged(target JointTarget, state AngleState, tol float64) bool {
	for name, want := range target {
		got, ok := state[name]
		if !ok {
			return false
		}
		if math.Abs(want-got) >= tol {
			return false
		}
	}
	return true
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// deg2rad converts degrees to radians.
func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
