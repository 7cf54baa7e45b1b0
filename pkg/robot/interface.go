// Package robot provides the actuator interfaces, the head angle controller
// and two actuator implementations (HTTP motion bridge and simulation).
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

import "context"

// StiffnessController sets motor stiffness on a joint chain.
// The actuator ignores angle commands for a chain whose stiffness is below 1.
type StiffnessController interface {
	SetStiffness(ctx context.Context, chain string, value float64) error
}

// AngleSetter commands joint angles at a fraction of the maximum speed.
type AngleSetter interface {
	SetAngles(ctx context.Context, target JointTarget, speed float64) error
}

// AngleReader reads the sensed joint angles.
type AngleReader interface {
	GetAngles(ctx context.Context, joints []JointName) (AngleState, error)
}

// PostureController moves the whole body to a named posture.
type PostureController interface {
	GoToPosture(ctx context.Context, name string, speed float64) (bool, error)
}

// StatusReader checks that the actuator is reachable.
type StatusReader interface {
	Ping(ctx context.Context) error
}

// HeadActuator is what the AngleController needs.
type HeadActuator interface {
	StiffnessController
	AngleSetter
	AngleReader
}

// Actuator is the composite interface for full head and posture control.
type Actuator interface {
	HeadActuator
	PostureController
	StatusReader
}

// Ensure both implementations satisfy Actuator
var (
	_ Actuator = (*HTTPActuator)(nil)
	_ Actuator = (*SimActuator)(nil)
)
