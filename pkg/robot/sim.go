package robot

import (
	"context"
	"fmt"
	"sync"
)

// DefaultSimMaxStep is how far a simulated joint moves per read at full speed.
const DefaultSimMaxStep = 0.2

// SimActuator is an in-memory head used for dry runs and tests.
// Each GetAngles call advances every joint toward its target by
// speed*MaxStep, so convergence takes several polls like the real head.
type SimActuator struct {
	mu        sync.Mutex
	stiffness map[string]float64
	angles    AngleState
	targets   AngleState
	speed     float64

	// MaxStep is the per-read motion at speed 1.0 (radians).
	MaxStep float64

	// Postures maps posture names to the head pose they imply.
	Postures map[string]JointTarget

	// Calls counts method invocations by name.
	Calls map[string]int
}

// NewSimActuator creates a simulated head at rest in the home posture.
func NewSimActuator() *SimActuator {
	return &SimActuator{
		stiffness: make(map[string]float64),
		angles:    AngleState{HeadPitch: 0, HeadYaw: 0},
		targets:   AngleState{HeadPitch: 0, HeadYaw: 0},
		MaxStep:   DefaultSimMaxStep,
		Postures: map[string]JointTarget{
			HomePosture: {HeadPitch: 0, HeadYaw: 0},
			"Stand":     {HeadPitch: 0, HeadYaw: 0},
		},
		Calls: make(map[string]int),
	}
}

// Ping always succeeds.
func (s *SimActuator) Ping(_ context.Context) error {
	s.mu.Lock()
	s.Calls["Ping"]++
	s.mu.Unlock()
	return nil
}

// SetStiffness records the chain stiffness.
func (s *SimActuator) SetStiffness(_ context.Context, chain string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["SetStiffness"]++
	s.stiffness[chain] = value
	return nil
}

// Stiffness returns the stiffness last set on chain.
func (s *SimActuator) Stiffness(chain string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stiffness[chain]
}

// SetAngles stores new targets. Like the hardware, the command is silently
// dropped while the head chain is not fully stiff.
func (s *SimActuator) SetAngles(_ context.Context, target JointTarget, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["SetAngles"]++

	if s.stiffness[HeadChain] < 1.0 {
		return nil
	}
	for name, v := range target {
		s.targets[name] = v
	}
	s.speed = speed
	return nil
}

// GetAngles advances the simulation one step and returns the new angles.
func (s *SimActuator) GetAngles(_ context.Context, joints []JointName) (AngleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["GetAngles"]++

	step := s.speed * s.MaxStep
	for name, want := range s.targets {
		cur := s.angles[name]
		switch {
		case want > cur:
			s.angles[name] = min(cur+step, want)
		case want < cur:
			s.angles[name] = max(cur-step, want)
		}
	}

	state := make(AngleState, len(joints))
	for _, j := range joints {
		v, ok := s.angles[j]
		if !ok {
			return nil, fmt.Errorf("unknown joint %q", j)
		}
		state[j] = v
	}
	return state, nil
}

// GoToPosture snaps the head to the posture's pose. Unknown postures
// report false without error, as the posture service does.
func (s *SimActuator) GoToPosture(_ context.Context, name string, _ float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["GoToPosture"]++

	pose, ok := s.Postures[name]
	if !ok {
		return false, nil
	}
	for j, v := range pose {
		s.angles[j] = v
		s.targets[j] = v
	}
	return true, nil
}

// CallCount returns how many times method was called.
func (s *SimActuator) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}
