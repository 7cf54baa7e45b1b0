// Package protocol defines the messages exchanged between the master, head
// and camera nodes, and the sweep Direction type they all share.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is one of the fixed yaw positions swept during perception.
// The integer value is the yaw multiplier applied to half the camera FOV.
type Direction int8

const (
	Right Direction = -1
	Front Direction = 0
	Left  Direction = 1
)

// DefaultDirections returns the sweep order: right, front, left.
func DefaultDirections() []Direction {
	return []Direction{Right, Front, Left}
}

// Valid reports whether d is one of Right, Front, Left.
func (d Direction) Valid() bool {
	return d >= Right && d <= Left
}

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Front:
		return "front"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int8(d))
	}
}

// ParseDirection accepts a name ("right", "front", "left") or the integer form.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "right", "-1":
		return Right, nil
	case "front", "0":
		return Front, nil
	case "left", "1":
		return Left, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}

// LookAtRequest asks the head node to point the head at Direction.
type LookAtRequest struct {
	Direction Direction `json:"direction"`
}

// TakePictureRequest asks the camera node to capture and detect at Direction.
type TakePictureRequest struct {
	Direction Direction `json:"direction"`
}

// Response is the reply of both services. Ready is the only field
// the sweep acts on; Error and Capture are informational.
type Response struct {
	Ready   bool            `json:"ready"`
	Error   string          `json:"error,omitempty"`
	Capture *CaptureSummary `json:"capture,omitempty"`
}

// CaptureSummary describes the filtered detections of one capture.
type CaptureSummary struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Count     int       `json:"count"`
	Scores    []float32 `json:"scores"`
	Classes   []int64   `json:"classes"`
	Labels    []string  `json:"labels,omitempty"`
}

// DecodeLookAt parses and validates a LookAt request body.
func DecodeLookAt(data []byte) (LookAtRequest, error) {
	var req LookAtRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse look_at request: %w", err)
	}
	if !req.Direction.Valid() {
		return req, fmt.Errorf("invalid direction %d", req.Direction)
	}
	return req, nil
}

// DecodeTakePicture parses and validates a TakePicture request body.
func DecodeTakePicture(data []byte) (TakePictureRequest, error) {
	var req TakePictureRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse take_picture request: %w", err)
	}
	if !req.Direction.Valid() {
		return req, fmt.Errorf("invalid direction %d", req.Direction)
	}
	return req, nil
}
