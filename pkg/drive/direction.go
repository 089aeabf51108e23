package drive

import (
	"fmt"
	"strings"
)

// Direction is an operator command from the control page.
type Direction string

// Operator directions.
const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
	Stop     Direction = "stop"
)

// aliases used by the touch control page buttons
var directionAliases = map[string]Direction{
	"forward":  Forward,
	"up":       Forward,
	"backward": Backward,
	"back":     Backward,
	"down":     Backward,
	"left":     Left,
	"right":    Right,
	"stop":     Stop,
}

// ParseDirection maps a command name to a Direction.
func ParseDirection(s string) (Direction, error) {
	if d, ok := directionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// ManualSpeeds holds the throttle used for operator commands.
type ManualSpeeds struct {
	Forward float64 `json:"forward"` // straight-line throttle
	Turn    float64 `json:"turn"`    // spin-in-place throttle
}

// DefaultManualSpeeds matches the nominal forward throttle of the follower.
func DefaultManualSpeeds() ManualSpeeds {
	return ManualSpeeds{Forward: 0.55, Turn: 0.55}
}

// Command converts a direction into wheel speeds. Turns spin in place:
// left runs the left wheel backwards and the right wheel forwards.
func (s ManualSpeeds) Command(d Direction) (Command, error) {
	switch d {
	case Forward:
		return Wheels(s.Forward, s.Forward), nil
	case Backward:
		return Wheels(-s.Forward, -s.Forward), nil
	case Left:
		return Wheels(-s.Turn, s.Turn), nil
	case Right:
		return Wheels(s.Turn, -s.Turn), nil
	case Stop:
		return Halt, nil
	}
	return Halt, fmt.Errorf("unknown direction %q", string(d))
}
