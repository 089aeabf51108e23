// Package drive provides the differential-drive actuator contract for the rover.
//
// Like the rest of the hardware boundary, the interfaces here are small so that
// consumers depend only on what they use: the control loop needs an Actuator,
// the daemon additionally needs to Close it.
package drive

import (
	"errors"
	"fmt"
)

// ErrActuator marks a failed motor command. It is never swallowed: a motor
// that did not accept a command may still be running the previous one.
var ErrActuator = errors.New("actuator error")

// Actuator drives the two wheels. Speeds are in [-1, 1]; positive is forward.
// Both methods are idempotent and take effect immediately.
type Actuator interface {
	Drive(left, right float64) error
	Stop() error
}

// Closer releases hardware resources (GPIO lines, PWM channels).
type Closer interface {
	Close() error
}

// Driver is an Actuator that owns hardware and must be closed on shutdown.
type Driver interface {
	Actuator
	Closer
}

// Command is one wheel-speed decision. When Stop is set, Left and Right are ignored.
type Command struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
	Stop  bool    `json:"stop"`
}

// Halt is the distinguished stop command.
var Halt = Command{Stop: true}

// Wheels returns a moving command with both speeds clamped to [-1, 1].
func Wheels(left, right float64) Command {
	return Command{Left: Clamp(left), Right: Clamp(right)}
}

// IsHalt reports whether the command stops the rover.
func (c Command) IsHalt() bool {
	return c.Stop
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Stop {
		return "stop"
	}
	return fmt.Sprintf("drive(%.2f, %.2f)", c.Left, c.Right)
}

// Apply sends the command to the actuator. Speeds are clamped again so a
// hand-built Command can never exceed the hardware range.
func (c Command) Apply(a Actuator) error {
	if c.Stop {
		return a.Stop()
	}
	return a.Drive(Clamp(c.Left), Clamp(c.Right))
}

// Clamp restricts v to [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
