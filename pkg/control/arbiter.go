// Package control runs the rover: the MANUAL/AUTO arbiter that owns the
// motors, the fixed-rate marker-following loop, and the Rover facade the web
// layer talks to.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/mode"
)

// Arbiter decides who may drive the wheels and is the only code that calls
// the actuator. One mutex guards the mode and every motor write, so a mode
// change and a motor command can never interleave.
type Arbiter struct {
	actuator drive.Actuator
	speeds   drive.ManualSpeeds
	logger   *slog.Logger

	mu      sync.Mutex
	mode    mode.Mode
	last    drive.Command // last command the actuator accepted
	toggles uint64
}

// NewArbiter creates an arbiter in MANUAL mode. A nil logger uses slog.Default().
func NewArbiter(actuator drive.Actuator, speeds drive.ManualSpeeds, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{
		actuator: actuator,
		speeds:   speeds,
		logger:   logger.With("component", "control.arbiter"),
		mode:     mode.Manual,
		last:     drive.Halt,
	}
}

// Mode returns the current mode.
func (a *Arbiter) Mode() mode.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Toggle flips the mode and stops the motors exactly once, so neither side
// inherits the other's motion. The mode flips even if Stop fails; the error
// is returned so the caller can report it.
func (a *Arbiter) Toggle() (mode.Mode, error) {
	a.mu.Lock()
	a.mode = a.mode.Toggle()
	a.toggles++
	m := a.mode
	err := a.apply(drive.Halt)
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("stop on mode switch failed", "mode", m, "error", err)
		return m, err
	}
	a.logger.Info("mode switched", "mode", m)
	return m, nil
}

// Manual applies an operator command. In AUTO the command is accepted and
// ignored (applied is false) so clients do not retry; no motor call is made.
func (a *Arbiter) Manual(dir drive.Direction) (applied bool, err error) {
	cmd, err := a.speeds.Command(dir)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode != mode.Manual {
		a.logger.Debug("manual command ignored in auto", "direction", dir)
		return false, nil
	}
	if err := a.apply(cmd); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyAuto applies a command from the control loop, but only while the mode
// is still AUTO. Commands computed just before a switch to MANUAL are dropped.
func (a *Arbiter) ApplyAuto(cmd drive.Command) (applied bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode != mode.Auto {
		return false, nil
	}
	if err := a.apply(cmd); err != nil {
		return false, err
	}
	return true, nil
}

// ForceStop stops the motors regardless of mode. Used on loop failure and shutdown.
func (a *Arbiter) ForceStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apply(drive.Halt)
}

// LastCommand returns the last command the actuator accepted.
func (a *Arbiter) LastCommand() drive.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Toggles returns how many times the mode was switched.
func (a *Arbiter) Toggles() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.toggles
}

// apply must be called with a.mu held.
func (a *Arbiter) apply(cmd drive.Command) error {
	if err := cmd.Apply(a.actuator); err != nil {
		return actuatorError(cmd, err)
	}
	a.last = cmd
	return nil
}

func actuatorError(cmd drive.Command, err error) error {
	if errors.Is(err, drive.ErrActuator) {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return fmt.Errorf("%w: %s: %w", drive.ErrActuator, cmd, err)
}
