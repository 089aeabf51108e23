// Package steering turns a marker observation into wheel speeds.
//
// The follower is purely proportional: the horizontal offset of the marker
// from the frame centre steers, and the apparent marker width decides when
// the rover is close enough to stop. There is no state between frames.
package steering

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/marker"
	"github.com/teslashibe/go-rover/pkg/mode"
)

// Compute returns the wheel command for one control cycle.
//
// Outside AUTO, or with no marker, or once the marker is at least
// StopWidthPx wide, the result is drive.Halt. Otherwise a marker left of
// centre (positive error) slows the left wheel and speeds up the right one.
func Compute(obs *marker.Observation, m mode.Mode, p Params) drive.Command {
	if m != mode.Auto || obs == nil {
		return drive.Halt
	}
	if obs.Width >= p.StopWidthPx {
		return drive.Halt
	}

	correction := Error(obs, p) * p.Kp
	return drive.Wheels(p.BaseSpeed-correction, p.BaseSpeed+correction)
}

// Error is the horizontal pixel error, target minus observed.
// Positive means the marker is left of centre.
func Error(obs *marker.Observation, p Params) float64 {
	return p.FrameCenterX - obs.CenterX
}

// Controller holds validated Params.
type Controller struct {
	params Params
}

// NewController validates p and returns a controller using it.
func NewController(p Params) (*Controller, error) {
	if errs := p.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid steering params: %s", strings.Join(errs, "; "))
	}
	return &Controller{params: p}, nil
}

// Compute applies the controller's params to obs.
func (c *Controller) Compute(obs *marker.Observation, m mode.Mode) drive.Command {
	return Compute(obs, m, c.params)
}

// Params returns the controller's tuning.
func (c *Controller) Params() Params {
	return c.params
}
