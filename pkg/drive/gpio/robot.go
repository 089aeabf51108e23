package gpio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/teslashibe/go-rover/pkg/drive"
)

// Pins maps the H-bridge inputs to BCM GPIO numbers.
type Pins struct {
	LeftForward   int
	LeftBackward  int
	RightForward  int
	RightBackward int
	PWMHz         int
}

// DefaultPins is the wiring used on the reference build: left motor on 17/27,
// right motor on 22/23.
func DefaultPins() Pins {
	return Pins{
		LeftForward:   17,
		LeftBackward:  27,
		RightForward:  22,
		RightBackward: 23,
		PWMHz:         100,
	}
}

// Robot is a differential-drive actuator built from two Motors.
type Robot struct {
	left  *Motor
	right *Motor
}

// Open initializes the periph host drivers and claims the four pins.
func Open(p Pins) (*Robot, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio host: %w", err)
	}

	lookup := func(n int) (gpio.PinIO, error) {
		name := fmt.Sprintf("GPIO%d", n)
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("pin %s not found", name)
		}
		return pin, nil
	}

	var pins [4]gpio.PinIO
	for i, n := range []int{p.LeftForward, p.LeftBackward, p.RightForward, p.RightBackward} {
		pin, err := lookup(n)
		if err != nil {
			return nil, err
		}
		pins[i] = pin
	}

	freq := physic.Frequency(p.PWMHz) * physic.Hertz
	r := &Robot{
		left:  NewMotor("left", pins[0], pins[1], freq),
		right: NewMotor("right", pins[2], pins[3], freq),
	}

	if err := r.Stop(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRobot builds a Robot from already-constructed motors.
func NewRobot(left, right *Motor) *Robot {
	return &Robot{left: left, right: right}
}

// Drive sets both wheel speeds.
func (r *Robot) Drive(left, right float64) error {
	if err := r.left.Set(drive.Clamp(left)); err != nil {
		// Don't leave one wheel spinning alone.
		return errors.Join(err, r.right.Set(0))
	}
	if err := r.right.Set(drive.Clamp(right)); err != nil {
		return errors.Join(err, r.left.Set(0))
	}
	return nil
}

// Stop brakes both wheels. Both motors are attempted even if the first fails.
func (r *Robot) Stop() error {
	return errors.Join(r.left.Set(0), r.right.Set(0))
}

// Close stops the motors and releases the pins.
func (r *Robot) Close() error {
	err := r.Stop()
	for _, m := range []*Motor{r.left, r.right} {
		for _, p := range []gpio.PinOut{m.forward, m.backward} {
			err = errors.Join(err, p.Halt())
		}
	}
	return err
}

// Ensure Robot implements drive.Driver
var _ drive.Driver = (*Robot)(nil)
