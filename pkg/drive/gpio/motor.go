// Package gpio drives a two-motor H-bridge from Raspberry Pi GPIO pins.
//
// Each motor has a forward and a backward pin. Speed is applied as a PWM duty
// cycle on the pin matching the sign of the speed while the other pin is held
// low, which is how gpiozero's Motor behaves with pwm=True.
package gpio

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Motor is one wheel on an H-bridge.
type Motor struct {
	name     string
	forward  gpio.PinOut
	backward gpio.PinOut
	freq     physic.Frequency

	mu    sync.Mutex
	speed float64
}

// NewMotor wraps two output pins.
func NewMotor(name string, forward, backward gpio.PinOut, freq physic.Frequency) *Motor {
	return &Motor{
		name:     name,
		forward:  forward,
		backward: backward,
		freq:     freq,
	}
}

// Set applies a signed speed in [-1, 1].
func (m *Motor) Set(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	speed = math.Max(-1, math.Min(1, speed))

	var active, idle gpio.PinOut
	switch {
	case speed > 0:
		active, idle = m.forward, m.backward
	case speed < 0:
		active, idle = m.backward, m.forward
	default:
		if err := m.off(); err != nil {
			return err
		}
		m.speed = 0
		return nil
	}

	// Lower the idle side first so both pins are never high together.
	if err := idle.Out(gpio.Low); err != nil {
		return fmt.Errorf("%s motor: %s low: %w", m.name, idle, err)
	}
	if err := active.PWM(duty(math.Abs(speed)), m.freq); err != nil {
		return fmt.Errorf("%s motor: %s pwm: %w", m.name, active, err)
	}
	m.speed = speed
	return nil
}

// Speed returns the last applied speed.
func (m *Motor) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

func (m *Motor) off() error {
	if err := m.forward.Out(gpio.Low); err != nil {
		return fmt.Errorf("%s motor: %s low: %w", m.name, m.forward, err)
	}
	if err := m.backward.Out(gpio.Low); err != nil {
		return fmt.Errorf("%s motor: %s low: %w", m.name, m.backward, err)
	}
	return nil
}

// duty converts a magnitude in [0, 1] to a PWM duty cycle.
func duty(v float64) gpio.Duty {
	return gpio.Duty(math.Round(v * float64(gpio.DutyMax)))
}
