package steering

import "fmt"

// Params tunes the proportional follower. All fields are read at startup.
type Params struct {
	// Kp is wheel-speed change per pixel of horizontal error.
	Kp float64 `json:"kp" yaml:"kp"`

	// BaseSpeed is the forward throttle both wheels share before steering, in [-1, 1].
	BaseSpeed float64 `json:"base_speed" yaml:"base_speed"`

	// StopWidthPx is the marker width at which the rover is close enough and halts.
	// It is an empirical pixel width that depends on marker size and resolution.
	StopWidthPx float64 `json:"stop_width_px" yaml:"stop_width_px"`

	// FrameCenterX is the target pixel column, normally half the frame width.
	FrameCenterX float64 `json:"frame_center_x" yaml:"frame_center_x"`
}

// Preset names
const (
	PresetDefault = "default"
	PresetGentle  = "gentle"
)

// DefaultParams returns the tuning used on a 640px-wide camera.
func DefaultParams() Params {
	return Params{
		Kp:           0.01,
		BaseSpeed:    0.55,
		StopWidthPx:  180,
		FrameCenterX: 320,
	}
}

// GentleParams is a slower approach with softer steering, for tight rooms
// and fresh batteries.
func GentleParams() Params {
	p := DefaultParams()
	p.Kp = 0.0015
	p.BaseSpeed = 0.35
	return p
}

// Presets returns all available steering presets.
func Presets() map[string]Params {
	return map[string]Params{
		PresetDefault: DefaultParams(),
		PresetGentle:  GentleParams(),
	}
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	return []string{PresetDefault, PresetGentle}
}

// Preset returns a preset by name.
func Preset(name string) (Params, error) {
	if p, ok := Presets()[name]; ok {
		return p, nil
	}
	return Params{}, fmt.Errorf("unknown steering preset %q", name)
}

// Validate checks if the params are usable.
// Returns a list of validation errors, or nil if valid.
func (p *Params) Validate() []string {
	var errors []string

	if p.Kp < 0 {
		errors = append(errors, "kp must not be negative")
	}
	if p.BaseSpeed < -1 || p.BaseSpeed > 1 {
		errors = append(errors, "base_speed must be between -1 and 1")
	}
	if p.StopWidthPx <= 0 {
		errors = append(errors, "stop_width_px must be positive")
	}
	if p.FrameCenterX <= 0 {
		errors = append(errors, "frame_center_x must be positive")
	}

	return errors
}
