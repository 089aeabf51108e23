// Package mode defines the rover's control mode.
package mode

import (
	"fmt"
	"strings"
)

// Mode selects who owns the wheels: the operator or the marker follower.
type Mode int32

const (
	// Manual is the startup mode. Operator commands drive the motors.
	Manual Mode = iota
	// Auto hands the motors to the marker-following control loop.
	Auto
)

// String returns "MANUAL" or "AUTO".
func (m Mode) String() string {
	switch m {
	case Manual:
		return "MANUAL"
	case Auto:
		return "AUTO"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Auto {
		return Manual
	}
	return Auto
}

// MarshalText encodes the mode as its name so JSON shows "AUTO" instead of 1.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Manual && m != Auto {
		return nil, fmt.Errorf("invalid mode %d", int32(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts the mode name in any case.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Parse converts "manual" / "auto" (case-insensitive) to a Mode.
func Parse(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MANUAL":
		return Manual, nil
	case "AUTO":
		return Auto, nil
	}
	return Manual, fmt.Errorf("unknown mode %q", s)
}
