package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ROVER_"

// DefaultAddr is where roverctl looks for the daemon.
const DefaultAddr = "http://localhost:8080"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type override func(c *Config, v string) error

// overrides maps ROVER_<SECTION>_<KEY> to the field it sets.
var overrides = map[string]override{
	"CAMERA_DEVICE":           func(c *Config, v string) error { c.Camera.Device = v; return nil },
	"CAMERA_WIDTH":            intVar(func(c *Config) *int { return &c.Camera.Width }),
	"CAMERA_HEIGHT":           intVar(func(c *Config) *int { return &c.Camera.Height }),
	"CAMERA_FPS":              intVar(func(c *Config) *int { return &c.Camera.FPS }),
	"CAMERA_JPEG_QUALITY":     intVar(func(c *Config) *int { return &c.Camera.JPEGQuality }),
	"CAMERA_ROTATE_180":       boolVar(func(c *Config) *bool { return &c.Camera.Rotate180 }),
	"MOTORS_LEFT_FORWARD":     intVar(func(c *Config) *int { return &c.Motors.LeftForward }),
	"MOTORS_LEFT_BACKWARD":    intVar(func(c *Config) *int { return &c.Motors.LeftBackward }),
	"MOTORS_RIGHT_FORWARD":    intVar(func(c *Config) *int { return &c.Motors.RightForward }),
	"MOTORS_RIGHT_BACKWARD":   intVar(func(c *Config) *int { return &c.Motors.RightBackward }),
	"MOTORS_PWM_HZ":           intVar(func(c *Config) *int { return &c.Motors.PWMHz }),
	"STEERING_KP":             floatVar(func(c *Config) *float64 { return &c.Steering.Kp }),
	"STEERING_BASE_SPEED":     floatVar(func(c *Config) *float64 { return &c.Steering.BaseSpeed }),
	"STEERING_STOP_WIDTH_PX":  floatVar(func(c *Config) *float64 { return &c.Steering.StopWidthPx }),
	"STEERING_FRAME_CENTER_X": floatVar(func(c *Config) *float64 { return &c.Steering.FrameCenterX }),
	"MANUAL_FORWARD_SPEED":    floatVar(func(c *Config) *float64 { return &c.Manual.ForwardSpeed }),
	"MANUAL_TURN_SPEED":       floatVar(func(c *Config) *float64 { return &c.Manual.TurnSpeed }),
	"LOOP_INTERVAL":           durationVar(func(c *Config) *time.Duration { return &c.Loop.Interval }),
	"LOOP_HEARTBEAT_EVERY":    uintVar(func(c *Config) *uint64 { return &c.Loop.HeartbeatEvery }),
	"MARKER_DICTIONARY":       func(c *Config, v string) error { c.Marker.Dictionary = v; return nil },
	"WEB_PORT":                intVar(func(c *Config) *int { return &c.Web.Port }),
	"WEB_COMMAND_RATE":        floatVar(func(c *Config) *float64 { return &c.Web.CommandRate }),
	"WEB_COMMAND_BURST":       intVar(func(c *Config) *int { return &c.Web.CommandBurst }),
	"LOG_LEVEL":               func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_FORMAT":              func(c *Config, v string) error { c.Log.Format = v; return nil },
	"LOG_FILE":                func(c *Config, v string) error { c.Log.File = v; return nil },
}

// presetOverrides run before overrides, so ROVER_CAMERA_WIDTH still wins
// over the width of ROVER_CAMERA_PRESET.
var presetOverrides = []struct {
	key string
	set override
}{
	{"CAMERA_PRESET", (*Config).useCameraPreset},
	{"STEERING_PRESET", (*Config).useSteeringPreset},
}

// ApplyEnv applies every ROVER_* variable that lookup returns. A preset
// variable replaces its whole section, including values from the file.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []error
	for _, p := range presetOverrides {
		v, ok := lookup(EnvPrefix + p.key)
		if !ok || v == "" {
			continue
		}
		if err := p.set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, p.key, err))
		}
	}
	for key, set := range overrides {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		if err := set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Addr returns the daemon URL from ROVER_ADDR.
// Falls back to the provided default if not set.
func Addr(defaultAddr string) string {
	if addr := os.Getenv("ROVER_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

func intVar(field func(*Config) *int) override {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func uintVar(field func(*Config) *uint64) override {
	return func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) override {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolVar(field func(*Config) *bool) override {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) override {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
