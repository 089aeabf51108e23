// Package config loads the rover daemon configuration.
//
// Values come from, in order: built-in defaults, the named presets, a YAML
// file, and ROVER_* environment variables (optionally from a .env file).
// The result is validated once at startup and never reloaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/drive/gpio"
	"github.com/teslashibe/go-rover/pkg/steering"
)

// Config represents the complete rover configuration
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Motors   MotorsConfig   `yaml:"motors"`
	Steering SteeringConfig `yaml:"steering"`
	Manual   ManualConfig   `yaml:"manual"`
	Loop     LoopConfig     `yaml:"loop"`
	Marker   MarkerConfig   `yaml:"marker"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

// CameraConfig contains capture settings
type CameraConfig struct {
	Preset      string `yaml:"preset" validate:"omitempty,oneof=default low 720p flipped"`
	Device      string `yaml:"device" validate:"required"`
	Width       int    `yaml:"width" validate:"min=160,max=1920"`
	Height      int    `yaml:"height" validate:"min=120,max=1080"`
	FPS         int    `yaml:"fps" validate:"min=1,max=120"`
	Rotate180   bool   `yaml:"rotate_180"`
	JPEGQuality int    `yaml:"jpeg_quality" validate:"min=1,max=100"`
}

// MotorsConfig contains H-bridge wiring (BCM pin numbers)
type MotorsConfig struct {
	LeftForward   int `yaml:"left_forward" validate:"min=0,max=27"`
	LeftBackward  int `yaml:"left_backward" validate:"min=0,max=27"`
	RightForward  int `yaml:"right_forward" validate:"min=0,max=27"`
	RightBackward int `yaml:"right_backward" validate:"min=0,max=27"`
	PWMHz         int `yaml:"pwm_hz" validate:"min=1,max=20000"`
}

// SteeringConfig contains follower tuning. frame_center_x of 0 means the
// middle of the camera frame.
type SteeringConfig struct {
	Preset       string  `yaml:"preset" validate:"omitempty,oneof=default gentle"`
	Kp           float64 `yaml:"kp" validate:"gte=0"`
	BaseSpeed    float64 `yaml:"base_speed" validate:"gte=-1,lte=1"`
	StopWidthPx  float64 `yaml:"stop_width_px" validate:"gt=0"`
	FrameCenterX float64 `yaml:"frame_center_x" validate:"gte=0"`
}

// ManualConfig contains operator throttle
type ManualConfig struct {
	ForwardSpeed float64 `yaml:"forward_speed" validate:"gte=0,lte=1"`
	TurnSpeed    float64 `yaml:"turn_speed" validate:"gte=0,lte=1"`
}

// LoopConfig contains control loop timing
type LoopConfig struct {
	Interval       time.Duration `yaml:"interval" validate:"gte=5ms,lte=1s"`
	HeartbeatEvery uint64        `yaml:"heartbeat_every"`
}

// MarkerConfig selects the fiducial dictionary
type MarkerConfig struct {
	Dictionary string `yaml:"dictionary" validate:"required"`
}

// WebConfig contains HTTP server settings
type WebConfig struct {
	Port         int     `yaml:"port" validate:"min=1,max=65535"`
	CommandRate  float64 `yaml:"command_rate" validate:"gt=0"`  // commands per second per client
	CommandBurst int     `yaml:"command_burst" validate:"min=1"` // burst allowance per client
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyCameraPreset(camera.DefaultConfig())
	cfg.applySteeringPreset(steering.DefaultParams())

	pins := gpio.DefaultPins()
	cfg.Motors = MotorsConfig{
		LeftForward:   pins.LeftForward,
		LeftBackward:  pins.LeftBackward,
		RightForward:  pins.RightForward,
		RightBackward: pins.RightBackward,
		PWMHz:         pins.PWMHz,
	}

	speeds := drive.DefaultManualSpeeds()
	cfg.Manual = ManualConfig{ForwardSpeed: speeds.Forward, TurnSpeed: speeds.Turn}

	loop := control.DefaultLoopConfig()
	cfg.Loop = LoopConfig{Interval: loop.Interval, HeartbeatEvery: loop.HeartbeatEvery}

	cfg.Marker = MarkerConfig{Dictionary: "4x4_50"}
	cfg.Web = WebConfig{Port: 8080, CommandRate: 20, CommandBurst: 10}
	cfg.Log = LogConfig{Level: "info"}
	return cfg
}

func (c *Config) applyCameraPreset(cam camera.Config) {
	c.Camera = CameraConfig{
		Preset:      c.Camera.Preset,
		Device:      cam.Device,
		Width:       cam.Width,
		Height:      cam.Height,
		FPS:         cam.Framerate,
		Rotate180:   cam.Rotate180,
		JPEGQuality: cam.Quality,
	}
}

func (c *Config) applySteeringPreset(p steering.Params) {
	// the centre is kept: it follows the camera width unless set explicitly
	c.Steering = SteeringConfig{
		Preset:       c.Steering.Preset,
		Kp:           p.Kp,
		BaseSpeed:    p.BaseSpeed,
		StopWidthPx:  p.StopWidthPx,
		FrameCenterX: c.Steering.FrameCenterX,
	}
}

// useCameraPreset replaces the camera section with a named preset.
func (c *Config) useCameraPreset(name string) error {
	p := camera.GetPreset(name)
	if p == nil {
		return fmt.Errorf("unknown camera preset %q (have %s)", name, strings.Join(camera.PresetNames(), ", "))
	}
	c.Camera.Preset = name
	c.applyCameraPreset(*p)
	return nil
}

// useSteeringPreset replaces the steering gains with a named preset.
func (c *Config) useSteeringPreset(name string) error {
	p, err := steering.Preset(name)
	if err != nil {
		return err
	}
	c.Steering.Preset = name
	c.applySteeringPreset(p)
	return nil
}

// Load reads a YAML file (empty path means defaults only), applies ROVER_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.finalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Presets named in the document
// are applied first, so explicit keys override preset values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	var presets struct {
		Camera struct {
			Preset string `yaml:"preset"`
		} `yaml:"camera"`
		Steering struct {
			Preset string `yaml:"preset"`
		} `yaml:"steering"`
	}
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if name := presets.Camera.Preset; name != "" {
		if err := cfg.useCameraPreset(name); err != nil {
			return nil, err
		}
	}
	if name := presets.Steering.Preset; name != "" {
		if err := cfg.useSteeringPreset(name); err != nil {
			return nil, err
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// finalize fills values derived from other sections.
func (c *Config) finalize() {
	if c.Steering.FrameCenterX == 0 {
		c.Steering.FrameCenterX = c.CameraSettings().CenterX()
	}
}

var validate = validator.New()

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	pins := map[int]string{}
	for name, pin := range map[string]int{
		"left_forward":   c.Motors.LeftForward,
		"left_backward":  c.Motors.LeftBackward,
		"right_forward":  c.Motors.RightForward,
		"right_backward": c.Motors.RightBackward,
	} {
		if other, dup := pins[pin]; dup {
			a, b := other, name
			if b < a {
				a, b = b, a
			}
			errs = append(errs, fmt.Errorf("motors: %s and %s share GPIO%d", a, b, pin))
		}
		pins[pin] = name
	}

	if c.Steering.FrameCenterX > float64(c.Camera.Width) {
		errs = append(errs, fmt.Errorf("steering.frame_center_x %.0f is outside the %dpx frame", c.Steering.FrameCenterX, c.Camera.Width))
	}

	return errors.Join(errs...)
}

// CameraSettings converts the camera section.
func (c *Config) CameraSettings() camera.Config {
	return camera.Config{
		Device:    c.Camera.Device,
		Width:     c.Camera.Width,
		Height:    c.Camera.Height,
		Framerate: c.Camera.FPS,
		Quality:   c.Camera.JPEGQuality,
		Rotate180: c.Camera.Rotate180,
	}
}

// SteeringParams converts the steering section.
func (c *Config) SteeringParams() steering.Params {
	return steering.Params{
		Kp:           c.Steering.Kp,
		BaseSpeed:    c.Steering.BaseSpeed,
		StopWidthPx:  c.Steering.StopWidthPx,
		FrameCenterX: c.Steering.FrameCenterX,
	}
}

// Pins converts the motors section.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		LeftForward:   c.Motors.LeftForward,
		LeftBackward:  c.Motors.LeftBackward,
		RightForward:  c.Motors.RightForward,
		RightBackward: c.Motors.RightBackward,
		PWMHz:         c.Motors.PWMHz,
	}
}

// ManualSpeeds converts the manual section.
func (c *Config) ManualSpeeds() drive.ManualSpeeds {
	return drive.ManualSpeeds{Forward: c.Manual.ForwardSpeed, Turn: c.Manual.TurnSpeed}
}

// LoopSettings converts the loop section. Frames are published at the camera's JPEG quality.
func (c *Config) LoopSettings() control.LoopConfig {
	return control.LoopConfig{
		Interval:       c.Loop.Interval,
		JPEGQuality:    c.Camera.JPEGQuality,
		HeartbeatEvery: c.Loop.HeartbeatEvery,
	}
}
