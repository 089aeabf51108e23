// Package camera provides the frame source contract, camera settings and the
// shared latest-frame buffer read by the streaming endpoints.
package camera

import "strconv"

// Config holds camera capture settings. They are read once at startup.
type Config struct {
	// === Device ===
	// Device is a V4L2 index ("0") or a GStreamer/URL capture string.
	Device string `json:"device" yaml:"device"`

	// === Resolution ===
	Width     int `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Requested FPS
	Quality   int `json:"quality" yaml:"quality"`     // JPEG quality 1-100 for the stream

	// Rotate180 flips frames for cameras mounted upside down.
	Rotate180 bool `json:"rotate_180" yaml:"rotate_180"`
}

// Capture limits accepted by Validate.
const (
	MinWidth     = 160
	MaxWidth     = 1920
	MinHeight    = 120
	MaxHeight    = 1080
	MaxFramerate = 120
)

// DefaultConfig returns 640x480, which keeps ArUco detection well under the
// 50ms control tick on a Raspberry Pi 4.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// CenterX returns the middle pixel column, the default steering target.
func (c Config) CenterX() float64 {
	return float64(c.Width) / 2
}

// DeviceIndex returns the device as an integer index if it is numeric.
func (c Config) DeviceIndex() (int, bool) {
	n, err := strconv.Atoi(c.Device)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
