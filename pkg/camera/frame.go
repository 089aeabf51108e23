package camera

import (
	"errors"
	"image"
)

// ErrCapture marks a failed frame grab. It is transient: the control loop
// logs it and tries again on the next tick.
var ErrCapture = errors.New("camera capture failed")

// Frame is one captured image. Backends keep the pixels in native memory,
// so every Frame must be closed by whoever captured it.
type Frame interface {
	// Size returns the frame dimensions in pixels.
	Size() image.Point

	// EncodeJPEG returns an independent JPEG copy of the current pixels.
	EncodeJPEG(quality int) ([]byte, error)

	// Close releases the pixel buffer.
	Close() error
}

// Source produces frames on demand.
type Source interface {
	// Capture grabs the next frame. Errors wrap ErrCapture.
	Capture() (Frame, error)

	// Close releases the device.
	Close() error
}
