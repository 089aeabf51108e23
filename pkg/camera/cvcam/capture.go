// Package cvcam captures frames from a V4L2 or GStreamer device using GoCV.
package cvcam

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-rover/pkg/camera"
)

// Frame is a camera.Frame backed by an OpenCV Mat (BGR).
type Frame struct {
	mat gocv.Mat
}

// NewFrame takes ownership of mat.
func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{mat: mat}
}

// Mat exposes the pixel buffer to other OpenCV code (detection, overlays).
// The Mat stays owned by the Frame.
func (f *Frame) Mat() *gocv.Mat {
	return &f.mat
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

// EncodeJPEG encodes the frame. The returned slice is a Go copy, safe to keep
// after Close.
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// Close releases the Mat.
func (f *Frame) Close() error {
	return f.mat.Close()
}

// Capture reads frames from an OpenCV VideoCapture.
type Capture struct {
	cfg camera.Config

	mu     sync.Mutex // VideoCapture is not safe for concurrent reads
	device *gocv.VideoCapture
}

// Open validates the config, opens the device and applies the resolution
// and frame rate.
func Open(cfg camera.Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}

	var source interface{} = cfg.Device
	if idx, ok := cfg.DeviceIndex(); ok {
		source = idx
	}

	device, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", cfg.Device, err)
	}

	device.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	device.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	device.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Capture{cfg: cfg, device: device}, nil
}

// Capture grabs one frame.
func (c *Capture) Capture() (camera.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil, fmt.Errorf("%w: device closed", camera.ErrCapture)
	}

	mat := gocv.NewMat()
	if ok := c.device.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: read returned no frame", camera.ErrCapture)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: empty frame", camera.ErrCapture)
	}

	if c.cfg.Rotate180 {
		rotated := gocv.NewMat()
		gocv.Rotate(mat, &rotated, gocv.Rotate180Clockwise)
		mat.Close()
		mat = rotated
	}

	return NewFrame(mat), nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}
	err := c.device.Close()
	c.device = nil
	return err
}

// Ensure Capture implements camera.Source
var _ camera.Source = (*Capture)(nil)
