// Package marker provides fiducial marker types and the detector contract.
package marker

import (
	"errors"

	"github.com/golang/geo/r2"

	"github.com/teslashibe/go-rover/pkg/camera"
)

// ErrDetection marks a failed detection pass. Callers treat it as "no marker seen".
var ErrDetection = errors.New("marker detection failed")

// Marker is one detected fiducial. Corners are in pixel coordinates, in the
// detector's winding order (top-left, top-right, bottom-right, bottom-left).
type Marker struct {
	ID      int         `json:"id"`
	Corners [4]r2.Point `json:"corners"`
}

// Observation is what the steering controller needs to know about a marker.
type Observation struct {
	ID      int     `json:"id"`
	CenterX float64 `json:"center_x"` // mean of the corner x-coordinates
	Width   float64 `json:"width"`    // length of the top edge; grows as the marker gets closer
}

// Center returns the centroid of the four corners.
func (m Marker) Center() r2.Point {
	var sum r2.Point
	for _, c := range m.Corners {
		sum = sum.Add(c)
	}
	return sum.Mul(0.25)
}

// Width returns the distance between the first two corners. It is a
// proximity proxy only: it shrinks when the marker is viewed at an angle.
func (m Marker) Width() float64 {
	return m.Corners[1].Sub(m.Corners[0]).Norm()
}

// Observe derives the steering inputs from the marker.
func (m Marker) Observe() Observation {
	return Observation{
		ID:      m.ID,
		CenterX: m.Center().X,
		Width:   m.Width(),
	}
}

// Select picks the marker to follow: the lowest ID wins, and equal IDs keep
// detector order. Returns nil when there are no markers.
func Select(markers []Marker) *Marker {
	if len(markers) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(markers); i++ {
		if markers[i].ID < markers[best].ID {
			best = i
		}
	}
	return &markers[best]
}

// Target selects a marker and returns its observation, or nil if none.
func Target(markers []Marker) *Observation {
	m := Select(markers)
	if m == nil {
		return nil
	}
	obs := m.Observe()
	return &obs
}

// Detector finds markers in a camera frame.
type Detector interface {
	// Detect returns every marker in the frame. An empty result means no markers.
	Detect(frame camera.Frame) ([]Marker, error)

	// Close releases resources.
	Close() error
}

// Annotator draws detected markers onto a frame for the operator view.
type Annotator interface {
	Annotate(frame camera.Frame, markers []Marker) error
}
