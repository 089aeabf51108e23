// Package aruco detects ArUco fiducial markers using OpenCV's ArucoDetector.
package aruco

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"sync"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/marker"
)

// Config holds detector configuration
type Config struct {
	Dictionary string     // predefined dictionary name, e.g. "4x4_50"
	Outline    color.RGBA // overlay colour for detected markers
}

// DefaultConfig returns the 4x4 dictionary with 50 IDs and a green outline.
func DefaultConfig() Config {
	return Config{
		Dictionary: "4x4_50",
		Outline:    color.RGBA{G: 255, A: 255},
	}
}

var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":   gocv.ArucoDict4x4_50,
	"4x4_100":  gocv.ArucoDict4x4_100,
	"4x4_250":  gocv.ArucoDict4x4_250,
	"4x4_1000": gocv.ArucoDict4x4_1000,
	"5x5_50":   gocv.ArucoDict5x5_50,
	"5x5_100":  gocv.ArucoDict5x5_100,
	"5x5_250":  gocv.ArucoDict5x5_250,
	"5x5_1000": gocv.ArucoDict5x5_1000,
	"6x6_50":   gocv.ArucoDict6x6_50,
	"6x6_100":  gocv.ArucoDict6x6_100,
	"6x6_250":  gocv.ArucoDict6x6_250,
	"6x6_1000": gocv.ArucoDict6x6_1000,
	"original": gocv.ArucoDictArucoOriginal,
}

// Dictionaries returns the supported dictionary names, sorted.
func Dictionaries() []string {
	names := make([]string, 0, len(dictionaries))
	for name := range dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// matFrame is implemented by frames that carry an OpenCV Mat (cvcam.Frame).
type matFrame interface {
	Mat() *gocv.Mat
}

// Detector finds ArUco markers and draws them on frames.
type Detector struct {
	detector gocv.ArucoDetector
	outline  gocv.Scalar
	gray     gocv.Mat
	mu       sync.Mutex // Protects detector and the scratch Mat
}

// New creates a detector for the configured dictionary.
func New(cfg Config) (*Detector, error) {
	code, ok := dictionaries[strings.ToLower(cfg.Dictionary)]
	if !ok {
		return nil, fmt.Errorf("unknown aruco dictionary %q (have %s)", cfg.Dictionary, strings.Join(Dictionaries(), ", "))
	}

	dict := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()

	return &Detector{
		detector: gocv.NewArucoDetectorWithParams(dict, params),
		outline:  gocv.NewScalar(float64(cfg.Outline.B), float64(cfg.Outline.G), float64(cfg.Outline.R), 0),
		gray:     gocv.NewMat(),
	}, nil
}

// Detect finds markers in the frame. Detection runs on a grayscale copy so
// the colour frame stays untouched for the stream.
func (d *Detector) Detect(frame camera.Frame) ([]marker.Marker, error) {
	mf, ok := frame.(matFrame)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported frame type %T", marker.ErrDetection, frame)
	}
	img := mf.Mat()
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", marker.ErrDetection)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	gocv.CvtColor(*img, &d.gray, gocv.ColorBGRToGray)
	corners, ids, _ := d.detector.DetectMarkers(d.gray)

	if len(corners) != len(ids) {
		return nil, fmt.Errorf("%w: %d corner sets for %d ids", marker.ErrDetection, len(corners), len(ids))
	}

	markers := make([]marker.Marker, 0, len(ids))
	for i, quad := range corners {
		if len(quad) != 4 {
			return nil, fmt.Errorf("%w: marker %d has %d corners", marker.ErrDetection, ids[i], len(quad))
		}
		m := marker.Marker{ID: ids[i]}
		for j, p := range quad {
			m.Corners[j] = r2.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		markers = append(markers, m)
	}

	return markers, nil
}

// Annotate draws marker outlines and IDs onto the colour frame.
func (d *Detector) Annotate(frame camera.Frame, markers []marker.Marker) error {
	if len(markers) == 0 {
		return nil
	}
	mf, ok := frame.(matFrame)
	if !ok {
		return fmt.Errorf("annotate: unsupported frame type %T", frame)
	}

	corners := make([][]gocv.Point2f, len(markers))
	ids := make([]int, len(markers))
	for i, m := range markers {
		quad := make([]gocv.Point2f, 4)
		for j, c := range m.Corners {
			quad[j] = gocv.Point2f{X: float32(c.X), Y: float32(c.Y)}
		}
		corners[i] = quad
		ids[i] = m.ID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	gocv.ArucoDrawDetectedMarkers(*mf.Mat(), corners, ids, d.outline)
	return nil
}

// Close releases the detector resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return d.gray.Close()
}

var (
	_ marker.Detector  = (*Detector)(nil)
	_ marker.Annotator = (*Detector)(nil)
)
