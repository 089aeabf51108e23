package control

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/marker"
)

type fakeFrame struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeFrame) Size() image.Point { return image.Pt(640, 480) }

func (f *fakeFrame) EncodeJPEG(quality int) ([]byte, error) {
	return []byte{0xFF, 0xD8, byte(quality)}, nil
}

func (f *fakeFrame) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeFrame) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeSource returns a fresh frame per capture, or err when set. Each
// capture takes delay.
type fakeSource struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	frames []*fakeFrame
}

func (s *fakeSource) Capture() (camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	f := &fakeFrame{}
	s.frames = append(s.frames, f)
	return f, nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSource) setDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// logBuffer collects log output from goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) count(msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), msg)
}

// fakeDetector reports a fixed marker set and counts annotations.
type fakeDetector struct {
	mu        sync.Mutex
	markers   []marker.Marker
	err       error
	annotated int
}

func (d *fakeDetector) Detect(camera.Frame) ([]marker.Marker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]marker.Marker, len(d.markers))
	copy(out, d.markers)
	return out, nil
}

func (d *fakeDetector) Annotate(camera.Frame, []marker.Marker) error {
	d.mu.Lock()
	d.annotated++
	d.mu.Unlock()
	return nil
}

func (d *fakeDetector) Close() error { return nil }

func (d *fakeDetector) set(markers ...marker.Marker) {
	d.mu.Lock()
	d.markers = markers
	d.mu.Unlock()
}

func (d *fakeDetector) annotations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.annotated
}

// square builds an axis-aligned marker centred at cx with the given width.
func square(id int, cx, width float64) marker.Marker {
	h := width / 2
	return marker.Marker{
		ID: id,
		Corners: [4]r2.Point{
			{X: cx - h, Y: 200},
			{X: cx + h, Y: 200},
			{X: cx + h, Y: 200 + width},
			{X: cx - h, Y: 200 + width},
		},
	}
}

var errMotor = errors.New("h-bridge fault")
