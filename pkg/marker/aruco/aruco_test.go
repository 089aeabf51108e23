package aruco

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-rover/pkg/camera/cvcam"
	"github.com/teslashibe/go-rover/pkg/marker"
)

func TestNew_UnknownDictionary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dictionary = "7x7_9000"

	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown dictionary")
	}
}

func TestDictionaries_Sorted(t *testing.T) {
	names := Dictionaries()
	if len(names) == 0 {
		t.Fatal("no dictionaries")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("not sorted: %q before %q", names[i-1], names[i])
		}
	}
}

func TestDetect_BlankFrame(t *testing.T) {
	d, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	frame := cvcam.NewFrame(gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3))
	defer frame.Close()

	markers, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(markers) != 0 {
		t.Errorf("Expected no markers on a blank frame, got %d", len(markers))
	}
}

type plainFrame struct{}

func (plainFrame) Size() image.Point              { return image.Pt(1, 1) }
func (plainFrame) EncodeJPEG(int) ([]byte, error) { return nil, nil }
func (plainFrame) Close() error                   { return nil }

func TestDetect_UnsupportedFrame(t *testing.T) {
	d, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	_, err = d.Detect(plainFrame{})
	if !errors.Is(err, marker.ErrDetection) {
		t.Errorf("got %v, want ErrDetection", err)
	}
}
