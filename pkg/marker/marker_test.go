package marker

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
)

// square builds an axis-aligned marker with its top-left corner at (x, y).
func square(id int, x, y, size float64) Marker {
	return Marker{
		ID: id,
		Corners: [4]r2.Point{
			{X: x, Y: y},
			{X: x + size, Y: y},
			{X: x + size, Y: y + size},
			{X: x, Y: y + size},
		},
	}
}

func TestMarker_Observe(t *testing.T) {
	tests := []struct {
		name       string
		m          Marker
		wantCenter float64
		wantWidth  float64
	}{
		{
			name:       "centered square",
			m:          square(3, 270, 190, 100),
			wantCenter: 320,
			wantWidth:  100,
		},
		{
			name:       "left of center",
			m:          square(1, 220, 100, 100),
			wantCenter: 270,
			wantWidth:  100,
		},
		{
			name: "tilted top edge uses euclidean length",
			m: Marker{
				ID: 7,
				Corners: [4]r2.Point{
					{X: 0, Y: 0},
					{X: 30, Y: 40},
					{X: 30, Y: 90},
					{X: 0, Y: 50},
				},
			},
			wantCenter: 15,
			wantWidth:  50,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obs := tc.m.Observe()
			if math.Abs(obs.CenterX-tc.wantCenter) > 1e-9 {
				t.Errorf("CenterX: got %v, want %v", obs.CenterX, tc.wantCenter)
			}
			if math.Abs(obs.Width-tc.wantWidth) > 1e-9 {
				t.Errorf("Width: got %v, want %v", obs.Width, tc.wantWidth)
			}
			if obs.ID != tc.m.ID {
				t.Errorf("ID: got %d, want %d", obs.ID, tc.m.ID)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	if Select(nil) != nil {
		t.Error("Select(nil) should be nil")
	}

	markers := []Marker{
		square(9, 0, 0, 10),
		square(2, 100, 0, 10),
		square(5, 200, 0, 10),
		square(2, 300, 0, 10),
	}

	got := Select(markers)
	if got == nil {
		t.Fatal("Select returned nil")
	}
	if got.ID != 2 {
		t.Errorf("ID: got %d, want 2", got.ID)
	}
	// equal IDs keep detector order
	if got.Corners[0].X != 100 {
		t.Errorf("expected first marker with ID 2, got corner x=%v", got.Corners[0].X)
	}
}

func TestTarget(t *testing.T) {
	if Target(nil) != nil {
		t.Error("Target(nil) should be nil: absence is not a zero observation")
	}

	obs := Target([]Marker{square(4, 220, 0, 100), square(1, 500, 0, 40)})
	if obs == nil {
		t.Fatal("Target returned nil")
	}
	if obs.ID != 1 || obs.CenterX != 520 || obs.Width != 40 {
		t.Errorf("got %+v", *obs)
	}
}
