package control

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/marker"
	"github.com/teslashibe/go-rover/pkg/steering"
)

type loopRig struct {
	loop     *Loop
	arbiter  *Arbiter
	mock     *drive.Mock
	source   *fakeSource
	detector *fakeDetector
	buffer   *camera.Buffer
	logs     *logBuffer
}

func newLoopRig(t *testing.T) *loopRig {
	t.Helper()
	steer, err := steering.NewController(steering.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	r := &loopRig{
		mock:     drive.NewMock(),
		source:   &fakeSource{},
		detector: &fakeDetector{},
		buffer:   camera.NewBuffer(),
		logs:     &logBuffer{},
	}
	r.arbiter = NewArbiter(r.mock, drive.DefaultManualSpeeds(), nil)

	cfg := DefaultLoopConfig()
	cfg.Interval = 5 * time.Millisecond
	logger := slog.New(slog.NewTextHandler(r.logs, nil))
	r.loop = NewLoop(cfg, r.source, r.detector, steer, r.arbiter, r.buffer, logger)
	return r
}

func (r *loopRig) auto(t *testing.T) {
	t.Helper()
	if _, err := r.arbiter.Toggle(); err != nil {
		t.Fatal(err)
	}
	r.mock.Reset()
}

func TestLoop_ManualNeverDrives(t *testing.T) {
	r := newLoopRig(t)
	r.detector.set(square(1, 270, 100))

	for i := 0; i < 10; i++ {
		if err := r.loop.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	if n := len(r.mock.Calls()); n != 0 {
		t.Errorf("Expected no actuator calls in MANUAL, got %d", n)
	}
	if r.buffer.Seq() != 10 {
		t.Errorf("frames published: got %d, want 10", r.buffer.Seq())
	}
	if r.detector.annotations() != 10 {
		t.Errorf("annotations: got %d, want 10 (overlay is drawn in every mode)", r.detector.annotations())
	}
}

func TestLoop_AutoFollowsMarker(t *testing.T) {
	r := newLoopRig(t)
	r.auto(t)
	r.detector.set(square(1, 270, 100))

	if err := r.loop.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	last, ok := r.mock.Last()
	if !ok || last.Stop {
		t.Fatalf("got %+v, want a drive call", last)
	}
	if math.Abs(last.Left-0.05) > 1e-9 || last.Right != 1.0 {
		t.Errorf("got drive(%v, %v), want drive(0.05, 1.0)", last.Left, last.Right)
	}

	stats := r.loop.Stats()
	if stats.AutoCommands != 1 {
		t.Errorf("AutoCommands: got %d, want 1", stats.AutoCommands)
	}
	if stats.LastObservation == nil || stats.LastObservation.CenterX != 270 {
		t.Errorf("LastObservation: got %+v", stats.LastObservation)
	}
}

func TestLoop_AutoHalts(t *testing.T) {
	tests := []struct {
		name    string
		markers []marker.Marker
	}{
		{"no marker", nil},
		{"marker close", []marker.Marker{square(3, 300, 200)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newLoopRig(t)
			r.auto(t)
			r.detector.set(tc.markers...)

			if err := r.loop.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
			last, ok := r.mock.Last()
			if !ok || !last.Stop {
				t.Errorf("got %+v, want stop", last)
			}
			if s := r.loop.Stats(); s.AutoHalts != 1 || s.AutoCommands != 1 {
				t.Errorf("got %d halts of %d commands, want 1 of 1", s.AutoHalts, s.AutoCommands)
			}
		})
	}
}

func TestLoop_FollowsLowestID(t *testing.T) {
	r := newLoopRig(t)
	r.auto(t)
	r.detector.set(square(7, 500, 50), square(2, 320, 50))

	r.loop.Step()

	last, _ := r.mock.Last()
	if last.Left != 0.55 || last.Right != 0.55 {
		t.Errorf("got %+v, want straight ahead toward marker 2", last)
	}
}

func TestLoop_SurvivesCameraErrors(t *testing.T) {
	r := newLoopRig(t)
	r.auto(t)
	r.source.setErr(errors.Join(camera.ErrCapture, errors.New("usb reset")))

	for i := 0; i < 3; i++ {
		if err := r.loop.Step(); err != nil {
			t.Fatalf("camera error escaped the loop: %v", err)
		}
	}

	stats := r.loop.Stats()
	if stats.CameraErrors != 3 {
		t.Errorf("CameraErrors: got %d, want 3", stats.CameraErrors)
	}
	if r.buffer.Seq() != 0 {
		t.Errorf("published %d frames without a camera", r.buffer.Seq())
	}
	if r.mock.StopCount() != 3 {
		t.Errorf("stops: got %d, want 3 (no frame means no target)", r.mock.StopCount())
	}

	r.source.setErr(nil)
	r.loop.Step()
	if r.buffer.Seq() != 1 {
		t.Error("loop did not recover after the camera came back")
	}
}

func TestLoop_CameraWarningIsRateLimited(t *testing.T) {
	r := newLoopRig(t)
	r.source.setErr(camera.ErrCapture)

	for i := 0; i < 20; i++ {
		r.loop.Step()
	}

	if n := r.logs.count("camera capture failed"); n != 1 {
		t.Errorf("warnings: got %d, want 1", n)
	}
	if got := r.loop.Stats().CameraErrors; got != 20 {
		t.Errorf("CameraErrors: got %d, want 20", got)
	}
}

func TestLoop_CountsOverruns(t *testing.T) {
	r := newLoopRig(t)

	r.loop.Step()
	if got := r.loop.Stats().Overruns; got != 0 {
		t.Fatalf("fast step: got %d overruns, want 0", got)
	}

	r.source.setDelay(15 * time.Millisecond) // interval is 5ms
	for i := 0; i < 3; i++ {
		r.loop.Step()
	}

	s := r.loop.Stats()
	if s.Overruns != 3 {
		t.Errorf("Overruns: got %d, want 3", s.Overruns)
	}
	if s.LastLatencyMs < 15 {
		t.Errorf("LastLatencyMs: got %v, want >= 15", s.LastLatencyMs)
	}
}

func TestLoop_RunDropsMissedTicks(t *testing.T) {
	r := newLoopRig(t)
	r.source.setDelay(20 * time.Millisecond) // four intervals per step

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	if err := r.loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// a catching-up loop would run one step per elapsed interval
	s := r.loop.Stats()
	if s.Ticks == 0 || s.Ticks > 7 {
		t.Errorf("Ticks: got %d, want 1..7", s.Ticks)
	}
	if s.Overruns != s.Ticks {
		t.Errorf("Overruns: got %d, want %d", s.Overruns, s.Ticks)
	}
}

func TestLoop_DetectionErrorMeansNoMarker(t *testing.T) {
	r := newLoopRig(t)
	r.auto(t)
	r.detector.set(square(1, 270, 100))
	r.detector.err = marker.ErrDetection

	if err := r.loop.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if last, _ := r.mock.Last(); !last.Stop {
		t.Errorf("got %+v, want stop", last)
	}
	if r.loop.Stats().DetectionErrors != 1 {
		t.Error("detection error not counted")
	}
	if r.buffer.Seq() != 1 {
		t.Error("frame should still be published")
	}
}

func TestLoop_ReleasesFrames(t *testing.T) {
	r := newLoopRig(t)
	for i := 0; i < 3; i++ {
		r.loop.Step()
	}
	for i, f := range r.source.frames {
		if !f.isClosed() {
			t.Errorf("frame %d not closed", i)
		}
	}
}

func TestLoop_ActuatorFailureStopsLoop(t *testing.T) {
	r := newLoopRig(t)
	r.auto(t)
	r.detector.set(square(1, 270, 100))
	r.mock.FailWith(errMotor)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := r.loop.Run(ctx)
	if !errors.Is(err, drive.ErrActuator) {
		t.Fatalf("got %v, want ErrActuator", err)
	}
	if ctx.Err() != nil {
		t.Error("loop ran until timeout instead of failing fast")
	}

	calls := r.mock.Calls()
	if len(calls) != 2 || calls[0].Stop || !calls[1].Stop {
		t.Errorf("got %+v, want a drive then a forced stop", calls)
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	r := newLoopRig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.loop.Run(ctx) }()

	deadline := time.After(time.Second)
	for r.buffer.Seq() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not publish frames")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: got %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
