package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/marker"
	"github.com/teslashibe/go-rover/pkg/steering"
)

// LoopConfig holds control loop settings.
type LoopConfig struct {
	Interval       time.Duration // Tick period
	JPEGQuality    int           // Quality of frames published to the buffer
	HeartbeatEvery uint64        // Log a summary every N ticks (0 disables)
}

// DefaultLoopConfig returns a 20Hz loop.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Interval:       50 * time.Millisecond,
		JPEGQuality:    80,
		HeartbeatEvery: 100, // ~5 seconds at 50ms
	}
}

// Loop is the autonomous follower. Each tick it captures a frame, finds the
// target marker, asks the steering controller for wheel speeds and hands them
// to the arbiter, then publishes the annotated frame for streaming.
//
// Camera and detection run with no lock held. The loop never touches the
// motors directly: outside AUTO the arbiter discards its commands.
type Loop struct {
	cfg       LoopConfig
	source    camera.Source
	detector  marker.Detector
	annotator marker.Annotator
	steer     *steering.Controller
	arbiter   *Arbiter
	buffer    *camera.Buffer
	logger    *slog.Logger

	stats          Stats
	lastCameraWarn time.Time
}

// NewLoop wires a control loop. If the detector can also annotate frames it
// is used as the annotator. A nil logger uses slog.Default().
func NewLoop(cfg LoopConfig, source camera.Source, detector marker.Detector, steer *steering.Controller,
	arbiter *Arbiter, buffer *camera.Buffer, logger *slog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultLoopConfig().Interval
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = DefaultLoopConfig().JPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		cfg:      cfg,
		source:   source,
		detector: detector,
		steer:    steer,
		arbiter:  arbiter,
		buffer:   buffer,
		logger:   logger.With("component", "control.loop"),
	}
	if a, ok := detector.(marker.Annotator); ok {
		l.annotator = a
	}
	return l
}

// Stats returns a snapshot of the loop diagnostics.
func (l *Loop) Stats() StatsSnapshot {
	return l.stats.Snapshot()
}

// Run ticks until ctx is cancelled, returning nil, or until the actuator
// fails. On actuator failure it forces a stop and returns an error wrapping
// drive.ErrActuator. Ticks missed while a step runs long are dropped.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.logger.Info("control loop started", "interval", l.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped", "ticks", l.stats.ticks.Load())
			return nil
		case <-ticker.C:
			if err := l.Step(); err != nil {
				return err
			}
		}
	}
}

// Step runs one control cycle. It only returns an error for actuator failures.
func (l *Loop) Step() error {
	start := time.Now()
	tick := l.stats.ticks.Add(1)

	frame, err := l.source.Capture()
	if err != nil {
		// A missing frame means no observation, which halts in AUTO.
		l.stats.cameraErrors.Add(1)
		l.warnCamera(err)
		frame = nil
	}
	if frame != nil {
		defer frame.Close()
	}

	markers := l.detect(frame)
	if frame != nil && len(markers) > 0 && l.annotator != nil {
		if err := l.annotator.Annotate(frame, markers); err != nil {
			l.logger.Debug("annotate failed", "error", err)
		}
	}

	obs := marker.Target(markers)
	cmd := l.steer.Compute(obs, l.arbiter.Mode())

	applied, err := l.arbiter.ApplyAuto(cmd)
	if err != nil {
		l.logger.Error("actuator failed, stopping", "command", cmd, "error", err)
		if stopErr := l.arbiter.ForceStop(); stopErr != nil {
			l.logger.Error("forced stop failed", "error", stopErr)
			err = errors.Join(err, stopErr)
		}
		return fmt.Errorf("control loop: %w", err)
	}
	if applied {
		l.stats.autoCommands.Add(1)
		if cmd.IsHalt() {
			l.stats.autoHalts.Add(1)
		}
	}

	if frame != nil {
		l.publish(frame, len(markers), start)
	}

	elapsed := time.Since(start)
	if elapsed > l.cfg.Interval {
		l.stats.overruns.Add(1)
	}
	l.stats.record(obs, cmd, start, elapsed)

	if l.cfg.HeartbeatEvery > 0 && tick%l.cfg.HeartbeatEvery == 0 {
		l.heartbeat(obs, cmd)
	}
	return nil
}

func (l *Loop) detect(frame camera.Frame) []marker.Marker {
	if frame == nil {
		return nil
	}
	markers, err := l.detector.Detect(frame)
	if err != nil {
		l.stats.detectionErrors.Add(1)
		l.logger.Debug("detection failed", "error", err)
		return nil
	}
	return markers
}

func (l *Loop) publish(frame camera.Frame, markers int, capturedAt time.Time) {
	jpeg, err := frame.EncodeJPEG(l.cfg.JPEGQuality)
	if err != nil {
		l.stats.encodeErrors.Add(1)
		l.logger.Debug("jpeg encode failed", "error", err)
		return
	}
	size := frame.Size()
	l.buffer.Publish(camera.Snapshot{
		JPEG:       jpeg,
		Width:      size.X,
		Height:     size.Y,
		CapturedAt: capturedAt,
		Markers:    markers,
	})
	l.stats.published.Add(1)
}

// warnCamera logs capture errors at most once every 5 seconds.
func (l *Loop) warnCamera(err error) {
	if !l.lastCameraWarn.IsZero() && time.Since(l.lastCameraWarn) < 5*time.Second {
		return
	}
	l.lastCameraWarn = time.Now()
	l.logger.Warn("camera capture failed", "error", err, "total", l.stats.cameraErrors.Load())
}

func (l *Loop) heartbeat(obs *marker.Observation, cmd drive.Command) {
	s := l.stats.Snapshot()
	args := []any{
		"mode", l.arbiter.Mode(),
		"ticks", s.Ticks,
		"camera_errors", s.CameraErrors,
		"detection_errors", s.DetectionErrors,
		"overruns", s.Overruns,
		"auto_halts", s.AutoHalts,
		"command", cmd,
	}
	if obs != nil {
		args = append(args, "marker", obs.ID, "center_x", obs.CenterX, "width", obs.Width)
	}
	l.logger.Info("💓 control loop", args...)
}
