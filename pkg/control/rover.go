package control

import (
	"context"
	"time"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/mode"
)

// Rover is the shared robot state seen by the web layer and CLI. It is the
// only way in: handlers never touch the actuator or the loop directly.
type Rover struct {
	arbiter *Arbiter
	buffer  *camera.Buffer
	loop    *Loop
	started time.Time
}

// ManualResult reports what happened to an operator command.
type ManualResult struct {
	Accepted bool      `json:"accepted"`
	Applied  bool      `json:"applied"` // false when ignored because the rover is in AUTO
	Mode     mode.Mode `json:"mode"`
}

// Status is the rover summary served by /api/status.
type Status struct {
	Mode        mode.Mode          `json:"mode"`
	Uptime      string             `json:"uptime"`
	Toggles     uint64             `json:"toggles"`
	LastCommand drive.Command      `json:"last_command"`
	FrameSeq    uint64             `json:"frame_seq"`
	Buffer      camera.BufferStats `json:"buffer"`
	Loop        *StatsSnapshot     `json:"loop,omitempty"`
}

// NewRover creates the facade. loop may be nil when running without a camera.
func NewRover(arbiter *Arbiter, buffer *camera.Buffer, loop *Loop) *Rover {
	return &Rover{
		arbiter: arbiter,
		buffer:  buffer,
		loop:    loop,
		started: time.Now(),
	}
}

// Mode returns the current control mode.
func (r *Rover) Mode() mode.Mode {
	return r.arbiter.Mode()
}

// ToggleMode switches between MANUAL and AUTO, stopping the motors.
func (r *Rover) ToggleMode() (mode.Mode, error) {
	return r.arbiter.Toggle()
}

// ManualCommand applies an operator direction. Unknown directions are an
// error; directions sent in AUTO are accepted but not applied.
func (r *Rover) ManualCommand(dir drive.Direction) (ManualResult, error) {
	applied, err := r.arbiter.Manual(dir)
	if err != nil {
		return ManualResult{Mode: r.arbiter.Mode()}, err
	}
	return ManualResult{Accepted: true, Applied: applied, Mode: r.arbiter.Mode()}, nil
}

// LatestFrame returns a copy of the newest published frame.
func (r *Rover) LatestFrame() (camera.Snapshot, bool) {
	return r.buffer.Latest()
}

// WaitFrame blocks until a frame newer than afterSeq is published.
func (r *Rover) WaitFrame(ctx context.Context, afterSeq uint64) (camera.Snapshot, error) {
	return r.buffer.Wait(ctx, afterSeq)
}

// Status summarises mode, motors, frames and loop health.
func (r *Rover) Status() Status {
	s := Status{
		Mode:        r.arbiter.Mode(),
		Uptime:      time.Since(r.started).Round(time.Second).String(),
		Toggles:     r.arbiter.Toggles(),
		LastCommand: r.arbiter.LastCommand(),
		FrameSeq:    r.buffer.Seq(),
		Buffer:      r.buffer.Stats(),
	}
	if r.loop != nil {
		stats := r.loop.Stats()
		s.Loop = &stats
	}
	return s
}
