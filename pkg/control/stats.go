package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/marker"
)

// Stats collects control loop diagnostics. Counters are atomic so the status
// endpoint can read them while the loop runs.
type Stats struct {
	ticks           atomic.Uint64
	cameraErrors    atomic.Uint64
	detectionErrors atomic.Uint64
	encodeErrors    atomic.Uint64
	published       atomic.Uint64
	overruns        atomic.Uint64
	autoCommands    atomic.Uint64
	autoHalts       atomic.Uint64

	mu          sync.Mutex
	lastObs     *marker.Observation
	lastCommand drive.Command
	lastTick    time.Time
	lastLatency time.Duration
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Ticks           uint64              `json:"ticks"`
	CameraErrors    uint64              `json:"camera_errors"`
	DetectionErrors uint64              `json:"detection_errors"`
	EncodeErrors    uint64              `json:"encode_errors"`
	FramesPublished uint64              `json:"frames_published"`
	Overruns        uint64              `json:"overruns"` // ticks that took longer than the interval
	AutoCommands    uint64              `json:"auto_commands"`
	AutoHalts       uint64              `json:"auto_halts"` // applied AUTO commands that stopped the wheels
	LastObservation *marker.Observation `json:"last_observation"`
	LastCommand     drive.Command       `json:"last_command"`
	LastTick        time.Time           `json:"last_tick"`
	LastLatencyMs   float64             `json:"last_latency_ms"`
}

func (s *Stats) record(obs *marker.Observation, cmd drive.Command, at time.Time, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obs != nil {
		o := *obs
		s.lastObs = &o
	} else {
		s.lastObs = nil
	}
	s.lastCommand = cmd
	s.lastTick = at
	s.lastLatency = latency
}

// Snapshot returns a copy of the counters and last values.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Ticks:           s.ticks.Load(),
		CameraErrors:    s.cameraErrors.Load(),
		DetectionErrors: s.detectionErrors.Load(),
		EncodeErrors:    s.encodeErrors.Load(),
		FramesPublished: s.published.Load(),
		Overruns:        s.overruns.Load(),
		AutoCommands:    s.autoCommands.Load(),
		AutoHalts:       s.autoHalts.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastObs != nil {
		o := *s.lastObs
		snap.LastObservation = &o
	}
	snap.LastCommand = s.lastCommand
	snap.LastTick = s.lastTick
	snap.LastLatencyMs = float64(s.lastLatency.Microseconds()) / 1000
	return snap
}
