// Package web serves the rover control page, the live camera stream and the
// JSON control API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/mode"
)

// Rover is what the web layer may do to the robot.
type Rover interface {
	Mode() mode.Mode
	ToggleMode() (mode.Mode, error)
	ManualCommand(dir drive.Direction) (control.ManualResult, error)
	LatestFrame() (camera.Snapshot, bool)
	WaitFrame(ctx context.Context, afterSeq uint64) (camera.Snapshot, error)
	Status() control.Status
}

// Config holds web server settings
type Config struct {
	Port           int
	CommandRate    float64       // operator commands per second per client IP
	CommandBurst   int           // burst allowance per client IP
	StreamIdle     time.Duration // end an MJPEG stream after this long without frames
	StatusInterval time.Duration // status push period on /ws/status
}

// DefaultConfig returns the default web settings.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		CommandRate:    20,
		CommandBurst:   10,
		StreamIdle:     30 * time.Second,
		StatusInterval: time.Second,
	}
}

// Server is the rover web server
type Server struct {
	app    *fiber.App
	cfg    Config
	rover  Rover
	logger *slog.Logger

	// Hubs for websocket broadcast
	cameraHub *hub.Hub
	statusHub *hub.Hub

	limiter *rateLimiter
	streams atomic.Int64 // open MJPEG streams

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates the web server. A nil logger uses slog.Default().
func NewServer(cfg Config, rover Rover, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.StreamIdle <= 0 {
		cfg.StreamIdle = def.StreamIdle
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		rover:     rover,
		logger:    logger,
		cameraHub: hub.New("camera", logger),
		statusHub: hub.New("status", logger),
		limiter:   newRateLimiter(cfg.CommandRate, cfg.CommandBurst),
		ctx:       ctx,
		cancel:    cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-rover",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestID())
	app.Use(requestLogger(logger))
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/video_feed", s.handleVideoFeed)
	app.Post("/command", s.limiter.middleware(logger, exemptCommand), s.handleCommand)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/mode", s.handleMode)
	api.Post("/mode/toggle", s.handleToggle) // toggling always stops the motors
	api.Post("/drive/:direction", s.limiter.middleware(logger, exemptDrive), s.handleDrive)
	api.Get("/frame.jpg", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app (used by tests).
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and background pumps and serves HTTP until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("🌐 control page", "url", fmt.Sprintf("http://localhost%s", addr))

	go s.cameraHub.Run(s.ctx)
	go s.statusHub.Run(s.ctx)
	go s.pumpFrames(s.ctx)
	go s.pumpStatus(s.ctx)

	if err := s.app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Shutdown stops the pumps, disconnects websocket clients and closes open
// streams, then stops the HTTP server.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.app.ShutdownWithTimeout(timeout)
}

// pumpFrames forwards new frames to websocket camera clients.
func (s *Server) pumpFrames(ctx context.Context) {
	var seq uint64
	idle := time.NewTicker(200 * time.Millisecond)
	defer idle.Stop()

	for {
		if s.cameraHub.ClientCount() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
				continue
			}
		}

		wctx, cancel := context.WithTimeout(ctx, time.Second)
		snap, err := s.rover.WaitFrame(wctx, seq)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		seq = snap.Seq
		s.cameraHub.BroadcastBinary(snap.JPEG)
	}
}

// pumpStatus pushes the rover status to /ws/status clients.
func (s *Server) pumpStatus(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.broadcastStatus()
			}
		}
	}
}

func (s *Server) broadcastStatus() {
	if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
		s.logger.Debug("status broadcast failed", "error", err)
	}
}
