// Rover - marker-following two-wheeled robot daemon
//
// Drives the motors from the web control page (MANUAL) or follows the
// lowest-numbered ArUco marker in view (AUTO), streaming the camera to the
// browser either way.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/camera/cvcam"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/drive/gpio"
	"github.com/teslashibe/go-rover/pkg/marker/aruco"
	"github.com/teslashibe/go-rover/pkg/steering"
	"github.com/teslashibe/go-rover/pkg/web"
)

// options are the command line flags.
type options struct {
	configPath string
	envPath    string
	dryRun     bool
	noCamera   bool
	logLevel   string
	port       int
}

func main() {
	opts := parseFlags()

	if err := config.LoadDotEnv(opts.envPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.port != 0 {
		cfg.Web.Port = opts.port
	}

	log.Setup(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	defer log.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error("❌ rover stopped", "error", err)
		log.Close()
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to YAML config (defaults only if empty)")
	flag.StringVar(&o.envPath, "env", ".env", "Path to .env file with ROVER_* overrides")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Log motor commands instead of driving GPIO")
	flag.BoolVar(&o.noCamera, "no-camera", false, "Run without camera (manual driving only)")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.IntVar(&o.port, "port", 0, "HTTP port (overrides config)")
	flag.Parse()
	return o
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	logger := log.L()

	fmt.Println("🤖 go-rover")
	fmt.Println("===========")

	driver, err := openDriver(cfg, opts.dryRun, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("close motors", "error", err)
		}
	}()

	steer, err := steering.NewController(cfg.SteeringParams())
	if err != nil {
		return err
	}
	p := steer.Params()
	logger.Info("🎯 steering", "kp", p.Kp, "base_speed", p.BaseSpeed, "stop_width_px", p.StopWidthPx, "frame_center_x", p.FrameCenterX)

	arbiter := control.NewArbiter(driver, cfg.ManualSpeeds(), logger)
	defer func() {
		if err := arbiter.ForceStop(); err != nil {
			logger.Error("final stop failed", "error", err)
		}
	}()

	buffer := camera.NewBuffer()

	var loop *control.Loop
	if !opts.noCamera {
		source, err := cvcam.Open(cfg.CameraSettings())
		if err != nil {
			return fmt.Errorf("camera: %w (use -no-camera to drive without it)", err)
		}
		defer source.Close()
		logger.Info("📷 camera opened", "device", cfg.Camera.Device, "width", cfg.Camera.Width, "height", cfg.Camera.Height, "rotate_180", cfg.Camera.Rotate180)

		markerCfg := aruco.DefaultConfig()
		markerCfg.Dictionary = cfg.Marker.Dictionary
		detector, err := aruco.New(markerCfg)
		if err != nil {
			return err
		}
		defer detector.Close()

		loop = control.NewLoop(cfg.LoopSettings(), source, detector, steer, arbiter, buffer, logger)
	}

	rover := control.NewRover(arbiter, buffer, loop)

	webCfg := web.DefaultConfig()
	webCfg.Port = cfg.Web.Port
	webCfg.CommandRate = cfg.Web.CommandRate
	webCfg.CommandBurst = cfg.Web.CommandBurst
	server := web.NewServer(webCfg, rover, logger)

	webErr := make(chan error, 1)
	go func() { webErr <- server.Start() }()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	var loopErr chan error // nil without a camera, so it never fires
	if loop != nil {
		loopErr = make(chan error, 1)
		go func() { loopErr <- loop.Run(loopCtx) }()
	}

	logger.Info("✅ rover ready", "mode", rover.Mode(), "dry_run", opts.dryRun)

	var runErr error
	loopDone := false
	select {
	case <-ctx.Done():
		logger.Info("🛑 shutting down")
	case runErr = <-loopErr:
		loopDone = true
		if errors.Is(runErr, drive.ErrActuator) {
			logger.Error("⚠️  motor failure, rover halted", "error", runErr)
		}
	case err := <-webErr:
		runErr = err
	}

	// The loop must be finished before the camera and motors are closed.
	stopLoop()
	if loopErr != nil && !loopDone {
		if err := <-loopErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	if err := server.Shutdown(3 * time.Second); err != nil {
		logger.Warn("web shutdown", "error", err)
	}
	return runErr
}

func openDriver(cfg *config.Config, dryRun bool, logger *slog.Logger) (drive.Driver, error) {
	if dryRun {
		mock := drive.NewMock()
		mock.OnCall = func(c drive.Call) {
			if c.Stop {
				logger.Debug("🛞 stop")
				return
			}
			logger.Debug("🛞 drive", "left", c.Left, "right", c.Right)
		}
		logger.Info("🧪 dry run: motors are simulated")
		return mock, nil
	}

	pins := cfg.Pins()
	robot, err := gpio.Open(pins)
	if err != nil {
		return nil, fmt.Errorf("motors: %w", err)
	}
	logger.Info("⚙️  motors ready", "left", fmt.Sprintf("%d/%d", pins.LeftForward, pins.LeftBackward),
		"right", fmt.Sprintf("%d/%d", pins.RightForward, pins.RightBackward), "pwm_hz", pins.PWMHz)
	return robot, nil
}
