package web

import (
	_ "embed"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/mode"
)

//go:embed index.html
var indexHTML []byte

// StatusResponse is the /api/status body.
type StatusResponse struct {
	control.Status
	Clients ClientCounts `json:"clients"`
}

// ClientCounts reports connected viewers and broadcasts lost to slow ones.
type ClientCounts struct {
	Camera        int    `json:"camera"`
	Status        int    `json:"status"`
	Streams       int64  `json:"streams"`
	CameraDropped uint64 `json:"camera_dropped"`
	StatusDropped uint64 `json:"status_dropped"`
}

// handleError maps errors to a JSON body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// handleIndex serves the control page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

// handleCommand accepts the form commands sent by the control page buttons:
// cmd=switch_mode|up|down|left|right|stop.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	cmd := c.FormValue("cmd")

	if cmd == "switch_mode" {
		if _, err := s.toggle(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendString("Mode switched")
	}

	dir, err := drive.ParseDirection(cmd)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if _, err := s.rover.ManualCommand(dir); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	// In AUTO the command is accepted and ignored, so the page never retries.
	return c.SendString("OK")
}

// handleStatus returns mode, motor, frame and loop state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		Status: s.rover.Status(),
		Clients: ClientCounts{
			Camera:        s.cameraHub.ClientCount(),
			Status:        s.statusHub.ClientCount(),
			Streams:       s.streams.Load(),
			CameraDropped: s.cameraHub.Dropped(),
			StatusDropped: s.statusHub.Dropped(),
		},
	}
}

// handleMode returns the current mode
func (s *Server) handleMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"mode": s.rover.Mode()})
}

// handleToggle switches between MANUAL and AUTO
func (s *Server) handleToggle(c *fiber.Ctx) error {
	m, err := s.toggle()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"mode":  m,
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"mode": m})
}

func (s *Server) toggle() (mode.Mode, error) {
	m, err := s.rover.ToggleMode()
	s.broadcastStatus()
	return m, err
}

// handleDrive applies an operator direction. In AUTO it answers 200 with
// applied=false.
func (s *Server) handleDrive(c *fiber.Ctx) error {
	dir, err := drive.ParseDirection(c.Params("direction"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := s.rover.ManualCommand(dir)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, drive.ErrActuator) {
			status = fiber.StatusInternalServerError
		}
		return fiber.NewError(status, err.Error())
	}
	return c.JSON(res)
}

// handleFrame returns the latest JPEG snapshot
func (s *Server) handleFrame(c *fiber.Ctx) error {
	snap, ok := s.rover.LatestFrame()
	if !ok {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no frame captured yet")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Frame-Seq", strconv.FormatUint(snap.Seq, 10))
	return c.Send(snap.JPEG)
}

// handleCameraWS streams binary JPEG frames through the camera hub
func (s *Server) handleCameraWS(conn *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, conn); client != nil {
		client.Run()
	}
}

// handleStatusWS pushes status JSON through the status hub
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	if client := hub.NewClient(s.statusHub, conn); client != nil {
		client.Run()
	}
}
