package web

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const mjpegBoundary = "frame"

// handleVideoFeed serves a multipart MJPEG stream that browsers render in a
// plain <img> tag. Each new frame from the loop is sent once; clients never
// poll the buffer.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")

	ctx := s.ctx
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		s.streamMJPEG(ctx, w)
	}))
	return nil
}

// streamMJPEG writes frames until the client goes away, ctx is cancelled, or
// no frame arrives for StreamIdle. A frame is repeated every second while the
// loop is quiet so dead connections are noticed.
func (s *Server) streamMJPEG(ctx context.Context, w *bufio.Writer) {
	s.streams.Add(1)
	defer s.streams.Add(-1)

	var (
		seq      uint64
		last     []byte
		lastSeen = time.Now()
	)

	for {
		wctx, cancel := context.WithTimeout(ctx, time.Second)
		snap, err := s.rover.WaitFrame(wctx, seq)
		cancel()

		switch {
		case err == nil:
			seq = snap.Seq
			last = snap.JPEG
			lastSeen = time.Now()
		case ctx.Err() != nil:
			return
		case time.Since(lastSeen) > s.cfg.StreamIdle:
			s.logger.Debug("mjpeg stream idle, closing")
			return
		case last == nil:
			continue
		}

		if err := writeMJPEGPart(w, last); err != nil {
			return
		}
	}
}

// writeMJPEGPart writes one multipart section and flushes it to the client.
func writeMJPEGPart(w *bufio.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
