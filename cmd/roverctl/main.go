// roverctl - command line client for the rover HTTP API
//
// Usage:
//
//	roverctl [-addr http://rover.local:8080] status
//	roverctl mode
//	roverctl toggle
//	roverctl drive forward|backward|left|right|stop
//	roverctl snapshot frame.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/drive"
	"github.com/teslashibe/go-rover/pkg/mode"
)

func main() {
	addr := flag.String("addr", config.Addr(config.DefaultAddr), "Rover base URL (or ROVER_ADDR)")
	timeout := flag.Duration("timeout", httpc.DefaultTimeout, "Request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := &client{base: strings.TrimRight(*addr, "/"), out: os.Stdout}
	if err := c.run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: roverctl [-addr URL] status | mode | toggle | drive <direction> | snapshot <file>")
	flag.PrintDefaults()
}

type client struct {
	base string
	out  io.Writer
}

func (c *client) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "status":
		return c.status(ctx)
	case "mode":
		var res struct {
			Mode mode.Mode `json:"mode"`
		}
		if err := httpc.GetJSON(ctx, httpc.Client, c.base+"/api/mode", &res); err != nil {
			return err
		}
		fmt.Fprintln(c.out, res.Mode)
		return nil
	case "toggle":
		var res struct {
			Mode mode.Mode `json:"mode"`
		}
		if err := httpc.PostJSON(ctx, httpc.Client, c.base+"/api/mode/toggle", nil, &res); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "🔀 mode: %s\n", res.Mode)
		return nil
	case "drive":
		if len(args) < 2 {
			return fmt.Errorf("drive needs a direction")
		}
		return c.drive(ctx, args[1])
	case "snapshot":
		if len(args) < 2 {
			return fmt.Errorf("snapshot needs an output file")
		}
		return c.snapshot(ctx, args[1])
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func (c *client) status(ctx context.Context) error {
	var s control.Status
	if err := httpc.GetJSON(ctx, httpc.Client, c.base+"/api/status", &s); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "🤖 mode:    %s\n", s.Mode)
	fmt.Fprintf(c.out, "⏱️  uptime:  %s\n", s.Uptime)
	fmt.Fprintf(c.out, "🛞 motors:  %s\n", s.LastCommand)
	fmt.Fprintf(c.out, "📷 frames:  %d published, %d dropped\n", s.Buffer.Published, s.Buffer.Drops)
	if s.Loop != nil {
		l := s.Loop
		fmt.Fprintf(c.out, "🔁 loop:    %d ticks, %d camera errors, %d overruns, %.1f ms last tick\n",
			l.Ticks, l.CameraErrors, l.Overruns, l.LastLatencyMs)
		if o := l.LastObservation; o != nil {
			fmt.Fprintf(c.out, "🎯 marker:  #%d at x=%.0f, %.0fpx wide\n", o.ID, o.CenterX, o.Width)
		} else {
			fmt.Fprintln(c.out, "🎯 marker:  none")
		}
	}
	return nil
}

func (c *client) drive(ctx context.Context, direction string) error {
	dir, err := drive.ParseDirection(direction)
	if err != nil {
		return err
	}

	var res control.ManualResult
	if err := httpc.PostJSON(ctx, httpc.Client, c.base+"/api/drive/"+string(dir), nil, &res); err != nil {
		return err
	}
	if !res.Applied {
		fmt.Fprintf(c.out, "⚠️  %s accepted but ignored: rover is in %s\n", dir, res.Mode)
		return nil
	}
	fmt.Fprintf(c.out, "✅ %s\n", dir)
	return nil
}

func (c *client) snapshot(ctx context.Context, path string) error {
	data, err := httpc.GetBytes(ctx, httpc.Client, c.base+"/api/frame.jpg")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "📸 saved %s (%d bytes)\n", path, len(data))
	return nil
}
