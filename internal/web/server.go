// Package web is the bench/preview HTTP server: the current frame as a
// PNG, cycle status as JSON, and the battery history as an SVG graph.
// It is optional (off unless a listen address is configured) and reads
// only snapshots, never the live back buffer.
package web

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/gofiber/fiber/v2"

	"inkframe/internal/power"
)

// FrameSource supplies a detached copy of the front buffer.
type FrameSource interface {
	FrontCopy() *image.RGBA
}

// Status is the JSON document served at /status.
type Status struct {
	Session      string       `json:"session"`
	Version      string       `json:"version"`
	LastWake     string       `json:"last_wake"`
	LastRefresh  string       `json:"last_refresh"`
	NextDeadline time.Time    `json:"next_deadline"`
	Activations  int          `json:"activations"`
	Battery      power.Status `json:"battery"`
}

// Server wires the three routes over Fiber.
type Server struct {
	app     *fiber.App
	frames  FrameSource
	monitor *power.Monitor
	status  func() Status
}

// New builds the server. status is polled per request so the handler
// always reports the latest completed activation.
func New(frames FrameSource, monitor *power.Monitor, status func() Status) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s := &Server{app: app, frames: frames, monitor: monitor, status: status}

	app.Get("/frame", s.serveFrame)
	app.Get("/status", s.serveStatus)
	app.Get("/battery.svg", s.serveBatteryGraph)
	return s
}

// Listen blocks serving requests; run it in its own goroutine.
func (s *Server) Listen(addr string) error {
	log.Printf("web: preview server on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) serveFrame(c *fiber.Ctx) error {
	frame := s.frames.FrontCopy()
	if frame == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("No frame available")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
	}
	c.Set("Content-Type", "image/png")
	return c.Send(buf.Bytes())
}

func (s *Server) serveStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// serveBatteryGraph renders the sample ring as an SVG line graph:
// voltage as a polyline, charge level as a second one, newest sample on
// the right.
func (s *Server) serveBatteryGraph(c *fiber.Ctx) error {
	const (
		graphW  = 640
		graphH  = 240
		padding = 32
	)

	samples := s.monitor.Samples()

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(graphW, graphH)
	canvas.Rect(0, 0, graphW, graphH, "fill:white;stroke:black")

	if len(samples) < 2 {
		canvas.Text(graphW/2, graphH/2, "not enough samples yet",
			"text-anchor:middle;font-size:14px;fill:grey")
		canvas.End()
	} else {
		minV, maxV := samples[0].VoltageV, samples[0].VoltageV
		for _, smp := range samples {
			if smp.VoltageV < minV {
				minV = smp.VoltageV
			}
			if smp.VoltageV > maxV {
				maxV = smp.VoltageV
			}
		}
		if maxV-minV < 0.05 {
			maxV = minV + 0.05
		}

		n := len(samples)
		vx := make([]int, n)
		vy := make([]int, n)
		ly := make([]int, n)
		for i, smp := range samples {
			vx[i] = padding + i*(graphW-2*padding)/(n-1)
			vy[i] = graphH - padding - int(float64(graphH-2*padding)*(smp.VoltageV-minV)/(maxV-minV))
			ly[i] = graphH - padding - (graphH-2*padding)*smp.LevelPct/100
		}

		canvas.Polyline(vx, vy, "fill:none;stroke:black;stroke-width:2")
		canvas.Polyline(vx, ly, "fill:none;stroke:grey;stroke-width:1;stroke-dasharray:4")
		canvas.Text(padding, padding-8, fmt.Sprintf("%.2fV max", maxV), "font-size:12px;fill:black")
		canvas.Text(padding, graphH-padding+20, fmt.Sprintf("%.2fV min, %d samples", minV, n), "font-size:12px;fill:black")
		canvas.End()
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}
