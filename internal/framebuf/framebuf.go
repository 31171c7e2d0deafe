// Package framebuf owns the two frame buffers behind the e-paper panel.
// All drawing happens in the back buffer; the front buffer always mirrors
// what the physical panel last showed. Commit pushes the back buffer to the
// panel and exchanges the two roles without copying pixel data.
package framebuf

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// RefreshMode selects how Commit drives the panel.
type RefreshMode int

const (
	// RefreshFull redraws the whole panel. Slow, power-hungry, clears ghosting.
	RefreshFull RefreshMode = iota
	// RefreshPartial redraws only changed regions. Fast, may accumulate artifacts.
	RefreshPartial
)

func (m RefreshMode) String() string {
	if m == RefreshFull {
		return "full"
	}
	return "partial"
}

// Panel is the physical display commit path.
type Panel interface {
	Init() error
	RefreshFull(img *image.RGBA) error
	RefreshPartial(img *image.RGBA) error
	Sleep() error
	Close() error
}

// White is the e-paper idle color; buffers start out white.
var White = color.RGBA{255, 255, 255, 255}

// DoubleBuffer holds exactly two buffers and tracks which is front.
type DoubleBuffer struct {
	mu    sync.RWMutex
	bufs  [2]*image.RGBA
	front int
	panel Panel
}

// New allocates two cleared buffers of the given panel dimensions.
func New(width, height int, panel Panel) *DoubleBuffer {
	d := &DoubleBuffer{panel: panel}
	for i := range d.bufs {
		d.bufs[i] = image.NewRGBA(image.Rect(0, 0, width, height))
		Clear(d.bufs[i], White)
	}
	return d
}

// Back returns the buffer not currently shown, for drawing.
func (d *DoubleBuffer) Back() *image.RGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bufs[1-d.front]
}

// FrontCopy returns a snapshot of the front buffer. Used by the preview
// server so it never holds a reference into the swap.
func (d *DoubleBuffer) FrontCopy() *image.RGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	src := d.bufs[d.front]
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Commit pushes the back buffer to the panel with the requested refresh
// mode, then exchanges front and back. The swap happens only after the
// panel accepted the frame, so on error the front buffer still matches
// what the panel shows and the back buffer can be redrawn next cycle.
func (d *DoubleBuffer) Commit(mode RefreshMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	back := d.bufs[1-d.front]
	var err error
	switch mode {
	case RefreshFull:
		err = d.panel.RefreshFull(back)
	case RefreshPartial:
		err = d.panel.RefreshPartial(back)
	default:
		return fmt.Errorf("framebuf: unknown refresh mode %d", mode)
	}
	if err != nil {
		return fmt.Errorf("framebuf: %s refresh: %w", mode, err)
	}

	d.front = 1 - d.front
	return nil
}

// Clear fills a buffer with a solid color.
func Clear(frame *image.RGBA, c color.RGBA) {
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i] = c.R
		frame.Pix[i+1] = c.G
		frame.Pix[i+2] = c.B
		frame.Pix[i+3] = c.A
	}
}
