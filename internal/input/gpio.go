//go:build linux

package input

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

// Default button wiring (BCM numbering). Both buttons short to ground,
// so the lines are pulled up and presses arrive as falling edges. The
// same lines are configured as kernel wakeup sources in the device tree,
// which is what ends suspend on a press.
const (
	DefaultChip        = "gpiochip0"
	DefaultStatusPin   = 5
	DefaultForecastPin = 6
)

// GPIOButtons routes falling-edge events from the two button lines into
// a Latch. The event handler is the producer side of the latch and runs
// on gpiocdev's event goroutine.
type GPIOButtons struct {
	statusLine   *gpiocdev.Line
	forecastLine *gpiocdev.Line
}

// NewGPIOButtons requests both lines with edge detection wired to latch.
func NewGPIOButtons(chip string, statusPin, forecastPin int, latch *Latch) (*GPIOButtons, error) {
	handler := func(b Button) func(gpiocdev.LineEvent) {
		return func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				latch.Set(b)
			}
		}
	}

	statusLine, err := gpiocdev.RequestLine(chip, statusPin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler(ButtonStatus)))
	if err != nil {
		return nil, fmt.Errorf("input: request status pin %d: %w", statusPin, err)
	}

	forecastLine, err := gpiocdev.RequestLine(chip, forecastPin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler(ButtonForecast)))
	if err != nil {
		statusLine.Close()
		return nil, fmt.Errorf("input: request forecast pin %d: %w", forecastPin, err)
	}

	log.Printf("input: buttons on %s pins %d/%d", chip, statusPin, forecastPin)
	return &GPIOButtons{statusLine: statusLine, forecastLine: forecastLine}, nil
}

// Close releases both lines.
func (g *GPIOButtons) Close() error {
	g.statusLine.Close()
	g.forecastLine.Close()
	return nil
}
