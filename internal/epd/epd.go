// Package epd drives an 800x480 black/white SPI e-paper panel (UC8179
// class controller) through periph.io, exposing the full and partial
// refresh paths the frame pipeline commits through.
package epd

import (
	"fmt"
	"image"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	EPD_WIDTH  = 800
	EPD_HEIGHT = 480

	RST_PIN  = "GPIO17"
	DC_PIN   = "GPIO25"
	BUSY_PIN = "GPIO24"

	SPI_PORT = "SPI0.0"
	SPI_HZ   = 4000 * physic.KiloHertz

	// The panel signals refresh completion on the busy line; a refresh
	// that exceeds this is treated as failed so the cycle can still
	// reach suspend.
	busyTimeout = 30 * time.Second
)

// Panel command set (UC8179).
const (
	cmdPanelSetting      = 0x00
	cmdPowerSetting      = 0x01
	cmdPowerOff          = 0x02
	cmdPowerOn           = 0x04
	cmdDeepSleep         = 0x07
	cmdDataOld           = 0x10
	cmdDisplayRefresh    = 0x12
	cmdDataNew           = 0x13
	cmdVCOMDataInterval  = 0x50
	cmdResolutionSetting = 0x61
	cmdGetStatus         = 0x71
	cmdPartialWindow     = 0x90
	cmdPartialIn         = 0x91
	cmdPartialOut        = 0x92
)

// Device is the real panel. It satisfies framebuf.Panel.
type Device struct {
	conn spi.Conn
	port spi.PortCloser

	rst  gpio.PinOut
	dc   gpio.PinOut
	busy gpio.PinIn

	width  int
	height int

	// previous holds the last frame sent, replayed into the controller's
	// "old data" RAM so partial refreshes only flip changed pixels.
	previous []byte
}

// Open initializes the periph host, the SPI port and the control pins.
func Open() (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: host init: %w", err)
	}

	port, err := spireg.Open(SPI_PORT)
	if err != nil {
		return nil, fmt.Errorf("epd: open %s: %w", SPI_PORT, err)
	}
	conn, err := port.Connect(SPI_HZ, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("epd: spi connect: %w", err)
	}

	d := &Device{
		conn:   conn,
		port:   port,
		rst:    gpioreg.ByName(RST_PIN),
		dc:     gpioreg.ByName(DC_PIN),
		busy:   gpioreg.ByName(BUSY_PIN),
		width:  EPD_WIDTH,
		height: EPD_HEIGHT,
	}
	if d.rst == nil || d.dc == nil || d.busy == nil {
		port.Close()
		return nil, fmt.Errorf("epd: control pins %s/%s/%s not found", RST_PIN, DC_PIN, BUSY_PIN)
	}
	if err := d.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		port.Close()
		return nil, fmt.Errorf("epd: busy pin: %w", err)
	}
	return d, nil
}

func (d *Device) command(c byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{c}, nil); err != nil {
		return fmt.Errorf("cmd 0x%02x: %w", c, err)
	}
	if len(data) > 0 {
		return d.data(data)
	}
	return nil
}

func (d *Device) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	// Chunk writes; periph SPI transfers have a buffer limit.
	const chunk = 4096
	for len(b) > 0 {
		n := len(b)
		if n > chunk {
			n = chunk
		}
		if err := d.conn.Tx(b[:n], nil); err != nil {
			return fmt.Errorf("data tx: %w", err)
		}
		b = b[n:]
	}
	return nil
}

func (d *Device) reset() {
	d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
	d.rst.Out(gpio.Low)
	time.Sleep(2 * time.Millisecond)
	d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
}

func (d *Device) waitNotBusy() error {
	deadline := time.Now().Add(busyTimeout)
	for {
		d.command(cmdGetStatus)
		if d.busy.Read() == gpio.High {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("epd: busy for more than %v", busyTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Init wakes the controller from deep sleep and programs power, panel and
// resolution settings. Called once per activation before a refresh.
func (d *Device) Init() error {
	d.reset()

	if err := d.command(cmdPowerSetting, 0x07, 0x07, 0x3f, 0x3f); err != nil {
		return err
	}
	if err := d.command(cmdPowerOn); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.waitNotBusy(); err != nil {
		return err
	}

	// KW mode, LUT from OTP, scan up, shift right, booster on.
	if err := d.command(cmdPanelSetting, 0x1f); err != nil {
		return err
	}
	if err := d.command(cmdResolutionSetting,
		byte(d.width>>8), byte(d.width&0xff),
		byte(d.height>>8), byte(d.height&0xff)); err != nil {
		return err
	}
	return d.command(cmdVCOMDataInterval, 0x10, 0x07)
}

// RefreshFull transmits the frame and runs a complete panel refresh.
func (d *Device) RefreshFull(img *image.RGBA) error {
	buf, err := Pack(img, d.width, d.height)
	if err != nil {
		return err
	}
	if err := d.sendFrame(buf); err != nil {
		return err
	}
	if err := d.refresh(); err != nil {
		return err
	}
	d.previous = buf
	return nil
}

// RefreshPartial transmits the frame inside a full-panel partial window.
// The controller diffs against its old-data RAM, so only changed pixels
// flicker. Falls back to a full refresh when no previous frame exists.
func (d *Device) RefreshPartial(img *image.RGBA) error {
	if d.previous == nil {
		log.Println("epd: no previous frame, promoting partial refresh to full")
		return d.RefreshFull(img)
	}
	buf, err := Pack(img, d.width, d.height)
	if err != nil {
		return err
	}

	if err := d.command(cmdPartialIn); err != nil {
		return err
	}
	w := d.width - 1
	h := d.height - 1
	if err := d.command(cmdPartialWindow,
		0, 0, byte(w>>8), byte(w&0xff),
		0, 0, byte(h>>8), byte(h&0xff),
		0x01); err != nil {
		return err
	}
	if err := d.command(cmdDataOld, d.previous...); err != nil {
		return err
	}
	if err := d.command(cmdDataNew, buf...); err != nil {
		return err
	}
	if err := d.refresh(); err != nil {
		return err
	}
	if err := d.command(cmdPartialOut); err != nil {
		return err
	}
	d.previous = buf
	return nil
}

func (d *Device) sendFrame(buf []byte) error {
	// Old-data RAM gets the previous frame (nothing on the very first
	// refresh); the full-refresh LUT flashes every pixel regardless.
	if err := d.command(cmdDataOld, d.previous...); err != nil {
		return err
	}
	return d.command(cmdDataNew, buf...)
}

func (d *Device) refresh() error {
	if err := d.command(cmdDisplayRefresh); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return d.waitNotBusy()
}

// Sleep powers the panel down and enters deep sleep. The panel draws
// almost nothing in this state and keeps its image; Init is required
// before the next refresh.
func (d *Device) Sleep() error {
	if err := d.command(cmdPowerOff); err != nil {
		return err
	}
	if err := d.waitNotBusy(); err != nil {
		return err
	}
	return d.command(cmdDeepSleep, 0xA5)
}

// Close releases the SPI port. The panel is left in whatever state the
// last Sleep put it in.
func (d *Device) Close() error {
	return d.port.Close()
}
