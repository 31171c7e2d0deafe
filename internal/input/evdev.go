//go:build linux

package input

import (
	"log"
	"strings"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// MonitorKeyboard feeds a desk keyboard into the latch for bench work
// without the button harness: F1 latches the status button, F2 the
// forecast button. Runs until the device read fails permanently; meant
// to be started as a goroutine under -dry-run.
func MonitorKeyboard(deviceName string, latch *Latch) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		log.Printf("input: ListDevicePaths: %v", err)
		return
	}

	// An empty name takes the first device advertising itself as a
	// keyboard, which is the common bench case.
	var devPath string
	for _, ip := range paths {
		if deviceName == "" && strings.Contains(strings.ToLower(ip.Name), "keyboard") {
			devPath = ip.Path
			break
		}
		if deviceName != "" && ip.Name == deviceName {
			devPath = ip.Path
			break
		}
	}
	if devPath == "" {
		log.Printf("input: no usable input device (want %q)", deviceName)
		return
	}

	keyboard, err := evdev.Open(devPath)
	if err != nil {
		log.Printf("input: open %s: %v", devPath, err)
		return
	}

	name, _ := keyboard.Name()
	log.Printf("input: using keyboard %s (%s)", devPath, name)

	for {
		ev, err := keyboard.ReadOne()
		if err != nil {
			log.Printf("input: read: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev.Type != evdev.EV_KEY || ev.Value != 1 {
			continue
		}
		switch ev.Code {
		case evdev.KEY_F1:
			latch.Set(ButtonStatus)
		case evdev.KEY_F2:
			latch.Set(ButtonForecast)
		}
	}
}
