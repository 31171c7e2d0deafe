// Package wake decides why the device became active: first boot after
// power-on, the RTC alarm, or a button press. Classification runs once
// per activation, before anything else, and has no side effects.
package wake

import (
	"os"
	"strings"
)

// Cause is the reason for the current activation.
type Cause int

const (
	Unknown Cause = iota
	ColdBoot
	TimerAlarm
	ButtonWake
)

func (c Cause) String() string {
	switch c {
	case ColdBoot:
		return "cold-boot"
	case TimerAlarm:
		return "timer-alarm"
	case ButtonWake:
		return "button-wake"
	}
	return "unknown"
}

// MarkerSource reports whether the boot marker exists. The controller
// writes the marker to tmpfs after the first activation, so its absence
// means power was removed since the last run.
type MarkerSource interface {
	Exists() bool
}

// PendingSource reports whether a button press is latched. Satisfied by
// input.Latch.
type PendingSource interface {
	AnyPending() bool
}

// StatusSource names the hardware wakeup source of the last resume.
type StatusSource interface {
	WakeSource() (string, error)
}

// Classifier combines the three sources into a single Cause.
type Classifier struct {
	marker MarkerSource
	latch  PendingSource
	hw     StatusSource
}

func NewClassifier(marker MarkerSource, latch PendingSource, hw StatusSource) *Classifier {
	return &Classifier{marker: marker, latch: latch, hw: hw}
}

// Classify determines the wake cause. Precedence: no boot marker is a
// cold boot regardless of anything else; a latched press is a button
// wake even if the hardware report is ambiguous (the press must not be
// lost); otherwise the hardware source decides. Any unrecognized or
// unreadable hardware cause fails closed to TimerAlarm, which runs
// scheduled work rather than silently doing nothing.
func (c *Classifier) Classify() Cause {
	if !c.marker.Exists() {
		return ColdBoot
	}
	if c.latch.AnyPending() {
		return ButtonWake
	}

	src, err := c.hw.WakeSource()
	if err != nil {
		return TimerAlarm
	}
	s := strings.ToLower(strings.TrimSpace(src))
	switch {
	case strings.Contains(s, "rtc"), strings.Contains(s, "alarm"):
		return TimerAlarm
	case strings.Contains(s, "gpio"), strings.Contains(s, "button"), strings.Contains(s, "key"):
		return ButtonWake
	default:
		return TimerAlarm
	}
}

// FileMarker is a MarkerSource backed by a file path.
type FileMarker struct {
	Path string
}

func (m FileMarker) Exists() bool {
	_, err := os.Stat(m.Path)
	return err == nil
}

// SysfsStatus reads the kernel's record of the last wakeup source, e.g.
// /sys/power/pm_wakeup_irq resolved to a name by the platform, or a
// board-specific status file.
type SysfsStatus struct {
	Path string
}

func (s SysfsStatus) WakeSource() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
