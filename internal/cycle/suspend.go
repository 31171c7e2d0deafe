package cycle

import (
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Suspender puts the system to sleep until the given deadline. The call
// blocks for the whole suspension and returns after resume.
type Suspender interface {
	Suspend(deadline time.Time) error
}

// Rebooter restarts the system. Used by the scheduled maintenance reboot.
type Rebooter interface {
	Reboot() error
}

// RTCWake suspends via the rtcwake utility, which arms the RTC alarm and
// enters the given sleep state in one step.
type RTCWake struct {
	// Mode is the kernel sleep state, "mem" unless overridden.
	Mode string
}

func (r RTCWake) Suspend(deadline time.Time) error {
	mode := r.Mode
	if mode == "" {
		mode = "mem"
	}
	secs := int(time.Until(deadline).Seconds())
	if secs < 60 {
		secs = 60
	}
	cmd := exec.Command("rtcwake", "-m", mode, "-s", strconv.Itoa(secs))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cycle: rtcwake: %w (%s)", err, out)
	}
	return nil
}

// SystemRebooter reboots through systemd.
type SystemRebooter struct{}

func (SystemRebooter) Reboot() error {
	if err := exec.Command("systemctl", "reboot").Run(); err != nil {
		return fmt.Errorf("cycle: reboot: %w", err)
	}
	return nil
}

// FakeSuspender records deadlines instead of sleeping.
type FakeSuspender struct {
	Deadlines []time.Time
	Err       error
}

func (f *FakeSuspender) Suspend(deadline time.Time) error {
	f.Deadlines = append(f.Deadlines, deadline)
	return f.Err
}

// FakeRebooter counts reboot requests.
type FakeRebooter struct {
	Calls int
}

func (f *FakeRebooter) Reboot() error {
	f.Calls++
	return nil
}
