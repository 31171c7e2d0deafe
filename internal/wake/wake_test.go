package wake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeMarker bool

func (f fakeMarker) Exists() bool { return bool(f) }

type fakePending bool

func (f fakePending) AnyPending() bool { return bool(f) }

type fakeStatus struct {
	src string
	err error
}

func (f fakeStatus) WakeSource() (string, error) { return f.src, f.err }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		marker  bool
		pending bool
		src     string
		err     error
		want    Cause
	}{
		{"no marker is cold boot", false, false, "rtc0", nil, ColdBoot},
		{"no marker wins over pending press", false, true, "", nil, ColdBoot},
		{"latched press is button wake", true, true, "rtc0", nil, ButtonWake},
		{"rtc source is timer", true, false, "rtc0\n", nil, TimerAlarm},
		{"alarm source is timer", true, false, "alarmtimer", nil, TimerAlarm},
		{"gpio source is button", true, false, "gpio-keys", nil, ButtonWake},
		{"unknown source fails closed to timer", true, false, "modem", nil, TimerAlarm},
		{"empty source fails closed to timer", true, false, "", nil, TimerAlarm},
		{"status error fails closed to timer", true, false, "", errors.New("no sysfs"), TimerAlarm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(fakeMarker(tt.marker), fakePending(tt.pending), fakeStatus{tt.src, tt.err})
			if got := c.Classify(); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot-id")
	m := FileMarker{Path: path}
	if m.Exists() {
		t.Fatal("marker reported before creation")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !m.Exists() {
		t.Fatal("marker not seen")
	}
}

func TestSysfsStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wakeup_source")
	if err := os.WriteFile(path, []byte("rtc0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := SysfsStatus{Path: path}.WakeSource()
	if err != nil {
		t.Fatalf("WakeSource: %v", err)
	}
	if src != "rtc0\n" {
		t.Errorf("src = %q", src)
	}

	if _, err := (SysfsStatus{Path: path + ".missing"}).WakeSource(); err == nil {
		t.Error("expected error for missing file")
	}
}
