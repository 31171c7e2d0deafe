package power

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fakeSupply(t *testing.T, voltageUV, capacity, status string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"voltage_now": voltageUV,
		"capacity":    capacity,
		"status":      status,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRead(t *testing.T) {
	base := fakeSupply(t, "3912000\n", "76\n", "Discharging\n")
	m := NewMonitor(base, "")

	st, err := m.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if st.VoltageV != 3.912 {
		t.Errorf("voltage = %v, want 3.912", st.VoltageV)
	}
	if st.LevelPct != 76 {
		t.Errorf("level = %d, want 76", st.LevelPct)
	}
	if st.Charging {
		t.Error("discharging battery reported as charging")
	}
}

func TestReadCharging(t *testing.T) {
	base := fakeSupply(t, "4100000", "90", "Charging")
	m := NewMonitor(base, "")
	st, err := m.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !st.Charging {
		t.Error("charging battery not detected")
	}
}

func TestRecordPersistsAcrossMonitors(t *testing.T) {
	state := filepath.Join(t.TempDir(), "battery.json")
	m := NewMonitor(t.TempDir(), state)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	m.Record(now, Status{VoltageV: 3.9, LevelPct: 70})
	m.Record(now.Add(15*time.Minute), Status{VoltageV: 3.88, LevelPct: 69})

	// Simulates the next activation rebuilding everything from files.
	m2 := NewMonitor(t.TempDir(), state)
	samples := m2.Samples()
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if samples[1].LevelPct != 69 {
		t.Errorf("last sample = %+v", samples[1])
	}
}

func TestRingBounded(t *testing.T) {
	m := NewMonitor(t.TempDir(), "")
	start := time.Now()
	for i := 0; i < MaxSamples+50; i++ {
		m.Record(start.Add(time.Duration(i)*time.Minute), Status{LevelPct: i % 100})
	}
	if got := len(m.Samples()); got != MaxSamples {
		t.Errorf("ring grew to %d, want %d", got, MaxSamples)
	}
}
