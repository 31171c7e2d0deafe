// Package power reads battery state from the kernel power-supply class
// and keeps a bounded sample history for the battery-log task, the status
// overlay and the preview graph. The history lives in tmpfs: it survives
// suspend cycles within one power cycle and resets on power loss, which
// is the lifetime the graph wants.
package power

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSysfsBase = "/sys/class/power_supply/battery"

	// MaxSamples bounds the history: 288 battery-log samples at the
	// default 15 minute interval is three days.
	MaxSamples = 288
)

// Status is an instantaneous battery reading.
type Status struct {
	VoltageV float64 `json:"voltage_v"`
	LevelPct int     `json:"level_pct"`
	Charging bool    `json:"charging"`
}

// Sample is one logged point of the history.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	VoltageV  float64   `json:"voltage_v"`
	LevelPct  int       `json:"level_pct"`
}

// Monitor reads sysfs and owns the sample ring.
type Monitor struct {
	base      string
	statePath string

	mu      sync.RWMutex
	samples []Sample
}

// NewMonitor builds a monitor over a power-supply sysfs directory,
// restoring any history found at statePath.
func NewMonitor(sysfsBase, statePath string) *Monitor {
	m := &Monitor{base: sysfsBase, statePath: statePath}
	m.load()
	return m
}

// Read returns the current battery status.
func (m *Monitor) Read() (Status, error) {
	uv, err := readValue(filepath.Join(m.base, "voltage_now"))
	if err != nil {
		return Status{}, fmt.Errorf("power: voltage: %w", err)
	}
	capPct, err := readValue(filepath.Join(m.base, "capacity"))
	if err != nil {
		return Status{}, fmt.Errorf("power: capacity: %w", err)
	}

	st := Status{
		VoltageV: uv / 1e6,
		LevelPct: int(capPct),
	}
	// Charging state is best effort; a missing status file just reads
	// as discharging.
	if data, err := os.ReadFile(filepath.Join(m.base, "status")); err == nil {
		st.Charging = strings.TrimSpace(string(data)) == "Charging"
	}
	return st, nil
}

// Record appends a sample to the ring and persists it.
func (m *Monitor) Record(now time.Time, st Status) {
	m.mu.Lock()
	m.samples = append(m.samples, Sample{Timestamp: now, VoltageV: st.VoltageV, LevelPct: st.LevelPct})
	if len(m.samples) > MaxSamples {
		m.samples = m.samples[len(m.samples)-MaxSamples:]
	}
	m.mu.Unlock()
	m.persist()
}

// Samples returns a copy of the history, oldest first.
func (m *Monitor) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

func (m *Monitor) load() {
	if m.statePath == "" {
		return
	}
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		return
	}
	var samples []Sample
	if json.Unmarshal(data, &samples) == nil {
		if len(samples) > MaxSamples {
			samples = samples[len(samples)-MaxSamples:]
		}
		m.samples = samples
	}
}

func (m *Monitor) persist() {
	if m.statePath == "" {
		return
	}
	m.mu.RLock()
	data, err := json.Marshal(m.samples)
	m.mu.RUnlock()
	if err != nil {
		return
	}
	os.MkdirAll(filepath.Dir(m.statePath), 0o755)
	os.WriteFile(m.statePath, data, 0o644)
}

func readValue(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}
