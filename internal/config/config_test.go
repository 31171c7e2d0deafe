package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.False(t, cfg.HasCredentials())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))

	cfg := Defaults()
	cfg.City = "Utrecht"
	cfg.APIKey = "abc123"
	cfg.Credentials = []Credential{{SSID: "attic", Password: "hunter2"}}
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Utrecht", got.City)
	assert.Equal(t, "abc123", got.APIKey)
	assert.True(t, got.HasCredentials())
}

func TestLoadClampsIntervals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	// Zero and negative intervals must be repaired at load time, not at
	// scheduling time.
	require.NoError(t, os.WriteFile(path, []byte(
		`{"weather_interval_min":0,"sensor_interval_min":-5,"rotate_interval_min":90,"battery_log_interval_min":15}`), 0o644))

	cfg, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.WeatherIntervalMin)
	assert.Equal(t, 1, cfg.SensorIntervalMin)
	assert.Equal(t, 90, cfg.RotateIntervalMin)
	assert.GreaterOrEqual(t, cfg.GhostLimit, 1)
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cfg, err := NewStore(path).Load()
	assert.Error(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestApplyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkframe.conf")
	require.NoError(t, os.WriteFile(path, []byte(
		"CITY=Bergen\nAPI_KEY=xyz\nSSID1=shed\nPASSWORD1=pw\nWEATHER_INTERVAL_MIN=0\nLOG_BATTERY=false\n"), 0o644))

	cfg, changed, err := ApplyOverride(Defaults(), path)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Bergen", cfg.City)
	assert.Equal(t, "xyz", cfg.APIKey)
	require.Len(t, cfg.Credentials, 1)
	assert.Equal(t, "shed", cfg.Credentials[0].SSID)
	assert.False(t, cfg.LogBattery)
	// Override values are clamped like stored ones.
	assert.Equal(t, 1, cfg.WeatherIntervalMin)
}

func TestApplyOverrideMissingFile(t *testing.T) {
	cfg, changed, err := ApplyOverride(Defaults(), filepath.Join(t.TempDir(), "none.conf"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, Defaults(), cfg)
}

func TestCredentialCap(t *testing.T) {
	cfg := Defaults()
	for i := 0; i < 5; i++ {
		cfg.Credentials = append(cfg.Credentials, Credential{SSID: "net"})
	}
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, s.Save(cfg))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Credentials, MaxCredentials)
}
