// Package config is the durable key-value store for device settings:
// network credentials, city and API key for the weather service, the
// per-task intervals the scheduler runs on, logging switches and the
// startup banner. Settings live in a JSON file in the data directory; a
// companion dotenv-style text file can override keys, which is how a
// device gets provisioned from removable media on first boot.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MaxCredentials bounds the stored SSID/password pairs.
const MaxCredentials = 3

// MinInterval is the floor applied to every task interval at load time so
// the scheduler's deadline arithmetic is always well-defined.
const MinInterval = time.Minute

// Credential is one wireless network the device may join.
type Credential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Config holds every persisted setting.
type Config struct {
	Credentials []Credential `json:"credentials"`
	City        string       `json:"city"`
	APIKey      string       `json:"api_key"`

	// Task intervals, minutes.
	WeatherIntervalMin    int `json:"weather_interval_min"`
	RotateIntervalMin     int `json:"rotate_interval_min"`
	SensorIntervalMin     int `json:"sensor_interval_min"`
	BatteryLogIntervalMin int `json:"battery_log_interval_min"`

	RebootIntervalDays int `json:"reboot_interval_days"`

	// Full refresh is forced after this many consecutive partial commits.
	GhostLimit int `json:"ghost_limit"`

	LogErrors  bool   `json:"log_errors"`
	LogBattery bool   `json:"log_battery"`
	MQTTBroker string `json:"mqtt_broker,omitempty"`
	Banner     string `json:"banner"`
}

// Defaults returns the configuration a device boots with when nothing is
// stored. All tasks enabled, logging on, no credentials.
func Defaults() Config {
	return Config{
		WeatherIntervalMin:    30,
		RotateIntervalMin:     60,
		SensorIntervalMin:     5,
		BatteryLogIntervalMin: 15,
		RebootIntervalDays:    7,
		GhostLimit:            12,
		LogErrors:             true,
		LogBattery:            true,
		Banner:                "inkframe starting...",
	}
}

// HasCredentials reports whether at least one usable SSID is stored.
func (c Config) HasCredentials() bool {
	for _, cr := range c.Credentials {
		if cr.SSID != "" {
			return true
		}
	}
	return false
}

// WeatherInterval returns the weather refresh interval as a duration.
func (c Config) WeatherInterval() time.Duration {
	return time.Duration(c.WeatherIntervalMin) * time.Minute
}

// RotateInterval returns the image rotation interval as a duration.
func (c Config) RotateInterval() time.Duration {
	return time.Duration(c.RotateIntervalMin) * time.Minute
}

// SensorInterval returns the sensor sampling interval as a duration.
func (c Config) SensorInterval() time.Duration {
	return time.Duration(c.SensorIntervalMin) * time.Minute
}

// BatteryLogInterval returns the battery logging interval as a duration.
func (c Config) BatteryLogInterval() time.Duration {
	return time.Duration(c.BatteryLogIntervalMin) * time.Minute
}

// clamp enforces interval floors and the credential cap. Invalid values
// are repaired, never rejected: the device must boot with whatever it
// finds.
func (c *Config) clamp() {
	min := int(MinInterval / time.Minute)
	if c.WeatherIntervalMin < min {
		c.WeatherIntervalMin = min
	}
	if c.RotateIntervalMin < min {
		c.RotateIntervalMin = min
	}
	if c.SensorIntervalMin < min {
		c.SensorIntervalMin = min
	}
	if c.BatteryLogIntervalMin < min {
		c.BatteryLogIntervalMin = min
	}
	if c.RebootIntervalDays < 1 {
		c.RebootIntervalDays = 1
	}
	if c.GhostLimit < 1 {
		c.GhostLimit = Defaults().GhostLimit
	}
	if len(c.Credentials) > MaxCredentials {
		c.Credentials = c.Credentials[:MaxCredentials]
	}
}

// Store is the JSON-file-backed config store.
type Store struct {
	path string
}

// NewStore returns a store rooted at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored config, filling in defaults when the file is
// missing or a key is absent, and clamping intervals. A missing file is
// not an error; a corrupt file falls back to defaults.
func (s *Store) Load() (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	cfg.clamp()
	return cfg, nil
}

// Save writes the config atomically (temp file then rename) so a power
// loss mid-write never leaves a torn store.
func (s *Store) Save(cfg Config) error {
	cfg.clamp()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

// ApplyOverride merges keys from a dotenv-style text file into cfg and
// reports whether anything changed. Unknown keys are ignored; malformed
// numbers keep the stored value. The file mirrors the store so a user can
// provision a device by dropping a plain text file on removable media.
func ApplyOverride(cfg Config, path string) (Config, bool, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("config: override %s: %w", path, err)
	}

	changed := false
	setStr := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != *dst {
			*dst = v
			changed = true
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := env[key]; ok {
			if n, err := strconv.Atoi(v); err == nil && n != *dst {
				*dst = n
				changed = true
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := env[key]; ok {
			if b, err := strconv.ParseBool(v); err == nil && b != *dst {
				*dst = b
				changed = true
			}
		}
	}

	setStr("CITY", &cfg.City)
	setStr("API_KEY", &cfg.APIKey)
	setStr("BANNER", &cfg.Banner)
	setStr("MQTT_BROKER", &cfg.MQTTBroker)
	setInt("WEATHER_INTERVAL_MIN", &cfg.WeatherIntervalMin)
	setInt("ROTATE_INTERVAL_MIN", &cfg.RotateIntervalMin)
	setInt("SENSOR_INTERVAL_MIN", &cfg.SensorIntervalMin)
	setInt("BATTERY_LOG_INTERVAL_MIN", &cfg.BatteryLogIntervalMin)
	setInt("REBOOT_INTERVAL_DAYS", &cfg.RebootIntervalDays)
	setBool("LOG_ERRORS", &cfg.LogErrors)
	setBool("LOG_BATTERY", &cfg.LogBattery)

	for i := 0; i < MaxCredentials; i++ {
		ssidKey := fmt.Sprintf("SSID%d", i+1)
		passKey := fmt.Sprintf("PASSWORD%d", i+1)
		ssid, ok := env[ssidKey]
		if !ok || ssid == "" {
			continue
		}
		cred := Credential{SSID: ssid, Password: env[passKey]}
		if i < len(cfg.Credentials) {
			if cfg.Credentials[i] != cred {
				cfg.Credentials[i] = cred
				changed = true
			}
		} else {
			cfg.Credentials = append(cfg.Credentials, cred)
			changed = true
		}
	}

	cfg.clamp()
	return cfg, changed, nil
}
