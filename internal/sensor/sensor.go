// Package sensor reads the ambient temperature/humidity sensor through
// the kernel's iio sysfs interface. The part reports all zeros when it
// glitches or loses its bus, so an exactly-zero pair is a failed read.
package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Reading is one sensor sample.
type Reading struct {
	TemperatureC float64
	HumidityPct  float64
}

// Reader produces sensor samples.
type Reader interface {
	Read() (Reading, error)
}

// Default iio sysfs locations for the on-board SHT-class sensor.
const (
	DefaultTempPath     = "/sys/bus/iio/devices/iio:device0/in_temp_input"
	DefaultHumidityPath = "/sys/bus/iio/devices/iio:device0/in_humidityrelative_input"
)

// IIOReader reads the sysfs files the iio driver exposes. Values are in
// milli-units.
type IIOReader struct {
	TempPath     string
	HumidityPath string
}

func NewIIOReader() *IIOReader {
	return &IIOReader{TempPath: DefaultTempPath, HumidityPath: DefaultHumidityPath}
}

func (r *IIOReader) Read() (Reading, error) {
	temp, err := readMilli(r.TempPath)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor: temperature: %w", err)
	}
	hum, err := readMilli(r.HumidityPath)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor: humidity: %w", err)
	}
	if temp == 0 && hum == 0 {
		return Reading{}, fmt.Errorf("sensor: all-zero reading, treating as glitch")
	}
	return Reading{TemperatureC: temp, HumidityPct: hum}, nil
}

func readMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / 1000, nil
}

// Fake is a scripted Reader for tests and -dry-run.
type Fake struct {
	Reading Reading
	Err     error
	Reads   int
}

func (f *Fake) Read() (Reading, error) {
	f.Reads++
	if f.Err != nil {
		return Reading{}, f.Err
	}
	return f.Reading, nil
}
