// Package telemetry writes the append-only error and battery logs and
// optionally mirrors them to an MQTT broker. Every line carries the boot
// session id so log readers can tell power cycles apart.
package telemetry

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	errorLogName   = "error.log"
	batteryLogName = "battery.log"
	timeLayout     = "2006-01-02 15:04:05"
)

// Publisher mirrors log entries to an external sink. Failures are the
// sink's problem; the file log is the source of truth.
type Publisher interface {
	PublishError(session, msg string) error
	PublishBattery(session string, voltage float64, levelPct int) error
	Close() error
}

// Logger is the append-only file logger.
type Logger struct {
	dir        string
	session    string
	logErrors  bool
	logBattery bool
	pub        Publisher
	now        func() time.Time
}

// New creates a logger writing into dir. Each flag gates its log
// independently, matching the two config switches.
func New(dir string, logErrors, logBattery bool) *Logger {
	return &Logger{
		dir:        dir,
		session:    uuid.NewString()[:8],
		logErrors:  logErrors,
		logBattery: logBattery,
		now:        time.Now,
	}
}

// Session returns the boot session id.
func (l *Logger) Session() string {
	return l.session
}

// SetPublisher attaches an optional mirror sink.
func (l *Logger) SetPublisher(pub Publisher) {
	l.pub = pub
}

// AppendError records a failure. Disabled loggers drop silently; the
// caller has already decided the failure is non-fatal.
func (l *Logger) AppendError(msg string) {
	if !l.logErrors {
		return
	}
	l.append(errorLogName, msg)
	if l.pub != nil {
		if err := l.pub.PublishError(l.session, msg); err != nil {
			log.Printf("telemetry: mqtt error mirror: %v", err)
		}
	}
}

// AppendBatterySample records one battery point.
func (l *Logger) AppendBatterySample(voltage float64, levelPct int) {
	if !l.logBattery {
		return
	}
	l.append(batteryLogName, fmt.Sprintf("%.3fV %d%%", voltage, levelPct))
	if l.pub != nil {
		if err := l.pub.PublishBattery(l.session, voltage, levelPct); err != nil {
			log.Printf("telemetry: mqtt battery mirror: %v", err)
		}
	}
}

// Close releases the publisher, if any.
func (l *Logger) Close() error {
	if l.pub != nil {
		return l.pub.Close()
	}
	return nil
}

func (l *Logger) append(name, msg string) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		log.Printf("telemetry: mkdir %s: %v", l.dir, err)
		return
	}
	path := filepath.Join(l.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("telemetry: open %s: %v", path, err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s [%s] %s\n", l.now().Format(timeLayout), l.session, msg)
}
