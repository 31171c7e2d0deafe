// Package netcheck probes connectivity for the status overlay with a
// single bounded ICMP ping.
package netcheck

import (
	"time"

	"github.com/go-ping/ping"
)

// DefaultHost is pinged when config does not name one.
const DefaultHost = "1.1.1.1"

// Result is the outcome of one probe.
type Result struct {
	OK  bool
	RTT time.Duration
}

// Prober checks connectivity. The fake in tests scripts the result.
type Prober interface {
	Probe() Result
}

// ICMPProber pings a fixed host once. Raw ICMP needs privilege; the
// daemon runs as root on the device, and unprivileged mode falls back
// to UDP.
type ICMPProber struct {
	Host    string
	Timeout time.Duration
}

func NewICMPProber(host string, timeout time.Duration) *ICMPProber {
	if host == "" {
		host = DefaultHost
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ICMPProber{Host: host, Timeout: timeout}
}

func (p *ICMPProber) Probe() Result {
	pinger, err := ping.NewPinger(p.Host)
	if err != nil {
		return Result{}
	}
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = p.Timeout

	if err := pinger.Run(); err != nil {
		return Result{}
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Result{}
	}
	return Result{OK: true, RTT: stats.AvgRtt}
}

// FakeProber returns a scripted result.
type FakeProber struct {
	Result Result
}

func (f *FakeProber) Probe() Result { return f.Result }
