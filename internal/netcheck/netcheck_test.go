package netcheck

import (
	"testing"
	"time"
)

func TestProberDefaults(t *testing.T) {
	p := NewICMPProber("", 0)
	if p.Host != DefaultHost {
		t.Errorf("host = %q, want %q", p.Host, DefaultHost)
	}
	if p.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", p.Timeout)
	}

	p = NewICMPProber("10.0.0.1", time.Second)
	if p.Host != "10.0.0.1" || p.Timeout != time.Second {
		t.Errorf("explicit settings not kept: %+v", p)
	}
}

func TestFakeProber(t *testing.T) {
	f := &FakeProber{Result: Result{OK: true, RTT: 12 * time.Millisecond}}
	if got := f.Probe(); !got.OK || got.RTT != 12*time.Millisecond {
		t.Errorf("Probe = %+v", got)
	}
}
