// Package input captures the two panel buttons into single-bit latches.
// Edge-event goroutines (the interrupt context) set a latch; the cycle
// controller takes it exactly once per activation. A press landing
// between activations is held, repeated presses within one activation
// collapse into a single toggle.
package input

import "sync"

// Button identifies one of the two physical buttons.
type Button int

const (
	// ButtonStatus toggles the status overlay.
	ButtonStatus Button = iota
	// ButtonForecast toggles the weekly forecast panel.
	ButtonForecast

	numButtons
)

func (b Button) String() string {
	switch b {
	case ButtonStatus:
		return "status"
	case ButtonForecast:
		return "forecast"
	}
	return "unknown"
}

// Latch holds one pending flag per button. Set and Take run in different
// goroutines; the mutex is the critical section that keeps a press from
// being lost or double-counted mid-take.
type Latch struct {
	mu      sync.Mutex
	pending [numButtons]bool
}

func NewLatch() *Latch {
	return &Latch{}
}

// Set latches a press. Setting an already-set latch is a no-op, which is
// what collapses bounce trains into one toggle.
func (l *Latch) Set(b Button) {
	if b < 0 || b >= numButtons {
		return
	}
	l.mu.Lock()
	l.pending[b] = true
	l.mu.Unlock()
}

// Take consumes the latch, returning whether a press was pending. After
// Take the latch is clear until the next Set.
func (l *Latch) Take(b Button) bool {
	if b < 0 || b >= numButtons {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	was := l.pending[b]
	l.pending[b] = false
	return was
}

// AnyPending peeks without consuming. The wake classifier uses this to
// tell a button wake from a timer wake before the controller takes the
// latches.
func (l *Latch) AnyPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if p {
			return true
		}
	}
	return false
}
