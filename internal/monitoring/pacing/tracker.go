// Package pacing keeps the rolling window of outbound rate-limit samples.
package pacing

import (
	"sync"
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
)

const (
	DefaultWindow        = 20 // samples retained for display
	DefaultSaturationRun = 5  // consecutive capped samples that count as sustained saturation
)

// Transition reports a change of the saturation state.
type Transition int

const (
	TransitionNone    Transition = iota // state unchanged
	TransitionEntered                   // sustained saturation started
	TransitionCleared                   // sustained saturation ended
)

func (t Transition) String() string {
	switch t {
	case TransitionEntered:
		return "entered"
	case TransitionCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Tracker is a fixed-capacity FIFO of pacing samples.
// Multiple readers must share one Tracker; it has a single writer.
type Tracker struct {
	mu        sync.RWMutex
	buf       []domain.PacingSample // ring buffer
	head      int                   // index of the oldest sample
	size      int
	run       int // samples needed for sustained saturation
	trailing  int // consecutive saturated samples at the tail
	saturated bool
}

// NewTracker creates a tracker retaining at most window samples.
func NewTracker(window, saturationRun int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if saturationRun <= 0 {
		saturationRun = DefaultSaturationRun
	}
	return &Tracker{
		buf: make([]domain.PacingSample, window),
		run: saturationRun,
	}
}

// Append adds a sample, evicting the oldest one when full.
// It returns a transition only when the saturation state flips.
func (t *Tracker) Append(s domain.PacingSample) Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.size < len(t.buf) {
		t.buf[(t.head+t.size)%len(t.buf)] = s
		t.size++
	} else {
		t.buf[t.head] = s
		t.head = (t.head + 1) % len(t.buf)
	}

	if s.Saturated() {
		t.trailing++
	} else {
		t.trailing = 0
	}

	now := t.trailing >= t.run
	switch {
	case now && !t.saturated:
		t.saturated = true
		return TransitionEntered
	case !now && t.saturated:
		t.saturated = false
		return TransitionCleared
	default:
		return TransitionNone
	}
}

// Snapshot returns a copy of the window, oldest first.
func (t *Tracker) Snapshot() []domain.PacingSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.PacingSample, t.size)
	for i := 0; i < t.size; i++ {
		out[i] = t.buf[(t.head+i)%len(t.buf)]
	}
	return out
}

// Latest returns the most recent sample.
func (t *Tracker) Latest() (domain.PacingSample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.size == 0 {
		return domain.PacingSample{}, false
	}
	return t.buf[(t.head+t.size-1)%len(t.buf)], true
}

// Len returns the number of retained samples.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Capacity returns the window size.
func (t *Tracker) Capacity() int {
	return len(t.buf)
}

// Saturated reports whether the tracker is in sustained saturation.
func (t *Tracker) Saturated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.saturated
}

// SampleFromPayload converts a pacing poll into a labelled sample.
func SampleFromPayload(at time.Time, p domain.PacingPayload) domain.PacingSample {
	return domain.PacingSample{
		Time:  at.Format(time.TimeOnly),
		Sent:  p.SentThisMinute,
		Limit: p.CapPerMinute,
	}
}
