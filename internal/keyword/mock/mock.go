// Package mock provides a test double for keyword.Detector.
package mock

import (
	"context"
	"fmt"
	"sync"

	"jarvis/internal/keyword"
)

// Detector is a mock implementation of keyword.Detector. It fires on the
// TriggerAt-th call to Process (1-based) and on every call listed in
// TriggerOn.
type Detector struct {
	mu sync.Mutex

	Rate   int
	Frame  int
	Err    error
	// TriggerAt fires once, on that call number. Zero never fires.
	TriggerAt int
	TriggerOn []int

	calls  int
	resets int
}

// New returns a detector for 16 kHz / 512-sample frames.
func New(triggerAt int) *Detector {
	return &Detector{Rate: 16000, Frame: 512, TriggerAt: triggerAt}
}

// SampleRate implements keyword.Detector.
func (d *Detector) SampleRate() int { return d.Rate }

// FrameLength implements keyword.Detector.
func (d *Detector) FrameLength() int { return d.Frame }

// Process records the call and fires according to TriggerAt/TriggerOn.
func (d *Detector) Process(_ context.Context, frame []int16) (bool, error) {
	if len(frame) != d.Frame {
		panic(fmt.Sprintf("mock detector: frame has %d samples, want %d", len(frame), d.Frame))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return false, d.Err
	}
	if d.TriggerAt > 0 && d.calls == d.TriggerAt {
		return true, nil
	}
	for _, n := range d.TriggerOn {
		if n == d.calls {
			return true, nil
		}
	}
	return false, nil
}

// Reset implements keyword.Detector.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

// Calls returns how many frames were processed.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Resets returns how many times Reset was called.
func (d *Detector) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Ensure Detector implements keyword.Detector at compile time.
var _ keyword.Detector = (*Detector)(nil)
