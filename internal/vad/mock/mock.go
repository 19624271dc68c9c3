// Package mock provides a test double for vad.Classifier.
//
// By default a frame counts as speech when any sample is non-zero, which
// pairs with the frames produced by audiotest.Sequence.
package mock

import (
	"sync"

	"jarvis/internal/vad"
)

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Func, if set, decides each call instead of the non-zero rule.
	Func func(frame []int16, sampleRate int) (bool, error)

	// Err, if non-nil, is returned from every call.
	Err error

	calls int
}

// IsSpeech records the call and classifies the frame.
func (c *Classifier) IsSpeech(frame []int16, sampleRate int) (bool, error) {
	c.mu.Lock()
	c.calls++
	fn, err := c.Func, c.Err
	c.mu.Unlock()

	if err != nil {
		return false, err
	}
	if fn != nil {
		return fn(frame, sampleRate)
	}
	for _, s := range frame {
		if s != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Calls returns how many frames were classified.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
