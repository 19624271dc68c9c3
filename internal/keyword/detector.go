// Package keyword detects the wake word in a stream of PCM frames.
package keyword

import (
	"context"
	"fmt"

	"jarvis/internal/audio"
)

// Detector consumes frames of exactly FrameLength samples at SampleRate and
// reports when the trigger phrase was heard.
type Detector interface {
	SampleRate() int
	FrameLength() int
	// Process feeds one frame. A frame of the wrong length panics. Work
	// started for the frame stops when ctx is done.
	Process(ctx context.Context, frame []int16) (bool, error)
	// Reset drops any partially heard audio.
	Reset()
}

// StreamConfig returns the input stream config matching d.
func StreamConfig(d Detector, monitor bool) audio.StreamConfig {
	return audio.StreamConfig{
		SampleRate:  d.SampleRate(),
		FrameLength: d.FrameLength(),
		Monitor:     monitor,
	}
}

func checkFrame(frame []int16, want int) {
	if len(frame) != want {
		panic(fmt.Sprintf("keyword: frame has %d samples, detector needs %d", len(frame), want))
	}
}
