package audio

import (
	"errors"
	"time"
)

// 采集默认参数: 16 kHz 单声道, 480 样本 (30 ms) 一帧
const (
	CaptureSampleRate  = 16000
	CaptureFrameLength = 480
)

var (
	// ErrDeviceBusy is returned when opening a stream would break the
	// one-input/one-output device policy.
	ErrDeviceBusy = errors.New("audio: device busy")
	// ErrStreamClosed is returned by Read after Close.
	ErrStreamClosed = errors.New("audio: stream closed")
)

// StreamConfig describes one input stream.
type StreamConfig struct {
	SampleRate  int
	FrameLength int
	// Monitor marks the wake-word monitor stream that is allowed to stay
	// open while a clip is playing.
	Monitor bool
}

// FrameDuration returns how much audio one frame holds.
func (c StreamConfig) FrameDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FrameLength) * time.Second / time.Duration(c.SampleRate)
}

// InputStream is a blocking source of fixed-length mono int16 frames.
type InputStream interface {
	// Read blocks until len(frame) samples are available and copies them
	// into frame. len(frame) must equal the stream's frame length.
	Read(frame []int16) error
	Close() error
}

// Device opens input streams.
type Device interface {
	OpenInput(cfg StreamConfig) (InputStream, error)
}

// Clip is a decoded, finite piece of mono audio ready for playback.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Sink plays one clip at a time.
type Sink interface {
	// Play loads clip and starts playback without waiting for it to end.
	Play(clip Clip) error
	// Playing reports whether the current clip is still being played.
	Playing() bool
	// Stop halts playback immediately. Safe to call when idle.
	Stop()
}

// Utterance is one captured span of speech. The caller owns it and calls
// Discard once every consumer is done with it.
type Utterance struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the length of the captured audio.
func (u *Utterance) Duration() time.Duration {
	if u == nil || u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

// Empty reports whether the utterance holds no samples.
func (u *Utterance) Empty() bool {
	return u == nil || len(u.Samples) == 0
}

// WAV encodes the utterance as a 16-bit mono WAV file.
func (u *Utterance) WAV() ([]byte, error) {
	return EncodeWAV(u.Samples, u.SampleRate)
}

// Discard releases the sample buffer.
func (u *Utterance) Discard() {
	if u != nil {
		u.Samples = nil
	}
}
