// Package capture records one utterance from the microphone, using a
// voice activity classifier to find where it starts and ends.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jarvis/internal/audio"
	"jarvis/internal/vad"
)

// Kind tags a capture Result.
type Kind int

const (
	// Empty means no qualifying speech was heard before the policy gave up.
	Empty Kind = iota
	// Captured means Result.Utterance holds the speech.
	Captured
	// Cancelled means the context was cancelled mid-capture.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Captured:
		return "captured"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result of one capture. Utterance is only set for Captured; the caller
// owns it.
type Result struct {
	Kind      Kind
	Utterance *audio.Utterance
}

// Capturer records utterances from a Device.
type Capturer struct {
	device     audio.Device
	classifier vad.Classifier
	stream     audio.StreamConfig
	log        *slog.Logger
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithStream overrides the default 16 kHz / 480-sample capture stream.
func WithStream(cfg audio.StreamConfig) Option {
	return func(c *Capturer) { c.stream = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.log = l }
}

// New returns a Capturer.
func New(device audio.Device, classifier vad.Classifier, opts ...Option) *Capturer {
	c := &Capturer{
		device:     device,
		classifier: classifier,
		stream: audio.StreamConfig{
			SampleRate:  audio.CaptureSampleRate,
			FrameLength: audio.CaptureFrameLength,
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.stream.Monitor = false
	return c
}

// Capture opens a capture stream and records until p says the utterance is
// over. Elapsed time is measured in stream time (frames read times frame
// duration). The stream is closed before Capture returns. A device error
// is returned together with an Empty result.
func (c *Capturer) Capture(ctx context.Context, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{Kind: Empty}, err
	}

	stream, err := c.device.OpenInput(c.stream)
	if err != nil {
		return Result{Kind: Empty}, fmt.Errorf("capture: open input: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			c.log.Warn("capture: close input", "err", err)
		}
	}()

	c.log.Debug("capture started", "policy", p.Name)

	var (
		frameDur  = c.stream.FrameDuration()
		onsetWait = p.onsetWait()
		frame     = make([]int16, c.stream.FrameLength)

		elapsed     time.Duration
		started     bool
		speechStart time.Duration // start of the first speech frame
		lastSpeech  time.Duration // end of the latest speech frame
		buf         []int16
	)

	for {
		select {
		case <-ctx.Done():
			return Result{Kind: Cancelled}, nil
		default:
		}

		if err := stream.Read(frame); err != nil {
			return Result{Kind: Empty}, fmt.Errorf("capture: read: %w", err)
		}
		elapsed += frameDur

		speech, err := c.classifier.IsSpeech(frame, c.stream.SampleRate)
		if err != nil {
			c.log.Debug("capture: vad error, treating frame as silence", "err", err)
			speech = false
		}

		if speech {
			if !started {
				started = true
				speechStart = elapsed - frameDur
			}
			lastSpeech = elapsed
		}
		if started {
			buf = append(buf, frame...)
		}

		span := lastSpeech - speechStart

		if started && elapsed-lastSpeech >= p.SilenceDuration {
			if span >= p.MinSpeechDuration {
				return c.captured(buf, p, elapsed), nil
			}
			// 太短, 当作噪声丢弃, 继续等
			c.log.Debug("capture: dropped short burst", "span", span)
			started = false
			buf = buf[:0]
			speechStart, lastSpeech = 0, 0
		}

		if !started && elapsed >= onsetWait {
			c.log.Debug("capture: no speech", "policy", p.Name, "elapsed", elapsed)
			return Result{Kind: Empty}, nil
		}

		if elapsed >= p.MaxTotalTime {
			if started && span >= p.MinSpeechDuration {
				return c.captured(buf, p, elapsed), nil
			}
			return Result{Kind: Empty}, nil
		}
	}
}

func (c *Capturer) captured(buf []int16, p Policy, elapsed time.Duration) Result {
	utt := &audio.Utterance{Samples: buf, SampleRate: c.stream.SampleRate}
	c.log.Debug("capture finished",
		"policy", p.Name,
		"elapsed", elapsed,
		"utterance", utt.Duration())
	return Result{Kind: Captured, Utterance: utt}
}
