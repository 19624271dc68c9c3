// Package wake waits for the wake word and captures what the user says
// right after it.
package wake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jarvis/internal/audio"
	"jarvis/internal/capture"
	"jarvis/internal/keyword"
)

// Capturer records one utterance.
type Capturer interface {
	Capture(ctx context.Context, p capture.Policy) (capture.Result, error)
}

// Acknowledger plays the short cue that tells the user we are listening.
type Acknowledger interface {
	Acknowledge(ctx context.Context)
}

// LookbackDuration is how much raw audio before the trigger is kept.
const LookbackDuration = 2 * time.Second

// Listener waits for the wake word on a dedicated input stream.
type Listener struct {
	device   audio.Device
	detector keyword.Detector
	capturer Capturer
	ack      Acknowledger
	policy   capture.Policy
	lookback *ring
	log      *slog.Logger
}

// NewListener returns a Listener that captures with policy after the wake
// word. ack may be nil.
func NewListener(device audio.Device, detector keyword.Detector, capturer Capturer, ack Acknowledger, policy capture.Policy, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	frameDur := keyword.StreamConfig(detector, false).FrameDuration()
	capacity := 1
	if frameDur > 0 {
		capacity = int((LookbackDuration + frameDur - 1) / frameDur)
	}
	return &Listener{
		device:   device,
		detector: detector,
		capturer: capturer,
		ack:      ack,
		policy:   policy,
		lookback: newRing(capacity, detector.FrameLength()),
		log:      log,
	}
}

// Listen blocks until the wake word is heard or ctx is cancelled. On the
// wake word it closes the wake stream, plays the acknowledgement and
// captures the follow-on utterance. triggered is false only when ctx was
// cancelled or the wake stream failed.
func (l *Listener) Listen(ctx context.Context) (triggered bool, res capture.Result, err error) {
	if err := l.waitForWakeWord(ctx); err != nil {
		if ctx.Err() != nil {
			return false, capture.Result{Kind: capture.Cancelled}, nil
		}
		return false, capture.Result{Kind: capture.Empty}, err
	}

	l.log.Info("wake word detected")
	if l.ack != nil {
		l.ack.Acknowledge(ctx)
	}

	res, err = l.capturer.Capture(ctx, l.policy)
	return true, res, err
}

// waitForWakeWord returns nil once the detector fires. The wake stream is
// closed before it returns.
func (l *Listener) waitForWakeWord(ctx context.Context) error {
	stream, err := l.device.OpenInput(keyword.StreamConfig(l.detector, false))
	if err != nil {
		return fmt.Errorf("wake: open input: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			l.log.Warn("wake: close input", "err", err)
		}
	}()

	l.detector.Reset()
	l.lookback.reset()
	frame := make([]int16, l.detector.FrameLength())

	l.log.Debug("listening for wake word")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(frame); err != nil {
			return fmt.Errorf("wake: read: %w", err)
		}
		l.lookback.push(frame)

		hit, err := l.detector.Process(ctx, frame)
		if err != nil {
			l.log.Debug("wake: keyword error", "err", err)
			continue
		}
		if hit {
			return nil
		}
	}
}

// Lookback returns up to LookbackDuration of audio heard before the last
// trigger, oldest first.
func (l *Listener) Lookback() []int16 {
	return l.lookback.samples()
}
