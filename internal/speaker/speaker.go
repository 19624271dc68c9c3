// Package speaker plays synthesized speech and, when asked to, listens for
// the wake word on a second input stream so the user can cut it short.
package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jarvis/internal/audio"
	"jarvis/internal/keyword"
)

// Outcome of one Speak call.
type Outcome int

const (
	Completed Outcome = iota
	Interrupted
)

func (o Outcome) String() string {
	if o == Interrupted {
		return "interrupted"
	}
	return "completed"
}

// Synthesizer turns text into an encoded audio payload (MP3 or WAV).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config 播放配置
type Config struct {
	// TickInterval is how often playback checks for an interruption.
	TickInterval time.Duration `yaml:"tick_interval"`
	// AckPhrase is spoken right after the wake word and on interruptions.
	AckPhrase string `yaml:"ack_phrase"`
}

// DefaultConfig returns the playback defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: 100 * time.Millisecond,
		AckPhrase:    "¿Señor?",
	}
}

// session is one in-flight playback. stopRequested is written by the
// monitor goroutine and read by the playback loop; it only goes from false
// to true.
type session struct {
	clip          audio.Clip
	stopRequested atomic.Bool
}

// Speaker plays one clip at a time.
type Speaker struct {
	cfg      Config
	sink     audio.Sink
	device   audio.Device
	detector keyword.Detector
	synth    Synthesizer
	log      *slog.Logger

	// held for the whole of Speak: one session, one monitor
	mu sync.Mutex
}

// New returns a Speaker. device and detector may be nil, in which case
// playback is never interruptible.
func New(cfg Config, sink audio.Sink, synth Synthesizer, device audio.Device, detector keyword.Detector, log *slog.Logger) *Speaker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Speaker{
		cfg:      cfg,
		sink:     sink,
		device:   device,
		detector: detector,
		synth:    synth,
		log:      log,
	}
}

// Say synthesizes text and plays it. Synthesis failures are logged and
// reported as Completed.
func (s *Speaker) Say(ctx context.Context, text string, interruptible bool) Outcome {
	s.log.Info("speaking", "text", text, "interruptible", interruptible)

	payload, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.log.Error("speech synthesis failed", "err", err)
		return Completed
	}
	return s.Speak(ctx, payload, interruptible)
}

// Acknowledge plays the short acknowledgement cue. It cannot be
// interrupted.
func (s *Speaker) Acknowledge(ctx context.Context) {
	s.Say(ctx, s.cfg.AckPhrase, false)
}

// Speak decodes payload and plays it to the end, or until the wake word is
// heard when interruptible is set. The wake word monitor is stopped and
// joined before Speak returns. Decode and sink failures are logged and
// reported as Completed.
func (s *Speaker) Speak(ctx context.Context, payload []byte, interruptible bool) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, err := audio.Decode(payload)
	if err != nil {
		s.log.Error("failed to decode speech", "err", err)
		return Completed
	}
	sess := &session{clip: clip}

	if err := s.sink.Play(clip); err != nil {
		s.log.Error("failed to start playback", "err", err)
		return Completed
	}

	if interruptible && s.device != nil && s.detector != nil {
		monitorCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(monitorCtx)
		g.Go(func() error { return s.monitor(gctx, sess) })

		defer func() {
			cancel()
			if err := g.Wait(); err != nil {
				s.log.Warn("wake word monitor stopped", "err", err)
			}
		}()
	}

	if s.waitForPlayback(ctx, sess) {
		s.log.Info("playback interrupted")
		return Interrupted
	}
	return Completed
}

// waitForPlayback polls the sink once per tick and reports whether playback
// ended because the monitor asked it to stop. A stop requested after the
// clip drained does not count.
func (s *Speaker) waitForPlayback(ctx context.Context, sess *session) (interrupted bool) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if sess.stopRequested.Load() {
			s.sink.Stop()
			return true
		}
		if !s.sink.Playing() {
			return false
		}
		select {
		case <-ctx.Done():
			s.sink.Stop()
			return false
		case <-ticker.C:
		}
	}
}

// monitor runs on its own goroutine during interruptible playback.
func (s *Speaker) monitor(ctx context.Context, sess *session) error {
	stream, err := s.device.OpenInput(keyword.StreamConfig(s.detector, true))
	if err != nil {
		return fmt.Errorf("speaker: open monitor stream: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			s.log.Warn("speaker: close monitor stream", "err", err)
		}
	}()

	s.detector.Reset()
	frame := make([]int16, s.detector.FrameLength())

	for ctx.Err() == nil && !sess.stopRequested.Load() {
		if err := stream.Read(frame); err != nil {
			return fmt.Errorf("speaker: read monitor stream: %w", err)
		}
		hit, err := s.detector.Process(ctx, frame)
		if err != nil {
			s.log.Debug("speaker: keyword error", "err", err)
			continue
		}
		if hit {
			s.log.Info("wake word heard during playback")
			sess.stopRequested.Store(true)
			return nil
		}
	}
	return nil
}
