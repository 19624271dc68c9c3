package vad

import (
	"context"
	"log/slog"
	"time"

	"jarvis/internal/audio"
)

// Config represents VAD configuration
type Config struct {
	// Aggressiveness of the frame classifier, 0-3.
	Aggressiveness int `yaml:"aggressiveness"`

	// ServerURL enables utterance verification against a Silero server.
	ServerURL            string        `yaml:"server_url"`
	Timeout              time.Duration `yaml:"timeout"`
	Threshold            float64       `yaml:"threshold"`
	MinSpeechDurationMs  int           `yaml:"min_speech_duration_ms"`
	MinSilenceDurationMs int           `yaml:"min_silence_duration_ms"`
}

// DefaultConfig returns default VAD configuration
func DefaultConfig() Config {
	return Config{
		Aggressiveness:       1,
		Timeout:              5 * time.Second,
		Threshold:            0.5,
		MinSpeechDurationMs:  250,
		MinSilenceDurationMs: 100,
	}
}

// Verifier asks a Silero server whether a captured utterance really
// contains speech before it is sent for transcription. Any server failure
// counts as speech.
type Verifier struct {
	client *Client
	req    DetectRequest
	log    *slog.Logger
}

// NewVerifier returns nil when cfg has no server URL; a nil *Verifier
// accepts every utterance.
func NewVerifier(cfg Config, log *slog.Logger) *Verifier {
	if cfg.ServerURL == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{
		client: NewClient(cfg.ServerURL, cfg.Timeout),
		req: DetectRequest{
			Threshold:            cfg.Threshold,
			MinSpeechDurationMs:  cfg.MinSpeechDurationMs,
			MinSilenceDurationMs: cfg.MinSilenceDurationMs,
		},
		log: log,
	}
}

// HasSpeech reports whether utt contains speech.
func (v *Verifier) HasSpeech(ctx context.Context, utt *audio.Utterance) bool {
	if v == nil {
		return true
	}
	if utt.Empty() {
		return false
	}

	data, err := utt.WAV()
	if err != nil {
		v.log.Warn("vad verify: encode failed", "err", err)
		return true
	}

	resp, err := v.client.DetectFromBytes(ctx, data, "utterance.wav", &v.req)
	if err != nil {
		v.log.Warn("vad verify: server unavailable", "err", err)
		return true
	}

	v.log.Debug("vad verify",
		"segments", len(resp.SpeechSegments),
		"speech_ratio", resp.Statistics.SpeechRatio)
	return len(resp.SpeechSegments) > 0
}
