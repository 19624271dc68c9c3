package asr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"jarvis/internal/audio"
)

// OpenAITranscriber transcribes utterances with the OpenAI Whisper API
type OpenAITranscriber struct {
	client openai.Client
	cfg    Config
	log    *slog.Logger
}

// NewOpenAITranscriber creates a transcriber from cfg.
func NewOpenAITranscriber(cfg Config, log *slog.Logger, opts ...option.RequestOption) (*OpenAITranscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITranscriber{
		client: openai.NewClient(append(base, opts...)...),
		cfg:    cfg,
		log:    log,
	}, nil
}

// Transcribe sends utt to Whisper as a WAV file. An empty utterance or an
// empty transcript yields ErrNoSpeech.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, utt *audio.Utterance) (string, error) {
	if utt.Empty() {
		return "", ErrNoSpeech
	}
	data, err := utt.WAV()
	if err != nil {
		return "", fmt.Errorf("asr: encode utterance: %w", err)
	}
	return t.transcribe(ctx, data, "utterance.wav")
}

// TranscribeFile transcribes an audio file from disk.
func (t *OpenAITranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("asr: read %s: %w", path, err)
	}
	return t.transcribe(ctx, data, filepath.Base(path))
}

func (t *OpenAITranscriber) transcribe(ctx context.Context, data []byte, name string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), name, "audio/wav"),
		Model: openai.AudioModel(t.cfg.Model),
	}
	if t.cfg.Language != "" && t.cfg.Language != "auto" {
		params.Language = openai.String(t.cfg.Language)
	}
	if t.cfg.Prompt != "" {
		params.Prompt = openai.String(t.cfg.Prompt)
	}
	if t.cfg.Temperature > 0 {
		params.Temperature = openai.Float(t.cfg.Temperature)
	}

	start := time.Now()
	transcription, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("asr: transcription failed: %w", err)
	}

	text := strings.TrimSpace(transcription.Text)
	t.log.Debug("transcribed", "bytes", len(data), "took", time.Since(start), "text", text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
